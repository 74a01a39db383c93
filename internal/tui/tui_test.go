package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bfgdl/bfg-downloader/internal/config"
	"github.com/bfgdl/bfg-downloader/internal/model"
)

func TestParseInput(t *testing.T) {
	ids, invalid := ParseInput("F1T1L1, f2t1l2;bogus\tF1T1L1\nF3T2L10")

	got := make([]string, 0, len(ids))
	for _, id := range ids {
		got = append(got, id.String())
	}
	assert.Equal(t, []string{"F1T1L1", "F2T1L2", "F3T2L10"}, got)
	assert.Equal(t, []string{"bogus"}, invalid)

	ids, invalid = ParseInput("   ")
	assert.Empty(t, ids)
	assert.Empty(t, invalid)
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	updated, ok := next.(Model)
	require.True(t, ok)
	return updated
}

func TestModel_ToggleOptions(t *testing.T) {
	m := NewModel(config.DefaultSettings(), nil)
	assert.False(t, m.download)
	assert.False(t, m.verbose)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlD})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlV})
	assert.True(t, m.download)
	assert.True(t, m.verbose)
	assert.Contains(t, m.View(), "[×] Download now")
}

func TestModel_ProgressFiltering(t *testing.T) {
	m := NewModel(nil, nil)

	m = update(t, m, ProgressMsg{Event: model.ProgressEvent{Message: "hidden", Level: model.LevelVerbose}})
	assert.Empty(t, m.logs)

	for range maxLogs + 5 {
		m = update(t, m, ProgressMsg{Event: model.ProgressEvent{Message: "shown", Level: model.LevelInfo}})
	}
	assert.Len(t, m.logs, maxLogs)
}

func TestModel_ResolveError(t *testing.T) {
	m := NewModel(nil, nil)
	m.state = StateResolving

	m = update(t, m, ResolveDoneMsg{Err: assert.AnError})
	assert.Equal(t, StateError, m.state)
	assert.Contains(t, m.View(), assert.AnError.Error())

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	assert.Equal(t, StateInput, m.state)
	assert.Nil(t, m.err)
}

func TestModel_ListDone(t *testing.T) {
	m := NewModel(nil, nil)
	m.state = StateResolving
	m.games = []string{"42 - Hidden Hunt"}

	m = update(t, m, ListDoneMsg{Path: "download-list.txt"})
	assert.Equal(t, StateComplete, m.state)
	assert.Contains(t, m.View(), "download-list.txt")
}
