// Package tui provides a Bubble Tea terminal user interface for bfg-downloader.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bfgdl/bfg-downloader/internal/bigfish"
	"github.com/bfgdl/bfg-downloader/internal/config"
	"github.com/bfgdl/bfg-downloader/internal/download"
	bfghttp "github.com/bfgdl/bfg-downloader/internal/http"
	"github.com/bfgdl/bfg-downloader/internal/logger"
	"github.com/bfgdl/bfg-downloader/internal/model"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#4ECDC4")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)

	gameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8B500"))
)

// maxLogs is how many progress lines stay on screen.
const maxLogs = 10

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateResolving
	StateDownloading
	StateComplete
	StateError
)

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Message string
	Level   model.ProgressLevel
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state     State
	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	settings  *config.Settings
	log       logger.Logger
	logs      []LogEntry
	games     []string
	listPath  string
	err       error

	ctx    context.Context
	cancel context.CancelFunc

	// events carries progress from the manager's goroutines to Update.
	events  chan model.ProgressEvent
	manager *download.Manager

	// Download progress
	totalSegments    int32
	completeSegments int32
	failedSegments   int32
	receivedBytes    int64

	// Options
	download bool
	verbose  bool

	width  int
	height int
}

// NewModel creates a new TUI model. log may be nil.
func NewModel(settings *config.Settings, log logger.Logger) Model {
	if settings == nil {
		settings = config.DefaultSettings()
	}
	if log == nil {
		log = logger.NewNop()
	}

	ti := textinput.New()
	ti.Placeholder = "F7028T1L1 F15533T1L2"
	ti.Focus()
	ti.CharLimit = 2000
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ECDC4"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		state:     StateInput,
		textInput: ti,
		spinner:   sp,
		progress:  prog,
		settings:  settings,
		log:       log,
		logs:      make([]LogEntry, 0),
		ctx:       ctx,
		cancel:    cancel,
		events:    make(chan model.ProgressEvent, 64),
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.listenProgress())
}

// Message types
type (
	// ProgressMsg carries one progress event from the manager.
	ProgressMsg struct {
		Event model.ProgressEvent
	}

	// ResolveDoneMsg is sent when game info lookups complete.
	ResolveDoneMsg struct {
		Games   []string
		Manager *download.Manager
		Err     error
	}

	// ListDoneMsg is sent when the download list has been written.
	ListDoneMsg struct {
		Path string
		Err  error
	}

	// DownloadDoneMsg is sent when all downloads complete.
	DownloadDoneMsg struct {
		Received int64
		Complete int32
		Failed   int32
		Total    int32
		Err      error
	}

	// TickMsg is for periodic progress updates.
	TickMsg struct{}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(max(msg.Width-20, 20), 80)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			return m, tea.Quit

		case "esc":
			if m.state == StateInput {
				return m, tea.Quit
			}
			if m.state == StateDownloading || m.state == StateResolving {
				m.cancel()
				m.state = StateError
				m.err = fmt.Errorf("cancelled by user")
			}

		case "enter":
			if m.state == StateInput && strings.TrimSpace(m.textInput.Value()) != "" {
				m.state = StateResolving
				return m, tea.Batch(m.resolveGames(), m.spinner.Tick)
			}

		case "ctrl+d":
			if m.state == StateInput {
				m.download = !m.download
			}

		case "ctrl+v":
			if m.state == StateInput {
				m.verbose = !m.verbose
			}

		case "q":
			if m.state == StateComplete || m.state == StateError {
				return m, tea.Quit
			}

		case "r":
			if m.state == StateComplete || m.state == StateError {
				m = m.reset()
				return m, nil
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case ProgressMsg:
		cmds = append(cmds, m.listenProgress())
		if msg.Event.Level == model.LevelVerbose && !m.verbose {
			break
		}
		m.logs = append(m.logs, LogEntry{Message: msg.Event.Message, Level: msg.Event.Level})
		if len(m.logs) > maxLogs {
			m.logs = m.logs[len(m.logs)-maxLogs:]
		}

	case ResolveDoneMsg:
		if m.ctx.Err() != nil {
			break
		}
		if msg.Err != nil {
			m.state = StateError
			m.err = msg.Err
			break
		}
		m.games = msg.Games
		m.manager = msg.Manager
		if m.download {
			m.state = StateDownloading
			cmds = append(cmds, m.startDownload(), m.tickProgress())
		} else {
			cmds = append(cmds, m.writeList())
		}

	case ListDoneMsg:
		if msg.Err != nil {
			m.state = StateError
			m.err = msg.Err
			break
		}
		m.listPath = msg.Path
		m.state = StateComplete

	case DownloadDoneMsg:
		m.receivedBytes = msg.Received
		m.completeSegments = msg.Complete
		m.failedSegments = msg.Failed
		m.totalSegments = msg.Total
		switch {
		case m.ctx.Err() != nil:
			m.state = StateError
			m.err = fmt.Errorf("cancelled by user")
		case msg.Err != nil:
			m.state = StateError
			m.err = msg.Err
		default:
			m.state = StateComplete
		}

	case TickMsg:
		if m.manager != nil && m.state == StateDownloading {
			m.receivedBytes, m.completeSegments, m.failedSegments, m.totalSegments = m.manager.GetProgress()
			cmds = append(cmds, m.progress.SetPercent(m.percent()), m.tickProgress())
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	if m.state == StateInput {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// reset returns the model to the input state for a new run.
func (m Model) reset() Model {
	m.state = StateInput
	m.logs = nil
	m.games = nil
	m.listPath = ""
	m.err = nil
	m.manager = nil
	m.totalSegments = 0
	m.completeSegments = 0
	m.failedSegments = 0
	m.receivedBytes = 0
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.textInput.SetValue("")
	m.textInput.Focus()
	return m
}

func (m Model) percent() float64 {
	if m.totalSegments == 0 {
		return 0
	}
	return float64(m.completeSegments+m.failedSegments) / float64(m.totalSegments)
}

// tickProgress returns a command to tick progress updates.
func (m Model) tickProgress() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// listenProgress waits for the next progress event.
func (m Model) listenProgress() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		return ProgressMsg{Event: <-events}
	}
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("🐟 Big Fish Games Downloader"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Platform: %s", m.settings.Platform())))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateResolving:
		b.WriteString(m.viewResolving())
	case StateDownloading:
		b.WriteString(m.viewDownloading())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.helpText()))

	return b.String()
}

func checkbox(on bool) string {
	if on {
		return "[×]"
	}
	return "[ ]"
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Enter WrapIDs:"))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")

	b.WriteString(infoStyle.Render("Options:"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  %s Download now instead of writing %s (ctrl+d)\n", checkbox(m.download), download.ListFile)
	fmt.Fprintf(&b, "  %s Verbose output (ctrl+v)\n", checkbox(m.verbose))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Output: %s | Jobs: %d", m.settings.OutputDir, m.settings.Jobs)))
	b.WriteString("\n")

	return b.String()
}

func (m Model) viewResolving() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(subtitleStyle.Render("Fetching game info..."))
	b.WriteString("\n\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewDownloading() string {
	var b strings.Builder

	if len(m.games) > 0 {
		b.WriteString(successStyle.Render(fmt.Sprintf("Found %d game(s):", len(m.games))))
		b.WriteString("\n")
		for _, game := range m.games {
			b.WriteString(gameStyle.Render("  ▸ " + game))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(m.progress.ViewAs(m.percent()))
	b.WriteString("\n")
	b.WriteString(infoStyle.Render(fmt.Sprintf(
		"Segments: %d/%d | Failed: %d | Downloaded: %.2f MB",
		m.completeSegments,
		m.totalSegments,
		m.failedSegments,
		float64(m.receivedBytes)/1024/1024,
	)))
	b.WriteString("\n\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewComplete() string {
	if m.listPath != "" {
		return boxStyle.Render(fmt.Sprintf(
			"✨ Download list written!\n\nGames: %d\nFile: %s",
			len(m.games),
			m.listPath,
		))
	}
	return boxStyle.Render(fmt.Sprintf(
		"✨ Download Complete!\n\nGames: %d\nSegments: %d\nSize: %.2f MB",
		len(m.games),
		m.completeSegments,
		float64(m.receivedBytes)/1024/1024,
	))
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("❌ Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString("  " + m.err.Error())
		b.WriteString("\n\n")
	}
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, entry := range m.logs {
		var style lipgloss.Style
		prefix := "•"
		switch entry.Level {
		case model.LevelError:
			style = errorStyle
			prefix = "✗"
		case model.LevelWarning:
			style = warningStyle
			prefix = "!"
		case model.LevelSuccess:
			style = successStyle
			prefix = "✓"
		case model.LevelInfo:
			style = infoStyle
			prefix = "›"
		default:
			style = dimStyle
		}
		b.WriteString(style.Render(prefix + " " + entry.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) helpText() string {
	switch m.state {
	case StateInput:
		return "enter: start • ctrl+d: download • ctrl+v: verbose • esc: quit"
	case StateResolving, StateDownloading:
		return "esc: cancel"
	case StateComplete, StateError:
		return "r: new run • q: quit"
	}
	return ""
}

// ParseInput splits free-form input on whitespace and commas and parses each
// WrapID. Invalid entries are returned separately.
func ParseInput(input string) (ids []model.WrapID, invalid []string) {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n'
	})
	seen := make(map[model.WrapID]struct{}, len(fields))
	for _, field := range fields {
		id, err := model.ParseWrapID(field)
		if err != nil {
			invalid = append(invalid, field)
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, invalid
}

// newManager creates a download manager from the settings, reporting
// progress on m.events.
func (m *Model) newManager() (*download.Manager, error) {
	listFormat, err := download.ParseListFormat(m.settings.ListFormat)
	if err != nil {
		return nil, err
	}

	httpOpts := bfghttp.DefaultOptions()
	httpOpts.UserAgent = m.settings.UserAgent
	client := bfghttp.NewClient(httpOpts)
	resolver := bigfish.NewGameInfoClient(client, bigfish.GameInfoOptions{
		URL:         m.settings.GameInfoURL,
		DownloadURL: m.settings.DownloadURL,
		Logger:      m.log,
	})

	events := m.events
	ctx := m.ctx
	return download.NewManager(client, resolver, download.Options{
		OutputDir:          m.settings.OutputDir,
		Jobs:               m.settings.Jobs,
		MaxConcurrentGames: m.settings.MaxConcurrentGames,
		ListFormat:         listFormat,
	}, m.log, func(event model.ProgressEvent) {
		select {
		case events <- event:
		case <-ctx.Done():
		}
	}), nil
}

// resolveGames parses the input and fetches game info.
func (m *Model) resolveGames() tea.Cmd {
	input := m.textInput.Value()
	manager, err := m.newManager()
	ctx := m.ctx
	events := m.events

	return func() tea.Msg {
		if err != nil {
			return ResolveDoneMsg{Err: err}
		}

		ids, invalid := ParseInput(input)
		for _, s := range invalid {
			select {
			case events <- model.ProgressEvent{Message: fmt.Sprintf("Skipping invalid WrapID: %s", s), Level: model.LevelWarning}:
			case <-ctx.Done():
			}
		}
		if len(ids) == 0 {
			return ResolveDoneMsg{Err: fmt.Errorf("no valid WrapIDs entered")}
		}

		if err := manager.Initialize(ctx, ids); err != nil {
			return ResolveDoneMsg{Err: err}
		}

		games := manager.Games()
		if len(games) == 0 {
			return ResolveDoneMsg{Err: fmt.Errorf("no valid games found")}
		}
		names := make([]string, 0, len(games))
		for _, game := range games {
			names = append(names, game.DisplayName())
		}
		return ResolveDoneMsg{Games: names, Manager: manager}
	}
}

// writeList writes the download list for the resolved games.
func (m *Model) writeList() tea.Cmd {
	manager := m.manager
	return func() tea.Msg {
		path, err := manager.WriteDownloadList()
		return ListDoneMsg{Path: path, Err: err}
	}
}

// startDownload starts the actual download in background.
func (m *Model) startDownload() tea.Cmd {
	manager := m.manager
	ctx := m.ctx
	return func() tea.Msg {
		if manager == nil {
			return DownloadDoneMsg{Err: fmt.Errorf("no manager")}
		}

		err := manager.StartDownloads(ctx)
		received, complete, failed, total := manager.GetProgress()

		return DownloadDoneMsg{
			Received: received,
			Complete: complete,
			Failed:   failed,
			Total:    total,
			Err:      err,
		}
	}
}

// Run starts the TUI application.
func Run(settings *config.Settings, log logger.Logger) error {
	p := tea.NewProgram(NewModel(settings, log), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
