package main

import (
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/bfgdl/bfg-downloader/internal/export"
	"github.com/bfgdl/bfg-downloader/internal/model"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4ECDC4"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#95E1A3"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFE66D"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#A8DADC"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C757D"))
)

const failureMessageWidth = 80

// printer writes user-facing progress. It is safe for concurrent use since
// progress events arrive from worker goroutines.
type printer struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
}

func newPrinter(out io.Writer, verbose bool) *printer {
	return &printer{out: out, verbose: verbose}
}

func (p *printer) println(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, s)
}

func (p *printer) header() {
	p.println(titleStyle.Render("🐟 Big Fish Games Downloader"))
	p.println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
}

func (p *printer) info(msg string) {
	p.progress(model.ProgressEvent{Message: msg, Level: model.LevelInfo})
}

func (p *printer) hint(msg string) {
	p.println(dimStyle.Render("   " + msg))
}

// progress renders one event. Verbose events are dropped unless verbose
// output was requested.
func (p *printer) progress(event model.ProgressEvent) {
	if event.Level == model.LevelVerbose && !p.verbose {
		return
	}

	var line string
	switch event.Level {
	case model.LevelError:
		line = errorStyle.Render("❌ " + event.Message)
	case model.LevelWarning:
		line = warningStyle.Render("⚠️  " + event.Message)
	case model.LevelSuccess:
		line = successStyle.Render("✅ " + event.Message)
	case model.LevelInfo:
		line = infoStyle.Render("ℹ️  " + event.Message)
	default:
		line = dimStyle.Render("   " + event.Message)
	}
	p.println(line)
}

// games renders the resolved games as a table.
func (p *printer) games(games []*model.GameInfo) {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"WrapID", "Game", "Segments"})
	for _, game := range games {
		t.AppendRow(table.Row{game.WrapID, game.DisplayName(), len(game.Segments)})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
	})

	p.println(t.Render())
}

func (p *printer) downloadSummary(receivedBytes int64, complete, failed, total int32) {
	p.println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	msg := fmt.Sprintf("✨ Downloaded %d/%d segments (%.2f MB)", complete, total, float64(receivedBytes)/1024/1024)
	if failed > 0 {
		p.println(warningStyle.Render(fmt.Sprintf("%s, %d failed", msg, failed)))
		return
	}
	p.println(successStyle.Render(msg))
}

// report renders an export report: one row per language, then the failures.
func (p *printer) report(r *export.Report) {
	labels := make([]string, 0, len(r.WrapIDsFoundByLanguageL))
	for label := range r.PagesParsedByLanguageL {
		labels = append(labels, label)
	}
	slices.Sort(labels)

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("Export %s (%s)", r.RunID, r.Platform))
	t.AppendHeader(table.Row{"Language", "Pages", "Catalog pages", "Catalog items", "WrapIDs", "Exported"})
	for _, label := range labels {
		t.AppendRow(table.Row{
			label,
			r.PagesParsedByLanguageL[label],
			r.CatalogTotalPagesByLanguageL[label],
			r.CatalogTotalCountByLanguageL[label],
			r.WrapIDsFoundByLanguageL[label],
			r.GamesExportedByLanguageL[label],
		})
	}
	t.AppendFooter(table.Row{"Total", "", "", "", r.TotalWrapIDsFound, r.TotalGamesExported})
	p.println(t.Render())

	p.info(fmt.Sprintf("%d segments exported in %.1fs", r.TotalSegmentsExported, r.DurationSeconds))
	for _, path := range r.Files {
		p.hint(path)
	}

	if len(r.Failures) > 0 {
		ft := table.NewWriter()
		ft.SetStyle(table.StyleLight)
		ft.SetTitle(fmt.Sprintf("%d failed", r.FailedGames))
		ft.AppendHeader(table.Row{"WrapID", "Type", "Message"})
		for _, f := range r.Failures {
			ft.AppendRow(table.Row{f.WrapID, f.Kind, f.Message})
		}
		ft.SetColumnConfigs([]table.ColumnConfig{
			{Number: 3, WidthMax: failureMessageWidth},
		})
		p.println(ft.Render())
	}

	p.progress(model.ProgressEvent{Message: "Installer JSON export completed.", Level: model.LevelSuccess})
}
