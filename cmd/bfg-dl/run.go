package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bfgdl/bfg-downloader/internal/bigfish"
	"github.com/bfgdl/bfg-downloader/internal/config"
	"github.com/bfgdl/bfg-downloader/internal/download"
	"github.com/bfgdl/bfg-downloader/internal/export"
	bfghttp "github.com/bfgdl/bfg-downloader/internal/http"
	"github.com/bfgdl/bfg-downloader/internal/logger"
	"github.com/bfgdl/bfg-downloader/internal/model"
)

// InstallersDir is scanned by --extract, relative to the output directory.
const InstallersDir = "installers"

var (
	errNoWrapIDs = errors.New("no WrapIDs given: pass them as arguments, use -e to scan installers or --from-html")
	errNoGames   = errors.New("no valid games found")
)

// services bundles the clients a run needs.
type services struct {
	log      logger.Logger
	client   *bfghttp.Client
	catalog  *bigfish.Catalog
	gameInfo *bigfish.GameInfoClient
}

func newServices(settings *config.Settings) (*services, error) {
	log, err := logger.New(logger.Config{
		Level:  settings.LogLevel,
		Format: settings.LogFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	httpOpts := bfghttp.DefaultOptions()
	httpOpts.UserAgent = settings.UserAgent
	client := bfghttp.NewClient(httpOpts)

	return &services{
		log:    log,
		client: client,
		catalog: bigfish.NewCatalog(client, bigfish.CatalogOptions{
			URL:               settings.CatalogURL,
			RequestsPerSecond: settings.CatalogRPS,
			Logger:            log,
		}),
		gameInfo: bigfish.NewGameInfoClient(client, bigfish.GameInfoOptions{
			URL:         settings.GameInfoURL,
			DownloadURL: settings.DownloadURL,
			Logger:      log,
		}),
	}, nil
}

func run(ctx context.Context, out io.Writer, settings *config.Settings, opts *options, args []string) error {
	svc, err := newServices(settings)
	if err != nil {
		return err
	}
	defer svc.log.Sync()

	p := newPrinter(out, opts.verbose || settings.EnableDebugLogging)
	p.header()

	if opts.exportFormat != "" {
		return runExport(ctx, p, svc, settings, opts)
	}
	return runDirect(ctx, p, svc, settings, opts, args)
}

func runExport(ctx context.Context, p *printer, svc *services, settings *config.Settings, opts *options) error {
	format, err := export.ParseFormat(opts.exportFormat)
	if err != nil {
		return err
	}

	p.info(fmt.Sprintf("Exporting installer lists to JSON (%s) for %s...", format, settings.Platform()))

	exporter := export.NewExporter(svc.catalog, svc.gameInfo, svc.log, p.progress)
	report, err := exporter.Export(ctx, export.Options{
		Platform:    settings.Platform(),
		Languages:   settings.Languages(),
		Format:      format,
		Jobs:        settings.Jobs,
		Limit:       opts.exportLimit,
		PageSize:    settings.CatalogPageSize,
		OutputDir:   settings.OutputDir,
		MetricsFile: settings.MetricsFile,
	})
	if err != nil {
		return err
	}

	p.report(report)
	return nil
}

func runDirect(ctx context.Context, p *printer, svc *services, settings *config.Settings, opts *options, args []string) error {
	ids, err := collectWrapIDs(p, settings.OutputDir, opts, args)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return errNoWrapIDs
	}

	listFormat, err := download.ParseListFormat(settings.ListFormat)
	if err != nil {
		return err
	}

	p.info(fmt.Sprintf("Processing %d game(s)...", len(ids)))

	manager := download.NewManager(svc.client, svc.gameInfo, download.Options{
		OutputDir:          settings.OutputDir,
		Jobs:               settings.Jobs,
		MaxConcurrentGames: settings.MaxConcurrentGames,
		ListFormat:         listFormat,
	}, svc.log, p.progress)

	if err := manager.Initialize(ctx, ids); err != nil {
		return err
	}
	games := manager.Games()
	if len(games) == 0 {
		return errNoGames
	}
	p.games(games)

	if opts.download {
		segments := 0
		for _, game := range games {
			segments += len(game.Segments)
		}
		p.info(fmt.Sprintf("Starting downloads with %d segments...", segments))

		err := manager.StartDownloads(ctx)
		p.downloadSummary(manager.GetProgress())
		return err
	}

	if !settings.GenScript {
		return nil
	}
	path, err := manager.WriteDownloadList()
	if err != nil {
		return err
	}
	if listFormat == download.FormatAria2 {
		p.hint(fmt.Sprintf("Use with: aria2c -i %q", path))
	} else {
		p.hint(fmt.Sprintf("Use with: wget -i %q", path))
	}
	return nil
}

// collectWrapIDs returns the identifiers to process, from the installers
// directory (-e), an HTML page (--from-html) or the arguments, in that order
// of priority. Invalid arguments are reported and skipped.
func collectWrapIDs(p *printer, outputDir string, opts *options, args []string) ([]model.WrapID, error) {
	switch {
	case opts.extract:
		dir := filepath.Join(outputDir, InstallersDir)
		p.info(fmt.Sprintf("Scanning for installers in %s...", dir))
		return bigfish.ScanInstallers(dir)

	case opts.fromHTML != "":
		f, err := os.Open(opts.fromHTML)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return bigfish.ExtractWrapIDsFromHTML(f)
	}

	ids := make([]model.WrapID, 0, len(args))
	seen := make(map[model.WrapID]struct{}, len(args))
	for _, arg := range args {
		id, err := model.ParseWrapID(arg)
		if err != nil {
			p.progress(model.ProgressEvent{Message: err.Error(), Level: model.LevelWarning})
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}
