package export

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	ioutils "github.com/bfgdl/bfg-downloader/internal/io"
	"github.com/bfgdl/bfg-downloader/internal/logger"
	"github.com/bfgdl/bfg-downloader/internal/model"
)

// CrawlConcurrency bounds how many languages are paginated at once,
// independently of Options.Jobs.
const CrawlConcurrency = 3

// DefaultPageSize is the catalog page size used when Options.PageSize is 0.
const DefaultPageSize = 250

// Format selects how partition files are laid out.
type Format string

const (
	FormatPretty Format = "pretty"
	FormatMin    Format = "min"
)

// ParseFormat accepts "pretty" or "min" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatPretty, FormatMin:
		return f, nil
	default:
		return "", fmt.Errorf("invalid export format %q (use pretty or min)", s)
	}
}

// CatalogClient fetches one page of the catalog listing.
type CatalogClient interface {
	FetchPage(ctx context.Context, platform model.Platform, languageID string, page, pageSize int) (*model.CatalogPage, error)
}

// GameInfoResolver resolves a WrapID to its game info.
type GameInfoResolver interface {
	GetGameInfo(ctx context.Context, id model.WrapID) (*model.GameInfo, error)
}

// Options configures one export run.
type Options struct {
	Platform  model.Platform
	Languages []model.Language
	Format    Format

	// Jobs bounds concurrent game info lookups. Must be at least 1.
	Jobs int

	// Limit caps the number of WrapIDs resolved. Zero means no cap.
	Limit int

	// PageSize of catalog requests. Default: DefaultPageSize
	PageSize int

	// OutputDir receives the partition files and the report.
	OutputDir string

	// MetricsFile, when set, receives the metrics in text format after a
	// successful run.
	MetricsFile string
}

func (o *Options) validate() error {
	if len(o.Languages) == 0 {
		return errors.New("no languages to export")
	}
	if o.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", o.Jobs)
	}
	if o.Limit < 0 {
		return fmt.Errorf("export limit must not be negative, got %d", o.Limit)
	}
	if o.PageSize == 0 {
		o.PageSize = DefaultPageSize
	}
	if o.PageSize < 1 {
		return fmt.Errorf("page size must be at least 1, got %d", o.PageSize)
	}
	if o.Format == "" {
		o.Format = FormatPretty
	}
	if o.OutputDir == "" {
		o.OutputDir = "."
	}
	return nil
}

// Exporter crawls the catalog and exports every resolvable game into one
// JSON file per language partition.
//
// A run goes through these stages:
//  1. Crawl: each language is paginated until an empty page or its last
//     page, at most CrawlConcurrency languages at a time
//  2. Merge: WrapIDs are deduplicated and capped by Options.Limit
//  3. Resolve: Options.Jobs workers look up game info and stream each game
//     with segments to the file of its own WrapID label
//  4. Finalize: every partition file is closed and the report is written
//
// Lookup failures are recorded in the report and never abort the run.
// Catalog errors and cancellation do.
//
// Example usage:
//
//	exporter := export.NewExporter(catalog, gameInfo, log, func(e model.ProgressEvent) {
//	    fmt.Println(e.Message)
//	})
//	report, err := exporter.Export(ctx, export.Options{
//	    Platform:  model.PlatformWindows,
//	    Languages: []model.Language{lang},
//	    Jobs:      8,
//	})
type Exporter struct {
	catalog    CatalogClient
	resolver   GameInfoResolver
	log        logger.Logger
	metrics    *Metrics
	onProgress func(model.ProgressEvent)
}

// NewExporter creates an Exporter. log and onProgress may be nil.
func NewExporter(catalog CatalogClient, resolver GameInfoResolver, log logger.Logger, onProgress func(model.ProgressEvent)) *Exporter {
	if log == nil {
		log = logger.NewNop()
	}
	return &Exporter{
		catalog:    catalog,
		resolver:   resolver,
		log:        log,
		metrics:    NewMetrics(),
		onProgress: onProgress,
	}
}

// Metrics returns the metrics updated by every run.
func (e *Exporter) Metrics() *Metrics {
	return e.metrics
}

// partitionResult is what one language crawl contributes to the report.
type partitionResult struct {
	label       string
	wrapIDs     []model.WrapID
	pagesParsed int
	totalPages  int
	totalCount  int
}

// run is the mutable state of one Export call, shared by its workers.
type run struct {
	opts      Options
	writers   *writerTable
	failures  failureList
	failed    atomic.Int64
	segments  atomic.Int64
	processed atomic.Int64
	total     int
}

// Export performs one run and returns its report.
//
// Partition files are closed on every exit path. The report is written only
// when the run completes; on cancellation ctx.Err() is returned.
func (e *Exporter) Export(ctx context.Context, opts Options) (*Report, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if err := ioutils.EnsureDir(opts.OutputDir); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	started := time.Now().UTC()
	log := e.log.With(logger.String("platform", opts.Platform.String()))

	partitions, err := e.crawl(ctx, opts)
	if err != nil {
		return nil, err
	}

	ids, foundByLabel := mergeWrapIDs(partitions, opts.Limit)
	for label, n := range foundByLabel {
		e.metrics.WrapIDsFound.WithLabelValues(label).Set(float64(n))
	}

	log.Info("Resolving game info", logger.Int("wrap_ids", len(ids)), logger.Int("jobs", opts.Jobs))
	e.progress(model.ProgressEvent{
		Message: fmt.Sprintf("Resolving %d WrapID(s) with %d job(s)", len(ids), opts.Jobs),
		Level:   model.LevelInfo,
	})

	r := &run{
		opts:    opts,
		writers: newWriterTable(opts.OutputDir, opts.Platform.String(), opts.Format == FormatPretty),
		total:   len(ids),
	}

	resolveErr := e.resolve(ctx, r, ids)
	closeErr := r.writers.closeAll()
	if resolveErr != nil {
		return nil, resolveErr
	}
	if closeErr != nil {
		return nil, closeErr
	}

	finished := time.Now().UTC()
	report := e.buildReport(r, partitions, foundByLabel, len(ids), started, finished)

	data, err := report.MarshalIndented()
	if err != nil {
		return nil, err
	}
	if err := ioutils.WriteFileAtomic(filepath.Join(opts.OutputDir, MetaFileName(opts.Platform.String())), data); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}

	e.metrics.RunDurationSeconds.Set(report.DurationSeconds)
	e.metrics.LastRunTimestamp.Set(float64(finished.Unix()))
	if opts.MetricsFile != "" {
		if err := e.metrics.WriteTextfile(opts.MetricsFile); err != nil {
			log.Warn("Failed to write metrics file", logger.String("path", opts.MetricsFile), logger.Error(err))
		}
	}

	log.Info("Export complete",
		logger.Int("games", report.TotalGamesExported),
		logger.Int("failed", report.FailedGames),
		logger.Duration("duration", finished.Sub(started)),
	)
	e.progress(model.ProgressEvent{
		Message: fmt.Sprintf("Exported %d game(s), %d failed", report.TotalGamesExported, report.FailedGames),
		Level:   model.LevelSuccess,
	})
	return report, nil
}

// crawl paginates every language, at most CrawlConcurrency at a time.
func (e *Exporter) crawl(ctx context.Context, opts Options) ([]partitionResult, error) {
	results := make([]partitionResult, len(opts.Languages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(CrawlConcurrency)

	for i, lang := range opts.Languages {
		g.Go(func() error {
			res, err := e.crawlPartition(gctx, opts, lang)
			results[i] = res
			return err
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return results, nil
}

// crawlPartition requests pages 1, 2, ... strictly in order, stopping at an
// empty page or once the total page count reported by page 1 is reached.
func (e *Exporter) crawlPartition(ctx context.Context, opts Options, lang model.Language) (partitionResult, error) {
	res := partitionResult{label: lang.Label}
	seen := make(map[model.WrapID]struct{})

	e.log.Info("Enumerating catalog",
		logger.String("platform", opts.Platform.String()),
		logger.String("language", lang.Label),
	)

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		p, err := e.catalog.FetchPage(ctx, opts.Platform, lang.CatalogID, page, opts.PageSize)
		if err != nil {
			return res, fmt.Errorf("catalog %s page %d: %w", lang.Label, page, err)
		}
		e.metrics.CatalogPagesTotal.WithLabelValues(lang.Label).Inc()

		if page == 1 {
			res.totalPages = p.TotalPages
			res.totalCount = p.TotalCount
		}
		res.pagesParsed = page

		if p.Empty() {
			break
		}
		for _, id := range p.WrapIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			res.wrapIDs = append(res.wrapIDs, id)
		}

		e.progress(model.ProgressEvent{
			Message: fmt.Sprintf("Catalog %s page %d/%d: %d id(s), %d so far of %d",
				lang.Label, page, res.totalPages, len(p.WrapIDs), len(res.wrapIDs), res.totalCount),
			Level: model.LevelVerbose,
		})

		if res.totalPages > 0 && page >= res.totalPages {
			break
		}
	}
	return res, nil
}

// mergeWrapIDs concatenates the partitions in order, drops repeats and
// applies the cap. It also returns the distinct count per partition.
func mergeWrapIDs(partitions []partitionResult, limit int) ([]model.WrapID, map[string]int) {
	foundByLabel := make(map[string]int, len(partitions))
	seen := make(map[model.WrapID]struct{})
	var ids []model.WrapID

	for _, p := range partitions {
		foundByLabel[p.label] = len(p.wrapIDs)
		for _, id := range p.wrapIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, foundByLabel
}

// resolve feeds ids to opts.Jobs workers. Only cancellation and write
// errors stop it.
func (e *Exporter) resolve(ctx context.Context, r *run, ids []model.WrapID) error {
	queue := make(chan model.WrapID)

	g, gctx := errgroup.WithContext(ctx)
	for range r.opts.Jobs {
		g.Go(func() error {
			for id := range queue {
				if err := e.resolveOne(gctx, r, id); err != nil {
					return err
				}
			}
			return nil
		})
	}

feed:
	for _, id := range ids {
		select {
		case queue <- id:
		case <-gctx.Done():
			break feed
		}
	}
	close(queue)

	err := g.Wait()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (e *Exporter) resolveOne(ctx context.Context, r *run, id model.WrapID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n := r.processed.Add(1)

	game, err := e.resolver.GetGameInfo(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.recordFailure(r, id, err)
		return nil
	}

	if !game.HasSegments() {
		e.log.Debug("Skipping game without segments", logger.String("wrap_id", id.String()))
		return nil
	}

	label := id.Label()
	w, err := r.writers.get(label)
	if err != nil {
		return fmt.Errorf("open partition %s: %w", label, err)
	}
	if err := w.Write(NewGameRecord(game)); err != nil {
		return fmt.Errorf("write %s: %w", id, err)
	}

	r.segments.Add(int64(len(game.Segments)))
	e.metrics.GamesExportedTotal.WithLabelValues(label).Inc()
	e.metrics.SegmentsExportedTotal.Add(float64(len(game.Segments)))

	e.progress(model.ProgressEvent{
		Message: fmt.Sprintf("[%d/%d] %s: %s (%d segment(s))",
			n, r.total, id, game.DisplayName(), len(game.Segments)),
		Level: model.LevelVerbose,
	})
	return nil
}

func (e *Exporter) recordFailure(r *run, id model.WrapID, err error) {
	kind := FailureKind(err)
	r.failed.Add(1)
	r.failures.add(Failure{WrapID: id.String(), Kind: kind, Message: err.Error()})
	e.metrics.FailuresTotal.WithLabelValues(kind).Inc()

	e.log.Warn("Failed to export WrapID",
		logger.String("wrap_id", id.String()),
		logger.String("kind", kind),
		logger.Error(err),
	)
	e.progress(model.ProgressEvent{
		Message: fmt.Sprintf("Failed to export %s: %v", id, err),
		Level:   model.LevelWarning,
	})
}

func (e *Exporter) buildReport(r *run, partitions []partitionResult, foundByLabel map[string]int, totalIDs int, started, finished time.Time) *Report {
	report := &Report{
		RunID:                        uuid.NewString(),
		Platform:                     r.opts.Platform.String(),
		ExportFormat:                 string(r.opts.Format),
		GeneratedAtUTC:               finished,
		StartedAtUTC:                 started,
		FinishedAtUTC:                finished,
		DurationSeconds:              finished.Sub(started).Seconds(),
		PageSize:                     r.opts.PageSize,
		PagesParsedByLanguageL:       make(map[string]int, len(partitions)),
		WrapIDsFoundByLanguageL:      foundByLabel,
		GamesExportedByLanguageL:     r.writers.counts(),
		CatalogTotalPagesByLanguageL: make(map[string]int, len(partitions)),
		CatalogTotalCountByLanguageL: make(map[string]int, len(partitions)),
		TotalWrapIDsFound:            totalIDs,
		TotalSegmentsExported:        int(r.segments.Load()),
		FailedGames:                  int(r.failed.Load()),
		Failures:                     r.failures.sorted(),
		Jobs:                         r.opts.Jobs,
		Files:                        r.writers.paths(),
	}
	if r.opts.Limit > 0 {
		limit := r.opts.Limit
		report.ExportLimit = &limit
	}
	for _, p := range partitions {
		report.PagesParsedByLanguageL[p.label] = p.pagesParsed
		report.CatalogTotalPagesByLanguageL[p.label] = p.totalPages
		report.CatalogTotalCountByLanguageL[p.label] = p.totalCount
	}
	for _, n := range report.GamesExportedByLanguageL {
		report.TotalGamesExported += n
	}
	return report
}

func (e *Exporter) progress(event model.ProgressEvent) {
	if e.onProgress != nil {
		e.onProgress(event)
	}
}
