package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	bfghttp "github.com/bfgdl/bfg-downloader/internal/http"
	ioutils "github.com/bfgdl/bfg-downloader/internal/io"
	"github.com/bfgdl/bfg-downloader/internal/logger"
	"github.com/bfgdl/bfg-downloader/internal/model"
)

// copyBufferSize is the chunk size segments are streamed to disk with.
const copyBufferSize = 81920

// GamesDir is the directory under Options.OutputDir games are saved in.
const GamesDir = "games"

// ErrInvalidFileName is returned for segments whose file name cannot be used
// on disk.
var ErrInvalidFileName = errors.New("invalid segment file name")

// GameInfoResolver resolves a WrapID to its game info.
type GameInfoResolver interface {
	GetGameInfo(ctx context.Context, id model.WrapID) (*model.GameInfo, error)
}

// Options configures a Manager.
type Options struct {
	// OutputDir holds the games directory and the download list.
	OutputDir string

	// Jobs bounds concurrent game info lookups and concurrent segment
	// downloads of one game (1-64).
	Jobs int

	// MaxConcurrentGames bounds how many games download at once.
	MaxConcurrentGames int

	// ListFormat is used by WriteDownloadList.
	ListFormat ListFormat
}

// Manager coordinates game info resolution and segment downloads.
type Manager struct {
	client   *bfghttp.Client
	resolver GameInfoResolver
	opts     Options
	log      logger.Logger

	games []*model.GameInfo

	receivedBytes    atomic.Int64
	totalSegments    atomic.Int32
	completeSegments atomic.Int32
	failedSegments   atomic.Int32

	onProgress func(model.ProgressEvent)
	mu         sync.RWMutex
}

// NewManager creates a new download Manager. log and onProgress may be nil.
func NewManager(client *bfghttp.Client, resolver GameInfoResolver, opts Options, log logger.Logger, onProgress func(model.ProgressEvent)) *Manager {
	if opts.Jobs < 1 {
		opts.Jobs = 1
	}
	if opts.MaxConcurrentGames < 1 {
		opts.MaxConcurrentGames = 1
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Manager{
		client:     client,
		resolver:   resolver,
		opts:       opts,
		log:        log,
		onProgress: onProgress,
	}
}

// Initialize resolves ids to game info, at most Options.Jobs at a time.
//
// Failed lookups are reported and skipped. Games keep the order of ids.
// Only cancellation is returned as an error.
func (m *Manager) Initialize(ctx context.Context, ids []model.WrapID) error {
	resolved := make([]*model.GameInfo, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Jobs)

	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m.progress(model.ProgressEvent{Message: fmt.Sprintf("Fetching game info: %s", id), Level: model.LevelVerbose})

			game, err := m.resolver.GetGameInfo(gctx, id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				m.log.Warn("Failed to fetch game info", logger.String("wrap_id", id.String()), logger.Error(err))
				m.progress(model.ProgressEvent{Message: fmt.Sprintf("Failed to fetch info for %s: %v", id, err), Level: model.LevelError})
				return nil
			}

			resolved[i] = game
			m.progress(model.ProgressEvent{
				Message: fmt.Sprintf("Found game: %s (%d segments)", game.DisplayName(), len(game.Segments)),
				Level:   model.LevelInfo,
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.games = m.games[:0]
	for _, game := range resolved {
		if game != nil {
			m.games = append(m.games, game)
		}
	}
	return nil
}

// Games returns the games resolved by Initialize.
func (m *Manager) Games() []*model.GameInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*model.GameInfo(nil), m.games...)
}

// WriteDownloadList writes the resolved games as a list to
// <OutputDir>/download-list.txt and returns its path.
func (m *Manager) WriteDownloadList() (string, error) {
	if err := ioutils.EnsureDir(m.opts.OutputDir); err != nil {
		return "", err
	}
	path := filepath.Join(m.opts.OutputDir, ListFile)
	content := NewListCreator(m.opts.ListFormat).CreateList(m.Games())
	if err := ioutils.WriteFileAtomic(path, []byte(content)); err != nil {
		return "", err
	}
	m.progress(model.ProgressEvent{Message: fmt.Sprintf("Download list saved to: %s", path), Level: model.LevelSuccess})
	return path, nil
}

// StartDownloads downloads every resolved game, at most
// Options.MaxConcurrentGames at a time.
//
// A failing game does not stop the others. The returned error joins the
// failures of all games, or is the context error on cancellation.
func (m *Manager) StartDownloads(ctx context.Context) error {
	games := m.Games()
	m.receivedBytes.Store(0)
	m.completeSegments.Store(0)
	m.failedSegments.Store(0)
	m.totalSegments.Store(0)
	for _, game := range games {
		m.totalSegments.Add(int32(len(game.Segments)))
	}

	var mu sync.Mutex
	var errs []error

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.MaxConcurrentGames)

	for _, game := range games {
		g.Go(func() error {
			if err := m.DownloadGame(gctx, game); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", game.DisplayName(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.Join(errs...)
}

// GetProgress returns current download progress.
func (m *Manager) GetProgress() (receivedBytes int64, complete, failed, total int32) {
	return m.receivedBytes.Load(), m.completeSegments.Load(), m.failedSegments.Load(), m.totalSegments.Load()
}

// GameDir returns the directory a game is downloaded into.
func (m *Manager) GameDir(game *model.GameInfo) string {
	return filepath.Join(m.opts.OutputDir, GamesDir, ioutils.SanitizeFileName(game.DisplayName()))
}

// DownloadGame downloads all segments of game into GameDir(game).
//
// Up to Options.Jobs segments transfer at once. Every segment is attempted;
// the failures are joined into the returned error.
func (m *Manager) DownloadGame(ctx context.Context, game *model.GameInfo) error {
	dir := m.GameDir(game)
	if err := ioutils.EnsureDir(dir); err != nil {
		m.progress(model.ProgressEvent{Message: fmt.Sprintf("Error creating directory: %v", err), Level: model.LevelError})
		return err
	}

	m.log.Info("Downloading game", logger.String("game", game.DisplayName()), logger.String("dir", dir))
	m.progress(model.ProgressEvent{Message: fmt.Sprintf("Downloading %s", game.DisplayName()), Level: model.LevelInfo})

	sem := semaphore.NewWeighted(int64(m.opts.Jobs))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error
	var acquireErr error

	for _, seg := range game.Segments {
		if err := sem.Acquire(ctx, 1); err != nil {
			acquireErr = err
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			m.progress(model.ProgressEvent{Message: fmt.Sprintf("  downloading: %s", seg.FileName), Level: model.LevelVerbose})
			if err := m.DownloadSegment(ctx, seg, dir); err != nil {
				m.failedSegments.Add(1)
				m.progress(model.ProgressEvent{Message: fmt.Sprintf("Error downloading %s: %v", seg.FileName, err), Level: model.LevelError})
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return
			}
			m.completeSegments.Add(1)
			m.progress(model.ProgressEvent{Message: fmt.Sprintf("  completed:   %s", seg.FileName), Level: model.LevelVerbose})
		}()
	}
	wg.Wait()
	if acquireErr != nil {
		errs = append(errs, acquireErr)
	}

	if len(errs) > 0 {
		m.progress(model.ProgressEvent{Message: fmt.Sprintf("Finished %s, some segments failed", game.DisplayName()), Level: model.LevelWarning})
		return errors.Join(errs...)
	}
	m.progress(model.ProgressEvent{Message: fmt.Sprintf("Completed download: %s", game.DisplayName()), Level: model.LevelSuccess})
	return nil
}

// DownloadSegment downloads one segment into dir, resuming a partial file.
//
// An existing file's length is used as the start offset of a ranged request.
// A 416 answer means the file is already complete. If the server ignores the
// range and sends the whole body, the file is rewritten from the start.
func (m *Manager) DownloadSegment(ctx context.Context, seg model.Segment, dir string) error {
	name := filepath.Base(seg.FileName)
	if name == "." || name == ".." || name == string(filepath.Separator) || name != seg.FileName {
		return fmt.Errorf("%w: %q", ErrInvalidFileName, seg.FileName)
	}
	path := filepath.Join(dir, name)

	offset, _, err := ioutils.FileSize(path)
	if err != nil {
		return err
	}

	log := m.log.With(logger.String("file", name), logger.String("url", seg.URL()))
	if offset > 0 {
		log.Debug("Resuming download", logger.Int64("offset", offset))
	}

	resp, err := m.client.Open(ctx, seg.URL(), offset)
	if err != nil {
		return fmt.Errorf("download %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.RangeNotSatisfiable() {
		log.Debug("Already complete", logger.Int64("size", offset))
		return nil
	}

	resume := offset > 0 && resp.Partial()
	if offset > 0 && !resume {
		log.Debug("Server ignored range, restarting")
		offset = 0
	}

	f, err := ioutils.OpenForWrite(path, resume)
	if err != nil {
		return err
	}

	total := int64(-1)
	if resp.ContentLength >= 0 {
		total = offset + resp.ContentLength
	}
	last := offset
	pw := &bfghttp.ProgressWriter{
		Writer:  f,
		Total:   total,
		Written: offset,
		OnUpdate: func(written, _ int64) {
			m.receivedBytes.Add(written - last)
			last = written
		},
	}

	_, copyErr := io.CopyBuffer(pw, resp.Body, make([]byte, copyBufferSize))
	closeErr := f.Close()
	if copyErr != nil {
		return fmt.Errorf("download %s: %w", name, copyErr)
	}
	if closeErr != nil {
		return closeErr
	}

	log.Debug("Completed download", logger.Int64("size", pw.Written))
	return nil
}

func (m *Manager) progress(event model.ProgressEvent) {
	if m.onProgress != nil {
		m.onProgress(event)
	}
}
