package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bfgdl/bfg-downloader/internal/bigfish"
	bfghttp "github.com/bfgdl/bfg-downloader/internal/http"
	"github.com/bfgdl/bfg-downloader/internal/model"
)

// segmentServer serves files by path. With honourRange unset it ignores Range
// headers and always sends the whole body.
type segmentServer struct {
	files       map[string][]byte
	honourRange bool

	mu     sync.Mutex
	ranges []string
}

func (s *segmentServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, ok := s.files[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}

	rng := r.Header.Get("Range")
	s.mu.Lock()
	s.ranges = append(s.ranges, rng)
	s.mu.Unlock()

	if rng == "" || !s.honourRange {
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		w.Write(data)
		return
	}

	offset, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(rng, "bytes="), "-"))
	if err != nil {
		http.Error(w, "bad range", http.StatusBadRequest)
		return
	}
	if offset >= len(data) {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", len(data)))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, len(data)-1, len(data)))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)-offset))
	w.WriteHeader(http.StatusPartialContent)
	w.Write(data[offset:])
}

func (s *segmentServer) seenRanges() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ranges...)
}

type progressLog struct {
	mu     sync.Mutex
	events []model.ProgressEvent
}

func (p *progressLog) add(event model.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *progressLog) count(level model.ProgressLevel) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Level == level {
			n++
		}
	}
	return n
}

type fakeResolver struct {
	games map[model.WrapID]*model.GameInfo
}

func (f *fakeResolver) GetGameInfo(_ context.Context, id model.WrapID) (*model.GameInfo, error) {
	game, ok := f.games[id]
	if !ok {
		return nil, &bigfish.ProtocolError{Op: "gameinfo", WrapID: id.String(), Reason: "game info not found"}
	}
	return game, nil
}

// peakCounter tracks how many callers are inside a section at once.
type peakCounter struct {
	cur, peak atomic.Int32
}

func (p *peakCounter) enter() {
	n := p.cur.Add(1)
	for {
		old := p.peak.Load()
		if n <= old || p.peak.CompareAndSwap(old, n) {
			return
		}
	}
}

func (p *peakCounter) leave() { p.cur.Add(-1) }

// slowServer answers every request with a few bytes after a delay and counts
// overlapping requests.
func slowServer(delay time.Duration, inFlight *peakCounter) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inFlight.enter()
		defer inFlight.leave()
		time.Sleep(delay)
		w.Header().Set("Content-Length", "4")
		w.Write([]byte("data"))
	}))
}

func payload(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func newTestManager(t *testing.T, resolver GameInfoResolver, opts Options, events *progressLog) *Manager {
	t.Helper()
	var onProgress func(model.ProgressEvent)
	if events != nil {
		onProgress = events.add
	}
	return NewManager(bfghttp.NewClient(bfghttp.DefaultOptions()), resolver, opts, nil, onProgress)
}

func TestDownloadSegment_Fresh(t *testing.T) {
	data := payload(200_000)
	srv := &segmentServer{files: map[string][]byte{"/d/part1.bin": data}, honourRange: true}
	server := httptest.NewServer(srv)
	defer server.Close()

	dir := t.TempDir()
	m := newTestManager(t, nil, Options{OutputDir: dir, Jobs: 2}, nil)

	seg := model.NewSegment("part1.bin", "part1.bin", server.URL+"/d")
	require.NoError(t, m.DownloadSegment(context.Background(), seg, dir))

	got, err := os.ReadFile(filepath.Join(dir, "part1.bin"))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, got))
	assert.Equal(t, []string{""}, srv.seenRanges())

	received, _, _, _ := m.GetProgress()
	assert.Equal(t, int64(len(data)), received)
}

func TestDownloadSegment_Resume(t *testing.T) {
	data := payload(150_000)
	srv := &segmentServer{files: map[string][]byte{"/d/part1.bin": data}, honourRange: true}
	server := httptest.NewServer(srv)
	defer server.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "part1.bin")
	require.NoError(t, os.WriteFile(path, data[:40_000], 0644))

	m := newTestManager(t, nil, Options{OutputDir: dir, Jobs: 1}, nil)
	seg := model.NewSegment("part1.bin", "part1.bin", server.URL+"/d")
	require.NoError(t, m.DownloadSegment(context.Background(), seg, dir))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, got), "resumed file must match the original byte for byte")
	assert.Equal(t, []string{"bytes=40000-"}, srv.seenRanges())

	received, _, _, _ := m.GetProgress()
	assert.Equal(t, int64(len(data)-40_000), received)
}

func TestDownloadSegment_AlreadyComplete(t *testing.T) {
	data := payload(1000)
	srv := &segmentServer{files: map[string][]byte{"/d/part1.bin": data}, honourRange: true}
	server := httptest.NewServer(srv)
	defer server.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "part1.bin")
	require.NoError(t, os.WriteFile(path, data, 0644))

	m := newTestManager(t, nil, Options{OutputDir: dir}, nil)
	seg := model.NewSegment("part1.bin", "part1.bin", server.URL+"/d")
	require.NoError(t, m.DownloadSegment(context.Background(), seg, dir))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, []string{"bytes=1000-"}, srv.seenRanges())
}

func TestDownloadSegment_RangeIgnored(t *testing.T) {
	data := payload(5000)
	srv := &segmentServer{files: map[string][]byte{"/d/part1.bin": data}}
	server := httptest.NewServer(srv)
	defer server.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "part1.bin")
	require.NoError(t, os.WriteFile(path, []byte("stale prefix"), 0644))

	m := newTestManager(t, nil, Options{OutputDir: dir}, nil)
	seg := model.NewSegment("part1.bin", "part1.bin", server.URL+"/d")
	require.NoError(t, m.DownloadSegment(context.Background(), seg, dir))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, got, "a full response must replace the partial file")
}

func TestDownloadSegment_InvalidFileName(t *testing.T) {
	dir := t.TempDir()
	m := newTestManager(t, nil, Options{OutputDir: dir}, nil)

	for _, name := range []string{"../escape.bin", "sub/part.bin", ".."} {
		seg := model.NewSegment(name, "part.bin", "http://127.0.0.1:1/d")
		err := m.DownloadSegment(context.Background(), seg, dir)
		assert.ErrorIs(t, err, ErrInvalidFileName, name)
	}
}

func TestDownloadGame_FailedSegmentDoesNotBlockOthers(t *testing.T) {
	good := payload(3000)
	srv := &segmentServer{files: map[string][]byte{
		"/d/good1.bin": good,
		"/d/good2.bin": good,
	}, honourRange: true}
	server := httptest.NewServer(srv)
	defer server.Close()

	dir := t.TempDir()
	events := &progressLog{}
	m := newTestManager(t, nil, Options{OutputDir: dir, Jobs: 2}, events)

	game := model.NewGameInfo(model.MustParseWrapID("F1T1L1"), "7", "Broken Game", []model.Segment{
		model.NewSegment("good1.bin", "good1.bin", server.URL+"/d"),
		model.NewSegment("missing.bin", "missing.bin", server.URL+"/d"),
		model.NewSegment("good2.bin", "good2.bin", server.URL+"/d"),
	})

	err := m.DownloadGame(context.Background(), game)
	require.Error(t, err)

	var te *bfghttp.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusNotFound, te.StatusCode)

	gameDir := filepath.Join(dir, GamesDir, "7 - Broken Game")
	for _, name := range []string{"good1.bin", "good2.bin"} {
		got, err := os.ReadFile(filepath.Join(gameDir, name))
		require.NoError(t, err)
		assert.Equal(t, good, got)
	}

	_, complete, failed, _ := m.GetProgress()
	assert.Equal(t, int32(2), complete)
	assert.Equal(t, int32(1), failed)
	assert.Equal(t, 1, events.count(model.LevelError))
	assert.Equal(t, 1, events.count(model.LevelWarning))
}

func TestManager_Initialize(t *testing.T) {
	games := map[model.WrapID]*model.GameInfo{
		model.MustParseWrapID("F1T1L1"): model.NewGameInfo(model.MustParseWrapID("F1T1L1"), "1", "One", nil),
		model.MustParseWrapID("F3T1L1"): model.NewGameInfo(model.MustParseWrapID("F3T1L1"), "3", "Three", nil),
	}
	events := &progressLog{}
	m := newTestManager(t, &fakeResolver{games: games}, Options{OutputDir: t.TempDir(), Jobs: 4}, events)

	ids := []model.WrapID{
		model.MustParseWrapID("F3T1L1"),
		model.MustParseWrapID("F2T1L1"),
		model.MustParseWrapID("F1T1L1"),
	}
	require.NoError(t, m.Initialize(context.Background(), ids))

	got := m.Games()
	require.Len(t, got, 2)
	assert.Equal(t, "3", got[0].ID)
	assert.Equal(t, "1", got[1].ID)
	assert.Equal(t, 1, events.count(model.LevelError))
}

func TestManager_InitializeCanceled(t *testing.T) {
	m := newTestManager(t, &fakeResolver{}, Options{OutputDir: t.TempDir()}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Initialize(ctx, []model.WrapID{model.MustParseWrapID("F1T1L1")})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, m.Games())
}

func gameInfoXML(id, name string, segments ...[2]string) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0"?>
<methodResponse><params><param><value><struct>
 <member><name>gameInfo</name><value><struct>
  <member><name>id</name><value><string>` + id + `</string></value></member>
  <member><name>name</name><value><string>` + name + `</string></value></member>
 </struct></value></member>
 <member><name>downloadInfo</name><value><struct>
  <member><name>segmentList</name><value><array><data>`)
	for _, s := range segments {
		sb.WriteString(`<value><struct>` +
			`<member><name>fileSegmentName</name><value><string>` + s[0] + `</string></value></member>` +
			`<member><name>urlName</name><value><string>` + s[1] + `</string></value></member>` +
			`</struct></value>`)
	}
	sb.WriteString(`</data></array></value></member>
 </struct></value></member>
</struct></value></param></params></methodResponse>`)
	return sb.String()
}

func TestManager_EndToEnd(t *testing.T) {
	part1 := payload(70_000)
	part2 := payload(12_345)
	segments := &segmentServer{files: map[string][]byte{
		"/downloads/f1t1l1/part1.bin": part1,
		"/downloads/f1t1l1/part2.bin": part2,
	}, honourRange: true}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /rpc", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "F1T1L1") {
			http.Error(w, "unknown game", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/xml")
		fmt.Fprint(w, gameInfoXML("42", "Mystery: The Lost Key",
			[2]string{"part1.bin", "f1t1l1/part1.bin"},
			[2]string{"trial.demo.exe", "f1t1l1/trial.demo.exe"},
			[2]string{"part2.bin", "f1t1l1/part2.bin"},
		))
	})
	mux.Handle("/downloads/", segments)
	server := httptest.NewServer(mux)
	defer server.Close()

	client := bfghttp.NewClient(bfghttp.DefaultOptions())
	resolver := bigfish.NewGameInfoClient(client, bigfish.GameInfoOptions{
		URL:         server.URL + "/rpc",
		DownloadURL: server.URL + "/downloads",
	})

	dir := t.TempDir()
	events := &progressLog{}
	m := NewManager(client, resolver, Options{OutputDir: dir, Jobs: 2, MaxConcurrentGames: 2}, nil, events.add)

	ctx := context.Background()
	ids := []model.WrapID{model.MustParseWrapID("F1T1L1"), model.MustParseWrapID("F9T1L1")}
	require.NoError(t, m.Initialize(ctx, ids))
	require.Len(t, m.Games(), 1)

	listPath, err := m.WriteDownloadList()
	require.NoError(t, err)
	list, err := os.ReadFile(listPath)
	require.NoError(t, err)
	assert.Equal(t, "# 42 - Mystery - The Lost Key\n"+
		server.URL+"/downloads/f1t1l1/part1.bin\n out=part1.bin\n"+
		server.URL+"/downloads/f1t1l1/part2.bin\n out=part2.bin\n\n", string(list))

	require.NoError(t, m.StartDownloads(ctx))

	gameDir := filepath.Join(dir, GamesDir, "42 - Mystery - The Lost Key")
	entries, err := os.ReadDir(gameDir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	got1, err := os.ReadFile(filepath.Join(gameDir, "part1.bin"))
	require.NoError(t, err)
	assert.Equal(t, part1, got1)
	got2, err := os.ReadFile(filepath.Join(gameDir, "part2.bin"))
	require.NoError(t, err)
	assert.Equal(t, part2, got2)

	received, complete, failed, total := m.GetProgress()
	assert.Equal(t, int64(len(part1)+len(part2)), received)
	assert.Equal(t, int32(2), complete)
	assert.Zero(t, failed)
	assert.Equal(t, int32(2), total)
	assert.Equal(t, 1, events.count(model.LevelError), "the unknown WrapID is reported")

	// A second run sees complete files and starts from fresh counters.
	require.NoError(t, m.StartDownloads(ctx))
	received, complete, failed, total = m.GetProgress()
	assert.Zero(t, received)
	assert.Equal(t, int32(2), complete)
	assert.Zero(t, failed)
	assert.Equal(t, int32(2), total)
}

func TestDownloadGame_CancelWhileSegmentInFlight(t *testing.T) {
	started := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte{1})
		w.(http.Flusher).Flush()
		select {
		case started <- struct{}{}:
		default:
		}
		<-r.Context().Done()
	}))
	defer server.Close()

	for i := 0; i < 20; i++ {
		m := newTestManager(t, nil, Options{OutputDir: t.TempDir(), Jobs: 1}, nil)
		game := model.NewGameInfo(model.MustParseWrapID("F1T1L1"), "7", "Stalled", []model.Segment{
			model.NewSegment("a.bin", "a.bin", server.URL),
			model.NewSegment("b.bin", "b.bin", server.URL),
			model.NewSegment("c.bin", "c.bin", server.URL),
		})

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- m.DownloadGame(ctx, game) }()

		select {
		case <-started:
		case <-time.After(5 * time.Second):
			cancel()
			t.Fatal("segment request never started")
		}
		time.Sleep(50 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			require.Error(t, err)
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(5 * time.Second):
			t.Fatal("DownloadGame did not return after cancellation")
		}

		_, complete, failed, _ := m.GetProgress()
		assert.Zero(t, complete)
		assert.Equal(t, int32(1), failed, "only the in-flight segment was started")
	}
}

func TestManager_ConcurrencyLimits(t *testing.T) {
	tests := []struct {
		name     string
		jobs     int
		maxGames int
		games    int
		segments int
		bound    int32
	}{
		{name: "segments per game", jobs: 2, maxGames: 1, games: 1, segments: 6, bound: 2},
		{name: "games at once", jobs: 1, maxGames: 2, games: 5, segments: 1, bound: 2},
		{name: "single job", jobs: 1, maxGames: 1, games: 2, segments: 3, bound: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var inFlight peakCounter
			server := slowServer(30*time.Millisecond, &inFlight)
			defer server.Close()

			resolver := &fakeResolver{games: make(map[model.WrapID]*model.GameInfo)}
			var ids []model.WrapID
			for g := 1; g <= tt.games; g++ {
				id := model.MustParseWrapID(fmt.Sprintf("F%dT1L1", g))
				var segs []model.Segment
				for s := 1; s <= tt.segments; s++ {
					name := fmt.Sprintf("part%d.bin", s)
					segs = append(segs, model.NewSegment(name, fmt.Sprintf("g%d/%s", g, name), server.URL))
				}
				resolver.games[id] = model.NewGameInfo(id, strconv.Itoa(g), fmt.Sprintf("Game %d", g), segs)
				ids = append(ids, id)
			}

			m := newTestManager(t, resolver, Options{
				OutputDir:          t.TempDir(),
				Jobs:               tt.jobs,
				MaxConcurrentGames: tt.maxGames,
			}, nil)
			ctx := context.Background()
			require.NoError(t, m.Initialize(ctx, ids))
			require.NoError(t, m.StartDownloads(ctx))

			_, complete, failed, total := m.GetProgress()
			assert.Equal(t, int32(tt.games*tt.segments), total)
			assert.Equal(t, total, complete)
			assert.Zero(t, failed)

			peak := inFlight.peak.Load()
			assert.LessOrEqual(t, peak, tt.bound)
			if tt.bound > 1 {
				assert.Greater(t, peak, int32(1))
			}
		})
	}
}
