package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readRecords(t *testing.T, path string) []GameRecord {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var records []GameRecord
	require.NoError(t, json.Unmarshal(data, &records), "file must be a complete JSON array:\n%s", data)
	return records
}

func TestPartitionWriter_Concurrent(t *testing.T) {
	for _, pretty := range []bool{true, false} {
		t.Run(fmt.Sprintf("pretty=%v", pretty), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out.json")
			w, err := NewPartitionWriter(path, pretty)
			require.NoError(t, err)

			const workers, perWorker = 32, 40
			var wg sync.WaitGroup
			for i := range workers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := range perWorker {
						rec := GameRecord{
							WrapID:       fmt.Sprintf("F%dT1L1", i*perWorker+j),
							GameID:       fmt.Sprint(i),
							Name:         "Game with a reasonably long name to widen each write",
							SegmentCount: 1,
							Segments:     []SegmentRecord{{URL: "http://h/x", FileName: "x", URLName: "x"}},
						}
						assert.NoError(t, w.Write(rec))
					}
				}()
			}
			wg.Wait()

			require.NoError(t, w.Close())
			require.NoError(t, w.Close(), "second close is a no-op")
			assert.ErrorIs(t, w.Write(GameRecord{}), ErrWriterClosed)

			records := readRecords(t, path)
			assert.Len(t, records, workers*perWorker)
			assert.Equal(t, workers*perWorker, w.Count())

			seen := make(map[string]bool)
			for _, r := range records {
				assert.False(t, seen[r.WrapID], "duplicate %s", r.WrapID)
				seen[r.WrapID] = true
				assert.Len(t, r.Segments, 1)
			}
		})
	}
}

func TestPartitionWriter_Empty(t *testing.T) {
	for _, pretty := range []bool{true, false} {
		path := filepath.Join(t.TempDir(), "empty.json")
		w, err := NewPartitionWriter(path, pretty)
		require.NoError(t, err)
		require.NoError(t, w.Close())

		assert.Empty(t, readRecords(t, path))
	}
}

func TestWriterTable_CreatesOncePerLabel(t *testing.T) {
	dir := t.TempDir()
	table := newWriterTable(dir, "Windows", false)

	var wg sync.WaitGroup
	writers := make([]*PartitionWriter, 16)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := table.get("L1")
			assert.NoError(t, err)
			writers[i] = w
		}()
	}
	wg.Wait()

	for _, w := range writers {
		assert.Same(t, writers[0], w)
	}

	_, err := table.get("L2")
	require.NoError(t, err)
	require.NoError(t, table.closeAll())

	assert.Equal(t, []string{
		filepath.Join(dir, "installers_Windows_L1.json"),
		filepath.Join(dir, "installers_Windows_L2.json"),
	}, table.paths())
	assert.Equal(t, map[string]int{"L1": 0, "L2": 0}, table.counts())
}
