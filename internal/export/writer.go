package export

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

const writeBufferSize = 64 * 1024

// ErrWriterClosed is returned by Write after Close.
var ErrWriterClosed = errors.New("partition writer closed")

// PartitionWriter streams GameRecords into a JSON array file.
//
// The opening bracket is written on creation, each Write appends one
// complete element and Close writes the closing bracket. Writes are
// serialized, so concurrent callers never interleave partial records.
//
// Example:
//
//	w, err := NewPartitionWriter("installers_Windows_L1.json", true)
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//	err = w.Write(record)
type PartitionWriter struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	buf    *bufio.Writer
	pretty bool
	count  int
	closed bool
}

// NewPartitionWriter creates (or truncates) path and opens the array.
func NewPartitionWriter(path string, pretty bool) (*PartitionWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := &PartitionWriter{
		path:   path,
		file:   f,
		buf:    bufio.NewWriterSize(f, writeBufferSize),
		pretty: pretty,
	}
	if err := w.buf.WriteByte('['); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// Write appends one record.
func (w *PartitionWriter) Write(rec GameRecord) error {
	var data []byte
	var err error
	if w.pretty {
		data, err = json.MarshalIndent(rec, "  ", "  ")
	} else {
		data, err = json.Marshal(rec)
	}
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}
	if w.count > 0 {
		if err := w.buf.WriteByte(','); err != nil {
			return err
		}
	}
	if w.pretty {
		if _, err := w.buf.WriteString("\n  "); err != nil {
			return err
		}
	}
	if _, err := w.buf.Write(data); err != nil {
		return err
	}
	w.count++
	return nil
}

// Count returns the number of records written.
func (w *PartitionWriter) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Path returns the file the writer streams to.
func (w *PartitionWriter) Path() string {
	return w.path
}

// Close terminates the array, flushes and closes the file. Only the first
// call has any effect.
func (w *PartitionWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	tail := "]"
	if w.pretty {
		tail = "\n]\n"
		if w.count == 0 {
			tail = "]\n"
		}
	}

	_, err := w.buf.WriteString(tail)
	if err == nil {
		err = w.buf.Flush()
	}
	if cerr := w.file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("close %s: %w", w.path, err)
	}
	return nil
}

// writerTable owns one PartitionWriter per partition label, created on
// first use.
type writerTable struct {
	mu       sync.Mutex
	dir      string
	platform string
	pretty   bool
	writers  map[string]*PartitionWriter
}

func newWriterTable(dir, platform string, pretty bool) *writerTable {
	return &writerTable{
		dir:      dir,
		platform: platform,
		pretty:   pretty,
		writers:  make(map[string]*PartitionWriter),
	}
}

// PartitionFileName returns the file a partition is exported to.
func PartitionFileName(platform, label string) string {
	return fmt.Sprintf("installers_%s_%s.json", platform, label)
}

// MetaFileName returns the file the run report is written to.
func MetaFileName(platform string) string {
	return fmt.Sprintf("installers_%s_meta.json", platform)
}

func (t *writerTable) get(label string) (*PartitionWriter, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if w, ok := t.writers[label]; ok {
		return w, nil
	}
	w, err := NewPartitionWriter(filepath.Join(t.dir, PartitionFileName(t.platform, label)), t.pretty)
	if err != nil {
		return nil, err
	}
	t.writers[label] = w
	return w, nil
}

// closeAll closes every writer, returning the joined errors.
func (t *writerTable) closeAll() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error
	for _, w := range t.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *writerTable) counts() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]int, len(t.writers))
	for label, w := range t.writers {
		out[label] = w.Count()
	}
	return out
}

func (t *writerTable) paths() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, 0, len(t.writers))
	for _, w := range t.writers {
		out = append(out, w.Path())
	}
	slices.Sort(out)
	return out
}
