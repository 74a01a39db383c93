package ioutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Normal Game", "Normal Game"},
		{"Mystery: The Lost Key", "Mystery - The Lost Key"},
		{"Bob&#39;s Diner", "Bobs Diner"},
		{"Dash &amp; Dine", "Dash & Dine"},
		{"Bob's Diner", "Bobs Diner"},
		{"AC/DC   <Live>", "AC_DC _Live_"},
		{`file\with|pipes`, "file_with_pipes"},
		{"what?*now", "what_now"},
		{`say "hi"`, "say _hi_"},
		{"  padded  ", "padded"},
		{"tabs\tand\nnewlines", "tabs and newlines"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFileName(tt.input))
		})
	}
}

func TestFileSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "part.bin")

	size, exists, err := FileSize(path)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Zero(t, size)

	require.NoError(t, os.WriteFile(path, []byte("12345"), 0644))

	size, exists, err = FileSize(path)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, int64(5), size)
}

func TestOpenForWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "part.bin")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))

	f, err := OpenForWrite(path, true)
	require.NoError(t, err)
	_, err = f.Write([]byte("def"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(data))

	f, err = OpenForWrite(path, false)
	require.NoError(t, err)
	_, err = f.Write([]byte("xyz"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "xyz", string(data))
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meta.json")

	require.NoError(t, WriteFileAtomic(path, []byte(`{"a":1}`)))
	require.NoError(t, WriteFileAtomic(path, []byte(`{"a":2}`)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")

	require.NoError(t, EnsureDir(filepath.Join(dir, "a", "b")))
	require.NoError(t, EnsureDir(filepath.Join(dir, "a", "b")))
}
