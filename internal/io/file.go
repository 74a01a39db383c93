// Package ioutils provides file system utilities for bfg-downloader.
package ioutils

import (
	"errors"
	"html"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	invalidFileNameChars = regexp.MustCompile(`[\\/:*?"<>|]+`)
	whitespaceRun        = regexp.MustCompile(`\s+`)
)

// SanitizeFileName turns a server-provided title into a safe file or folder name.
//
// The following transformations are applied, in order:
//   - HTML entities are decoded (&amp; → &, &#39; → ')
//   - A colon becomes " - " so subtitles stay readable
//   - Apostrophes are removed
//   - Any run of \ / : * ? " < > | becomes a single underscore
//   - Whitespace runs collapse to one space and the result is trimmed
//
// Example:
//
//	SanitizeFileName("Mystery: The Lost Key")  // "Mystery - The Lost Key"
//	SanitizeFileName("Bob&#39;s Diner")         // "Bobs Diner"
//	SanitizeFileName("AC/DC   <Live>")          // "AC_DC _Live_"
func SanitizeFileName(name string) string {
	name = html.UnescapeString(name)
	name = strings.ReplaceAll(name, ":", " - ")
	name = strings.ReplaceAll(name, "'", "")
	name = invalidFileNameChars.ReplaceAllString(name, "_")
	name = whitespaceRun.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// EnsureDir creates a directory and all parent directories if they don't exist.
//
// Directories are created with mode 0755 (rwxr-xr-x).
// If the directory already exists, no error is returned.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileSize returns the length of the file at path.
//
// A missing file is not an error: it reports (0, false, nil).
func FileSize(path string) (size int64, exists bool, err error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return info.Size(), true, nil
}

// OpenForWrite opens path for writing a download.
//
// With resume set, the file is opened in append mode (created if missing).
// Otherwise it is created or truncated.
func OpenForWrite(path string, resume bool) (*os.File, error) {
	if resume {
		return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	}
	return os.Create(path)
}

// WriteFileAtomic writes data to a temporary file next to path and renames it
// into place, so readers never observe a half-written file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
