// Package ioutils provides file system utilities for bfg-downloader.
//
// This package contains functions for:
//   - Filename sanitization for cross-platform compatibility
//   - Directory creation
//   - Opening download targets for resume (append) or fresh writes
//   - Atomic replacement of small report files
//
// # Filename Sanitization
//
// Use SanitizeFileName before any server-provided name becomes part of a path:
//
//	safe := ioutils.SanitizeFileName("Dark Tales: Edgar&#39;s Story") // "Dark Tales - Edgars Story"
//
// # Resumable Writes
//
//	offset, _, err := ioutils.FileSize(path)
//	f, err := ioutils.OpenForWrite(path, offset > 0)
package ioutils
