package model

import (
	"errors"
	"fmt"
	"iter"
	"regexp"
	"strings"
)

// ErrInvalidFormat is returned when text is not a well-formed WrapID.
var ErrInvalidFormat = errors.New("invalid WrapID format")

// wrapIDPattern is shared by ParseWrapID and ExtractWrapIDs.
//
// A WrapID looks like F<number>T<number>L<number>, e.g. F1234T1L1:
//   - F: the game family number
//   - T: the tier (1 = Windows, 2 = Mac)
//   - L: the language partition (1 = English, 2 = German, ...)
var wrapIDPattern = regexp.MustCompile(`(?i)F\d+T\d+L(\d+)`)

// exactWrapIDPattern anchors wrapIDPattern for single-value parsing.
var exactWrapIDPattern = regexp.MustCompile(`^` + wrapIDPattern.String() + `$`)

// WrapID identifies one game in the Big Fish catalog.
//
// A WrapID can only be obtained through ParseWrapID or ExtractWrapIDs, so a
// non-zero WrapID always matches the structural pattern and is upper case.
//
// Example:
//
//	id, err := model.ParseWrapID("f1234t1l2")
//	fmt.Println(id)                 // F1234T1L2
//	fmt.Println(id.PartitionCode()) // 2
//	fmt.Println(id.Label())         // L2
type WrapID struct {
	value string
}

// ParseWrapID validates and normalizes a single WrapID.
//
// Surrounding whitespace is ignored; the remaining text must match the
// pattern in full. Matching is case-insensitive and the result is upper case.
//
// Returns an error wrapping ErrInvalidFormat otherwise.
func ParseWrapID(text string) (WrapID, error) {
	trimmed := strings.TrimSpace(text)
	if !exactWrapIDPattern.MatchString(trimmed) {
		return WrapID{}, fmt.Errorf("%w: %q (expected F<number>T<number>L<number>)", ErrInvalidFormat, text)
	}
	return WrapID{value: strings.ToUpper(trimmed)}, nil
}

// MustParseWrapID is like ParseWrapID but panics on malformed input.
// It is intended for constants and tests.
func MustParseWrapID(text string) WrapID {
	id, err := ParseWrapID(text)
	if err != nil {
		panic(err)
	}
	return id
}

// ExtractWrapIDs scans arbitrary text and yields every non-overlapping WrapID
// found in it, left to right.
//
// The scan is lazy and keeps no state between iterations, so the returned
// sequence can be ranged over any number of times.
//
// Example:
//
//	for id := range model.ExtractWrapIDs("big-fish-f7028t1l1-game") {
//	    fmt.Println(id) // F7028T1L1
//	}
func ExtractWrapIDs(text string) iter.Seq[WrapID] {
	return func(yield func(WrapID) bool) {
		rest := text
		for {
			loc := wrapIDPattern.FindStringIndex(rest)
			if loc == nil {
				return
			}
			if !yield(WrapID{value: strings.ToUpper(rest[loc[0]:loc[1]])}) {
				return
			}
			rest = rest[loc[1]:]
		}
	}
}

// FirstWrapID returns the first WrapID found in text, if any.
func FirstWrapID(text string) (WrapID, bool) {
	for id := range ExtractWrapIDs(text) {
		return id, true
	}
	return WrapID{}, false
}

// String returns the canonical upper-case form.
func (w WrapID) String() string {
	return w.value
}

// IsZero reports whether w was never parsed.
func (w WrapID) IsZero() bool {
	return w.value == ""
}

// PartitionCode returns the digits of the trailing L<number> segment.
// For F1234T1L10 it returns "10".
func (w WrapID) PartitionCode() string {
	m := wrapIDPattern.FindStringSubmatch(w.value)
	if m == nil {
		return ""
	}
	return m[1]
}

// Label returns the language partition label used in export file names,
// e.g. "L1". A zero WrapID yields "L?".
func (w WrapID) Label() string {
	code := w.PartitionCode()
	if code == "" {
		return "L?"
	}
	return "L" + code
}

// MarshalText implements encoding.TextMarshaler.
func (w WrapID) MarshalText() ([]byte, error) {
	return []byte(w.value), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (w *WrapID) UnmarshalText(text []byte) error {
	id, err := ParseWrapID(string(text))
	if err != nil {
		return err
	}
	*w = id
	return nil
}
