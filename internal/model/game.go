package model

import (
	"strings"
)

// GameInfo describes one catalog item and the installer segments it is
// distributed as.
//
// GameInfo is produced by the XML-RPC game info lookup and never modified
// afterwards. Segments is never nil but may be empty; a game without segments
// is skipped by the exporter.
//
// Example:
//
//	game := model.NewGameInfo(id, "12345", "Mystery Case Files", segments)
//	fmt.Println(game.DisplayName()) // "12345 - Mystery Case Files"
type GameInfo struct {
	// WrapID is the identifier the game was looked up with.
	WrapID WrapID

	// ID is the numeric game id reported by the server.
	ID string

	// Name is the display name, already sanitized for use in file names.
	Name string

	// Segments lists the installer parts in server order.
	Segments []Segment
}

// NewGameInfo creates a GameInfo, replacing a nil segment list with an
// empty one.
func NewGameInfo(id WrapID, gameID, name string, segments []Segment) *GameInfo {
	if segments == nil {
		segments = []Segment{}
	}
	return &GameInfo{
		WrapID:   id,
		ID:       gameID,
		Name:     name,
		Segments: segments,
	}
}

// DisplayName returns "<id> - <name>", which is also the name of the
// directory the game is downloaded into.
func (g *GameInfo) DisplayName() string {
	return g.ID + " - " + g.Name
}

// HasSegments reports whether there is anything to download.
func (g *GameInfo) HasSegments() bool {
	return len(g.Segments) > 0
}

// Segment is one binary part of a multi-part installer.
type Segment struct {
	// FileName is the name the part is saved under.
	FileName string

	// URLName is the remote path fragment appended to BaseURL.
	URLName string

	// BaseURL always ends with exactly one '/'.
	BaseURL string
}

// NewSegment creates a Segment, normalizing baseURL to a single trailing slash.
func NewSegment(fileName, urlName, baseURL string) Segment {
	return Segment{
		FileName: fileName,
		URLName:  urlName,
		BaseURL:  NormalizeBaseURL(baseURL),
	}
}

// URL returns the full download URL of the segment.
func (s Segment) URL() string {
	return s.BaseURL + s.URLName
}

// NormalizeBaseURL trims any trailing slashes and appends exactly one.
func NormalizeBaseURL(u string) string {
	return strings.TrimRight(u, "/") + "/"
}

// demoMarker flags trial builds that may not be redistributed.
const demoMarker = ".demo."

// IsDemoFileName reports whether fileName marks a demo segment.
func IsDemoFileName(fileName string) bool {
	return strings.Contains(strings.ToLower(fileName), demoMarker)
}
