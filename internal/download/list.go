package download

import (
	"fmt"
	"strings"

	ioutils "github.com/bfgdl/bfg-downloader/internal/io"
	"github.com/bfgdl/bfg-downloader/internal/model"
)

// ListFile is the name of the download list written next to the games.
const ListFile = "download-list.txt"

// ListFormat represents supported download list layouts.
//
// Each format targets a different external tool:
//   - Aria2: input file for "aria2c -i", one out= option per URL
//   - URLs: bare URLs, one per line, for wget or curl
type ListFormat int

const (
	// FormatAria2 groups URLs per game under a comment line.
	FormatAria2 ListFormat = iota

	// FormatURLs writes only the URLs.
	FormatURLs
)

// ParseListFormat accepts "aria2" or "urls".
func ParseListFormat(s string) (ListFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "aria2":
		return FormatAria2, nil
	case "urls":
		return FormatURLs, nil
	default:
		return 0, fmt.Errorf("invalid list format %q (use aria2 or urls)", s)
	}
}

// ListCreator renders resolved games as a download list instead of
// downloading them.
//
// Example:
//
//	creator := NewListCreator(FormatAria2)
//	content := creator.CreateList(games)
//	os.WriteFile("download-list.txt", []byte(content), 0644)
//
//	// Result:
//	// # 42 - Mystery Case Files
//	// http://binscentral.bigfishgames.com/downloads/f1t1l1/part1.bin
//	//  out=part1.bin
//	//
type ListCreator struct {
	format ListFormat
}

// NewListCreator creates a ListCreator for the given format.
func NewListCreator(format ListFormat) *ListCreator {
	return &ListCreator{format: format}
}

// CreateList generates the list for games, in the order given.
func (c *ListCreator) CreateList(games []*model.GameInfo) string {
	switch c.format {
	case FormatURLs:
		return c.createURLs(games)
	default:
		return c.createAria2(games)
	}
}

// createAria2 writes, per game, a "# <id> - <name>" line, then each URL
// followed by an indented out= line, then a blank line.
func (c *ListCreator) createAria2(games []*model.GameInfo) string {
	var sb strings.Builder

	for _, game := range games {
		sb.WriteString("# " + ioutils.SanitizeFileName(game.DisplayName()) + "\n")
		for _, seg := range game.Segments {
			sb.WriteString(seg.URL() + "\n")
			sb.WriteString(" out=" + seg.FileName + "\n")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func (c *ListCreator) createURLs(games []*model.GameInfo) string {
	var sb strings.Builder

	for _, game := range games {
		for _, seg := range game.Segments {
			sb.WriteString(seg.URL() + "\n")
		}
	}

	return sb.String()
}
