package bigfish

import (
	"io"

	"github.com/PuerkitoBio/goquery"

	"github.com/bfgdl/bfg-downloader/internal/model"
)

// ExtractWrapIDsFromHTML collects the WrapIDs linked from a saved catalog
// page. Every <a href> is scanned; ids are returned once, in document order.
//
// Example:
//
//	f, _ := os.Open("games.html")
//	defer f.Close()
//	ids, err := bigfish.ExtractWrapIDsFromHTML(f)
func ExtractWrapIDsFromHTML(r io.Reader) ([]model.WrapID, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	var ids []model.WrapID
	seen := make(map[model.WrapID]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		for id := range model.ExtractWrapIDs(href) {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	})
	return ids, nil
}
