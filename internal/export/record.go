package export

import "github.com/bfgdl/bfg-downloader/internal/model"

// GameRecord is one element of a partition file.
type GameRecord struct {
	WrapID       string          `json:"wrapId"`
	GameID       string          `json:"gameId"`
	Name         string          `json:"name"`
	SegmentCount int             `json:"segmentCount"`
	Segments     []SegmentRecord `json:"segments"`
}

// SegmentRecord is one installer part of a GameRecord.
type SegmentRecord struct {
	URL      string `json:"url"`
	FileName string `json:"fileName"`
	URLName  string `json:"urlName"`
}

// NewGameRecord converts resolved game info into its exported form.
func NewGameRecord(game *model.GameInfo) GameRecord {
	segments := make([]SegmentRecord, 0, len(game.Segments))
	for _, s := range game.Segments {
		segments = append(segments, SegmentRecord{
			URL:      s.URL(),
			FileName: s.FileName,
			URLName:  s.URLName,
		})
	}
	return GameRecord{
		WrapID:       game.WrapID.String(),
		GameID:       game.ID,
		Name:         game.Name,
		SegmentCount: len(segments),
		Segments:     segments,
	}
}
