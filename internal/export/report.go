package export

import (
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bfgdl/bfg-downloader/internal/bigfish"
	bfghttp "github.com/bfgdl/bfg-downloader/internal/http"
	"github.com/bfgdl/bfg-downloader/internal/model"
)

// Failure kinds recorded in a report.
const (
	KindInvalidFormat  = "InvalidFormat"
	KindTransportError = "TransportError"
	KindProtocolError  = "ProtocolError"
	KindError          = "Error"
)

// Failure describes one WrapID that could not be exported.
type Failure struct {
	WrapID  string `json:"wrapId"`
	Kind    string `json:"exceptionType"`
	Message string `json:"message"`
}

// FailureKind classifies err into one of the Kind constants.
func FailureKind(err error) string {
	var te *bfghttp.TransportError
	var pe *bigfish.ProtocolError
	switch {
	case errors.Is(err, model.ErrInvalidFormat):
		return KindInvalidFormat
	case errors.As(err, &te):
		return KindTransportError
	case errors.As(err, &pe):
		return KindProtocolError
	default:
		return KindError
	}
}

// Report summarizes an export run. It is written once, next to the
// partition files, as installers_<platform>_meta.json.
type Report struct {
	RunID        string `json:"runId"`
	Platform     string `json:"platform"`
	ExportFormat string `json:"exportFormat"`

	GeneratedAtUTC  time.Time `json:"generatedAtUtc"`
	StartedAtUTC    time.Time `json:"startedAtUtc"`
	FinishedAtUTC   time.Time `json:"finishedAtUtc"`
	DurationSeconds float64   `json:"durationSeconds"`

	PageSize int `json:"pageSize"`

	PagesParsedByLanguageL       map[string]int `json:"pagesParsedByLanguageL"`
	WrapIDsFoundByLanguageL      map[string]int `json:"wrapIdsFoundByLanguageL"`
	GamesExportedByLanguageL     map[string]int `json:"gamesExportedByLanguageL"`
	CatalogTotalPagesByLanguageL map[string]int `json:"catalogTotalPagesByLanguageL"`
	CatalogTotalCountByLanguageL map[string]int `json:"catalogTotalCountByLanguageL"`

	TotalWrapIDsFound     int `json:"totalWrapIdsFound"`
	TotalGamesExported    int `json:"totalGamesExported"`
	TotalSegmentsExported int `json:"totalSegmentsExported"`
	FailedGames           int `json:"failedGames"`

	Failures []Failure `json:"failures,omitempty"`

	Jobs        int  `json:"jobs"`
	ExportLimit *int `json:"exportLimit"`

	// Files lists the partition files written, for display only.
	Files []string `json:"-"`
}

// MarshalIndented returns the report as indented JSON.
func (r *Report) MarshalIndented() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// failureList is the append-only failure collection shared by workers.
type failureList struct {
	mu    sync.Mutex
	items []Failure
}

func (l *failureList) add(f Failure) {
	l.mu.Lock()
	l.items = append(l.items, f)
	l.mu.Unlock()
}

// sorted returns the failures ordered by WrapID, or nil when empty.
func (l *failureList) sorted() []Failure {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.items) == 0 {
		return nil
	}
	out := slices.Clone(l.items)
	slices.SortStableFunc(out, func(a, b Failure) int {
		return strings.Compare(strings.ToUpper(a.WrapID), strings.ToUpper(b.WrapID))
	})
	return out
}
