package model

// ProgressLevel indicates the severity/type of a progress message.
type ProgressLevel int

const (
	LevelInfo ProgressLevel = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// ProgressEvent is a user-facing status update emitted by the exporter and
// the download manager.
type ProgressEvent struct {
	Message string
	Level   ProgressLevel
}
