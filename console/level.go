package console

import "log/slog"

// Level is the level of a recorded entry.
type Level string

// Recorded levels. LevelLog is used for the output of the standard log package,
// the others mirror the slog levels.
const (
	LevelLog   Level = "log"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelDebug Level = "debug"
)

// Levels lists all recorded levels.
var Levels = []Level{LevelLog, LevelInfo, LevelWarn, LevelError, LevelDebug}

// FromSlog maps slog level to the recorded level. Custom levels fall into the closest lower bucket.
func FromSlog(l slog.Level) Level {
	switch {
	case l < slog.LevelInfo:
		return LevelDebug
	case l < slog.LevelWarn:
		return LevelInfo
	case l < slog.LevelError:
		return LevelWarn
	default:
		return LevelError
	}
}

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	for _, known := range Levels {
		if l == known {
			return true
		}
	}
	return false
}
