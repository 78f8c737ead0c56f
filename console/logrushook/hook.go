// Package logrushook records logrus entries with a console recorder.
package logrushook

import (
	"github.com/sirupsen/logrus"

	"github.com/vgarvardt/fidebe/console"
)

var _ logrus.Hook = (*Hook)(nil)

// Recorder is the part of console.Recorder the hook needs.
type Recorder interface {
	Record(level console.Level, args ...any)
}

// Hook is a logrus hook that records every entry, the entry itself is left untouched.
type Hook struct {
	rec Recorder
}

// New creates a hook recording to rec.
func New(rec Recorder) *Hook {
	return &Hook{rec: rec}
}

// Install adds a hook recording to rec to the logger and returns it.
func Install(logger *logrus.Logger, rec Recorder) *Hook {
	h := New(rec)
	logger.AddHook(h)
	return h
}

// Levels implements logrus.Hook.
func (h *Hook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook.
func (h *Hook) Fire(e *logrus.Entry) error {
	args := []any{e.Message}
	if len(e.Data) > 0 {
		args = append(args, map[string]any(e.Data))
	}
	h.rec.Record(Level(e.Level), args...)
	return nil
}

// Level maps logrus level to the recorded level.
func Level(l logrus.Level) console.Level {
	switch l {
	case logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel:
		return console.LevelError
	case logrus.WarnLevel:
		return console.LevelWarn
	case logrus.InfoLevel:
		return console.LevelInfo
	default:
		return console.LevelDebug
	}
}
