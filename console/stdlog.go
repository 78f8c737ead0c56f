package console

import (
	"io"
	"strings"
)

// logWriter records lines written by the standard log package and passes the bytes on unchanged.
type logWriter struct {
	rec  *Recorder
	next io.Writer
}

// Write implements io.Writer.
func (w *logWriter) Write(p []byte) (int, error) {
	// the built-in slog handler output was recorded already with its own level
	if w.rec.forwarding.Load() == 0 {
		line := strings.TrimSuffix(string(p), "\n")
		w.rec.capture(LevelLog, func() ([]any, string) {
			return []any{line}, w.rec.callers()
		})
	}
	return w.next.Write(p)
}
