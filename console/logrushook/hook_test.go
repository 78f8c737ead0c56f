package logrushook

import (
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vgarvardt/fidebe/console"
)

func TestHook(t *testing.T) {
	rec, err := console.New(10,
		console.WithSlog(false),
		console.WithStdLog(false),
		console.WithGlobalEvents(false),
	)
	require.NoError(t, err)
	t.Cleanup(rec.Restore)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.TraceLevel)
	Install(logger, rec)

	logger.Trace("tracing")
	logger.WithField("user", "u1").Info("signed in")
	logger.WithError(errors.New("denied")).Warn("access")

	logs := rec.Snapshot().Logs
	require.Len(t, logs, 3)

	assert.Equal(t, console.LevelDebug, logs[0].Level)
	assert.Equal(t, []any{"tracing"}, logs[0].Message)

	assert.Equal(t, console.LevelInfo, logs[1].Level)
	assert.Equal(t, []any{"signed in", map[string]any{"user": "u1"}}, logs[1].Message)

	assert.Equal(t, console.LevelWarn, logs[2].Level)
	assert.Equal(t, []any{"access", map[string]any{
		logrus.ErrorKey: map[string]any{"name": "errors.errorString", "message": "denied"},
	}}, logs[2].Message)
}

func TestLevel(t *testing.T) {
	tests := []struct {
		give logrus.Level
		want console.Level
	}{
		{give: logrus.PanicLevel, want: console.LevelError},
		{give: logrus.FatalLevel, want: console.LevelError},
		{give: logrus.ErrorLevel, want: console.LevelError},
		{give: logrus.WarnLevel, want: console.LevelWarn},
		{give: logrus.InfoLevel, want: console.LevelInfo},
		{give: logrus.DebugLevel, want: console.LevelDebug},
		{give: logrus.TraceLevel, want: console.LevelDebug},
	}

	for _, tt := range tests {
		t.Run(tt.give.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Level(tt.give))
		})
	}
}
