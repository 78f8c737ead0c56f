package fxfidebe

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxevent"

	"github.com/vgarvardt/fidebe/console"
)

// observe returns a logger recording into a recorder that leaves the global loggers alone.
func observe(t *testing.T, level slog.Level) (*slog.Logger, *console.Recorder) {
	t.Helper()

	rec, err := console.New(16,
		console.WithSlog(false),
		console.WithStdLog(false),
		console.WithGlobalEvents(false),
		console.WithStack(false),
	)
	require.NoError(t, err)
	t.Cleanup(rec.Restore)

	next := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: level})
	return slog.New(rec.Handler(next)), rec
}

func TestEventLogger(t *testing.T) {
	t.Parallel()

	someError := errors.New("some error")
	wantError := map[string]any{"name": "errors.errorString", "message": "some error"}

	tests := []struct {
		name        string
		give        fxevent.Event
		wantMessage string
		wantFields  map[string]any
	}{
		{
			name:        "OnStartExecuting",
			give:        &fxevent.OnStartExecuting{FunctionName: "hook.onStart", CallerName: "bytes.NewBuffer"},
			wantMessage: "OnStart hook executing",
			wantFields:  map[string]any{"callee": "hook.onStart", "caller": "bytes.NewBuffer"},
		},
		{
			name:        "OnStartExecuted",
			give:        &fxevent.OnStartExecuted{FunctionName: "hook.onStart", CallerName: "bytes.NewBuffer", Runtime: 3 * time.Millisecond},
			wantMessage: "OnStart hook executed",
			wantFields:  map[string]any{"callee": "hook.onStart", "caller": "bytes.NewBuffer", "runtime": "3ms"},
		},
		{
			name:        "OnStartExecuted/Error",
			give:        &fxevent.OnStartExecuted{FunctionName: "hook.onStart", CallerName: "bytes.NewBuffer", Err: someError},
			wantMessage: "OnStart hook failed",
			wantFields:  map[string]any{"callee": "hook.onStart", "caller": "bytes.NewBuffer", "error": wantError},
		},
		{
			name:        "OnStopExecuted/Error",
			give:        &fxevent.OnStopExecuted{FunctionName: "hook.onStop", CallerName: "bytes.NewBuffer", Err: someError},
			wantMessage: "OnStop hook failed",
			wantFields:  map[string]any{"callee": "hook.onStop", "caller": "bytes.NewBuffer", "error": wantError},
		},
		{
			name: "Supplied",
			give: &fxevent.Supplied{
				TypeName:    "*bytes.Buffer",
				StackTrace:  []string{"main.main", "runtime.main"},
				ModuleTrace: []string{"main.main"},
				ModuleName:  "fidebe",
			},
			wantMessage: "Supplied",
			wantFields: map[string]any{
				"type":        "*bytes.Buffer",
				"stacktrace":  []any{"main.main", "runtime.main"},
				"moduletrace": []any{"main.main"},
				"module":      "fidebe",
			},
		},
		{
			name:        "Provided",
			give:        &fxevent.Provided{ConstructorName: "bytes.NewBuffer()", OutputTypeNames: []string{"*bytes.Buffer"}, Private: true},
			wantMessage: "Provided",
			wantFields: map[string]any{
				"constructor": "bytes.NewBuffer()",
				"type":        "*bytes.Buffer",
				"stacktrace":  nil,
				"moduletrace": nil,
				"private":     true,
			},
		},
		{
			name:        "Provided/Error",
			give:        &fxevent.Provided{ConstructorName: "bytes.NewBuffer()", Err: someError},
			wantMessage: "Could not provide constructor",
			wantFields: map[string]any{
				"constructor": "bytes.NewBuffer()",
				"stacktrace":  nil,
				"moduletrace": nil,
				"error":       wantError,
			},
		},
		{
			name:        "Run",
			give:        &fxevent.Run{Name: "bytes.NewBuffer()", Kind: "constructor"},
			wantMessage: "Run",
			wantFields:  map[string]any{"name": "bytes.NewBuffer()", "kind": "constructor"},
		},
		{
			name:        "Invoking",
			give:        &fxevent.Invoking{FunctionName: "bytes.NewBuffer()"},
			wantMessage: "Invoking",
			wantFields:  map[string]any{"function": "bytes.NewBuffer()"},
		},
		{
			name:        "Invoked/Error",
			give:        &fxevent.Invoked{FunctionName: "bytes.NewBuffer()", Trace: "main.main", Err: someError},
			wantMessage: "Invoke failed",
			wantFields:  map[string]any{"function": "bytes.NewBuffer()", "stack": "main.main", "error": wantError},
		},
		{
			name:        "Stopping",
			give:        &fxevent.Stopping{Signal: os.Interrupt},
			wantMessage: "Received signal",
			wantFields:  map[string]any{"signal": "INTERRUPT"},
		},
		{
			name:        "RollingBack/Error",
			give:        &fxevent.RollingBack{StartErr: someError},
			wantMessage: "Start failed, rolling back",
			wantFields:  map[string]any{"error": wantError},
		},
		{
			name:        "Started",
			give:        &fxevent.Started{},
			wantMessage: "Started",
		},
		{
			name:        "LoggerInitialized",
			give:        &fxevent.LoggerInitialized{ConstructorName: "bytes.NewBuffer()"},
			wantMessage: "Custom event logger initialized",
			wantFields:  map[string]any{"function": "bytes.NewBuffer()"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, rec := observe(t, slog.LevelDebug)
			(&EventLogger{Logger: logger}).LogEvent(tt.give)

			logs := rec.TakeAll().Logs
			require.Len(t, logs, 1)

			want := []any{tt.wantMessage}
			if tt.wantFields != nil {
				want = append(want, tt.wantFields)
			}
			assert.Equal(t, want, logs[0].Message)

			wantLevel := console.LevelInfo
			if strings.HasSuffix(tt.name, "/Error") {
				wantLevel = console.LevelError
			}
			assert.Equal(t, wantLevel, logs[0].Level)
		})
	}
}

func TestEventLoggerLevels(t *testing.T) {
	t.Parallel()

	logger, rec := observe(t, slog.LevelInfo)
	warn := slog.LevelWarn
	l := &EventLogger{Logger: logger, Level: slog.LevelDebug, ErrorLevel: &warn}

	l.LogEvent(&fxevent.Started{})
	l.LogEvent(&fxevent.Started{Err: errors.New("boom")})
	l.LogEvent(&fxevent.Invoked{FunctionName: "ok"})

	logs := rec.TakeAll().Logs
	require.Len(t, logs, 2)
	assert.Equal(t, console.LevelDebug, logs[0].Level)
	assert.Equal(t, console.LevelWarn, logs[1].Level)
	assert.Equal(t, "Start failed", logs[1].Message[0])
}

func TestEventLoggerMultipleOutputs(t *testing.T) {
	t.Parallel()

	logger, rec := observe(t, slog.LevelInfo)
	(&EventLogger{Logger: logger}).LogEvent(&fxevent.Decorated{
		DecoratorName:   "decorate",
		OutputTypeNames: []string{"*a.A", "*b.B"},
		Err:             errors.New("cycle"),
	})

	logs := rec.TakeAll().Logs
	require.Len(t, logs, 3)
	assert.Equal(t, "Decorated", logs[0].Message[0])
	assert.Equal(t, "*b.B", logs[1].Message[1].(map[string]any)["type"])
	assert.Equal(t, "Could not apply decorator", logs[2].Message[0])
	assert.Equal(t, console.LevelError, logs[2].Level)
}
