package fxfidebe

import (
	"context"
	"log/slog"
	"strings"

	"go.uber.org/fx/fxevent"

	"github.com/vgarvardt/fidebe"
)

// EventLogger writes Fx events to log/slog.
//
// With no Logger set it logs to the slog default at the time of the event, so once the widget
// has started the application lifecycle ends up in the feedback logs as well.
type EventLogger struct {
	Logger *slog.Logger

	// Level of the regular events, slog.LevelInfo by default.
	Level slog.Level
	// ErrorLevel of the failed events, slog.LevelError when nil.
	ErrorLevel *slog.Level
}

var _ fxevent.Logger = (*EventLogger)(nil)

func (l *EventLogger) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

// log writes the event at the regular level, or at the error level with the error attached.
func (l *EventLogger) log(msg string, err error, attrs ...slog.Attr) {
	level := l.Level
	if err != nil {
		level = slog.LevelError
		if l.ErrorLevel != nil {
			level = *l.ErrorLevel
		}
		attrs = append(attrs, fidebe.Error(err))
	}
	l.logger().LogAttrs(context.Background(), level, msg, attrs...)
}

// LogEvent implements fxevent.Logger.
func (l *EventLogger) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuting:
		l.log("OnStart hook executing", nil, hook(e.FunctionName, e.CallerName)...)
	case *fxevent.OnStartExecuted:
		if e.Err != nil {
			l.log("OnStart hook failed", e.Err, hook(e.FunctionName, e.CallerName)...)
			return
		}
		l.log("OnStart hook executed", nil, append(hook(e.FunctionName, e.CallerName), slog.String("runtime", e.Runtime.String()))...)
	case *fxevent.OnStopExecuting:
		l.log("OnStop hook executing", nil, hook(e.FunctionName, e.CallerName)...)
	case *fxevent.OnStopExecuted:
		if e.Err != nil {
			l.log("OnStop hook failed", e.Err, hook(e.FunctionName, e.CallerName)...)
			return
		}
		l.log("OnStop hook executed", nil, append(hook(e.FunctionName, e.CallerName), slog.String("runtime", e.Runtime.String()))...)
	case *fxevent.Supplied:
		attrs := append([]slog.Attr{slog.String("type", e.TypeName)}, trace(e.StackTrace, e.ModuleTrace, e.ModuleName)...)
		if e.Err != nil {
			l.log("Could not supply value", e.Err, attrs...)
			return
		}
		l.log("Supplied", nil, attrs...)
	case *fxevent.Provided:
		for _, t := range e.OutputTypeNames {
			attrs := append([]slog.Attr{slog.String("constructor", e.ConstructorName), slog.String("type", t)},
				trace(e.StackTrace, e.ModuleTrace, e.ModuleName)...)
			if e.Private {
				attrs = append(attrs, slog.Bool("private", true))
			}
			l.log("Provided", nil, attrs...)
		}
		if e.Err != nil {
			l.log("Could not provide constructor", e.Err,
				append([]slog.Attr{slog.String("constructor", e.ConstructorName)}, trace(e.StackTrace, e.ModuleTrace, e.ModuleName)...)...)
		}
	case *fxevent.Replaced:
		for _, t := range e.OutputTypeNames {
			l.log("Replaced", nil, append([]slog.Attr{slog.String("type", t)}, trace(e.StackTrace, e.ModuleTrace, e.ModuleName)...)...)
		}
		if e.Err != nil {
			l.log("Could not replace value", e.Err, trace(e.StackTrace, e.ModuleTrace, e.ModuleName)...)
		}
	case *fxevent.Decorated:
		for _, t := range e.OutputTypeNames {
			attrs := append([]slog.Attr{slog.String("decorator", e.DecoratorName), slog.String("type", t)},
				trace(e.StackTrace, e.ModuleTrace, e.ModuleName)...)
			l.log("Decorated", nil, attrs...)
		}
		if e.Err != nil {
			l.log("Could not apply decorator", e.Err,
				append([]slog.Attr{slog.String("decorator", e.DecoratorName)}, trace(e.StackTrace, e.ModuleTrace, e.ModuleName)...)...)
		}
	case *fxevent.Run:
		attrs := []slog.Attr{slog.String("name", e.Name), slog.String("kind", e.Kind), module(e.ModuleName)}
		if e.Err != nil {
			l.log("Run failed", e.Err, attrs...)
			return
		}
		l.log("Run", nil, attrs...)
	case *fxevent.Invoking:
		l.log("Invoking", nil, slog.String("function", e.FunctionName), module(e.ModuleName))
	case *fxevent.Invoked:
		// successful invocations are already reported by Invoking
		if e.Err != nil {
			l.log("Invoke failed", e.Err, slog.String("function", e.FunctionName), slog.String("stack", e.Trace), module(e.ModuleName))
		}
	case *fxevent.Stopping:
		l.log("Received signal", nil, slog.String("signal", strings.ToUpper(e.Signal.String())))
	case *fxevent.Stopped:
		if e.Err != nil {
			l.log("Stop failed", e.Err)
		}
	case *fxevent.RollingBack:
		l.log("Start failed, rolling back", e.StartErr)
	case *fxevent.RolledBack:
		if e.Err != nil {
			l.log("Rollback failed", e.Err)
		}
	case *fxevent.Started:
		if e.Err != nil {
			l.log("Start failed", e.Err)
			return
		}
		l.log("Started", nil)
	case *fxevent.LoggerInitialized:
		if e.Err != nil {
			l.log("Custom event logger failed", e.Err)
			return
		}
		l.log("Custom event logger initialized", nil, slog.String("function", e.ConstructorName))
	}
}

func hook(callee, caller string) []slog.Attr {
	return []slog.Attr{slog.String("callee", callee), slog.String("caller", caller)}
}

func trace(stack, moduleTrace []string, moduleName string) []slog.Attr {
	return []slog.Attr{slog.Any("stacktrace", stack), slog.Any("moduletrace", moduleTrace), module(moduleName)}
}

// module is an empty attribute outside of a named module, slog handlers skip those.
func module(name string) slog.Attr {
	if name == "" {
		return slog.Attr{}
	}
	return slog.String("module", name)
}
