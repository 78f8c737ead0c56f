package console

import (
	"fmt"
	"runtime/debug"
	"sync"
)

// RejectionMarker is the first message value of an entry recorded for an unhandled rejection.
const RejectionMarker = "[unhandledrejection]"

// An ErrorEvent describes an error nobody handled.
type ErrorEvent struct {
	// Err is the error value, if any.
	Err error
	// Message is used when there is no error value.
	Message string
	// File, Line and Col locate the failure when no stack is available.
	File string
	Line int
	Col  int
	// Stack is a stack trace captured by the reporter.
	Stack string
}

func (ev ErrorEvent) stack() string {
	if ev.Err != nil {
		if s := safeErrorStack(ev.Err); s != "" {
			return s
		}
	}
	if ev.Stack != "" {
		return ev.Stack
	}
	if ev.File != "" {
		return fmt.Sprintf("%s:%d:%d", ev.File, ev.Line, ev.Col)
	}
	return ""
}

type listener struct {
	id          uint64
	onError     func(ErrorEvent)
	onRejection func(any)
}

var listeners struct {
	mu     sync.RWMutex
	nextID uint64
	list   []listener
}

// addListener registers event callbacks and returns the function removing them.
func addListener(onError func(ErrorEvent), onRejection func(any)) (remove func()) {
	listeners.mu.Lock()
	listeners.nextID++
	id := listeners.nextID
	listeners.list = append(listeners.list, listener{id: id, onError: onError, onRejection: onRejection})
	listeners.mu.Unlock()

	return func() {
		listeners.mu.Lock()
		defer listeners.mu.Unlock()
		for i, l := range listeners.list {
			if l.id == id {
				listeners.list = append(listeners.list[:i:i], listeners.list[i+1:]...)
				return
			}
		}
	}
}

func currentListeners() []listener {
	listeners.mu.RLock()
	defer listeners.mu.RUnlock()
	return append([]listener(nil), listeners.list...)
}

// ReportError notifies all active recorders about an uncaught error.
func ReportError(ev ErrorEvent) {
	for _, l := range currentListeners() {
		l.onError(ev)
	}
}

// ReportRejection notifies all active recorders about a failure of an asynchronous operation
// that nobody waited for.
func ReportRejection(reason any) {
	for _, l := range currentListeners() {
		l.onRejection(reason)
	}
}

// Recover reports a panic in progress as an uncaught error and panics again with the same value.
// It must be deferred directly:
//
//	defer console.Recover()
func Recover() {
	if v := recover(); v != nil {
		ReportError(panicEvent(v))
		panic(v)
	}
}

// Go runs fn in a new goroutine. A panic is reported as an uncaught error and a returned error
// as an unhandled rejection.
func Go(fn func() error) {
	go func() {
		defer Recover()
		if err := fn(); err != nil {
			ReportRejection(err)
		}
	}()
}

func panicEvent(v any) ErrorEvent {
	ev := ErrorEvent{Message: fmt.Sprint(v), Stack: string(debug.Stack())}
	if err, ok := v.(error); ok {
		ev.Err = err
	}
	return ev
}

func (r *Recorder) onError(ev ErrorEvent) {
	r.capture(LevelError, func() ([]any, string) {
		if ev.Err != nil {
			return []any{Serialize(ev.Err)}, ev.stack()
		}
		return []any{Serialize(ev.Message)}, ev.stack()
	})
}

func (r *Recorder) onRejection(reason any) {
	r.capture(LevelError, func() ([]any, string) {
		var stack string
		if err, ok := reason.(error); ok {
			stack = safeErrorStack(err)
		}
		return []any{RejectionMarker, Serialize(reason)}, stack
	})
}

func safeErrorStack(err error) (stack string) {
	defer func() {
		if recover() != nil {
			stack = ""
		}
	}()
	return errorStack(err)
}
