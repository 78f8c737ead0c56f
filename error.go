// Package fidebe collects user feedback together with the recent logs and the environment
// of the application it is embedded into.
package fidebe

import "log/slog"

// Default attribute keys.
const (
	DefaultErrorKey     = "error"
	DefaultComponentKey = "component"
)

// ErrorKey and ComponentKey are the attribute keys used by the module. User may set them to own values on the package level.
var (
	ErrorKey     = DefaultErrorKey
	ComponentKey = DefaultComponentKey
)

// Error returns slog attribute with error key. The error value itself is kept, so that the recorded
// entry carries its type next to the message.
func Error(err error) slog.Attr {
	if err == nil {
		// empty attr is dropped by handlers
		return slog.Attr{}
	}

	return slog.Any(ErrorKey, err)
}

// Component returns slog attribute naming the part of the module that logs.
func Component(name string) slog.Attr {
	return slog.String(ComponentKey, name)
}
