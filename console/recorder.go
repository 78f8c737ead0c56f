package console

import (
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultMaxEntries is the buffer capacity commonly used for a recorder.
const DefaultMaxEntries = 300

const maxStackFrames = 32

// ErrInvalidCapacity is returned when recorder is created with non-positive capacity.
var ErrInvalidCapacity = errors.New("max entries must be positive")

var pkgPath = reflect.TypeOf((*Recorder)(nil)).Elem().PkgPath()

// Option configures Recorder.
type Option func(*options)

type options struct {
	slog       bool
	stdLog     bool
	events     bool
	stack      bool
	now        func() time.Time
	registerer prometheus.Registerer
}

// WithSlog sets whether the default slog logger is intercepted. Enabled by default.
func WithSlog(enabled bool) Option {
	return func(o *options) { o.slog = enabled }
}

// WithStdLog sets whether the standard log package output is intercepted. Enabled by default.
func WithStdLog(enabled bool) Option {
	return func(o *options) { o.stdLog = enabled }
}

// WithGlobalEvents sets whether the recorder listens to errors and rejections
// reported with ReportError, ReportRejection, Recover and Go. Enabled by default.
func WithGlobalEvents(enabled bool) Option {
	return func(o *options) { o.events = enabled }
}

// WithStack sets whether a call stack is captured for every recorded logging call. Enabled by default.
func WithStack(enabled bool) Option {
	return func(o *options) { o.stack = enabled }
}

// WithClock sets the time source for entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithRegisterer registers recorder metrics with the given registerer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// Recorder records the process-wide logging calls into a bounded ring buffer.
//
// Once created, the recorder wraps the default slog handler and the standard log writer,
// every call still reaches the wrapped sink unchanged. Restore unwinds the interception.
type Recorder struct {
	mu   sync.RWMutex
	ring *ring

	opts    options
	metrics *metrics

	active      atomic.Bool
	restoreOnce sync.Once

	prevLogger *slog.Logger
	prevWriter io.Writer
	prevFlags  int

	logger *slog.Logger
	writer *logWriter

	// forwarding is non-zero while a record is passed to the built-in slog handler,
	// that writes through the log package and so through the intercepted writer.
	forwarding      atomic.Int32
	removeListeners func()
}

// New creates a recorder keeping at most maxEntries most recent entries and installs its global hooks.
func New(maxEntries int, opts ...Option) (*Recorder, error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, maxEntries)
	}

	o := options{slog: true, stdLog: true, events: true, stack: true, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Recorder{ring: newRing(maxEntries), opts: o}
	if o.registerer != nil {
		m, err := newMetrics(o.registerer, maxEntries)
		if err != nil {
			return nil, fmt.Errorf("could not register console metrics: %w", err)
		}
		r.metrics = m
	}

	r.active.Store(true)
	r.install()
	return r, nil
}

func (r *Recorder) install() {
	if r.opts.events {
		r.removeListeners = addListener(r.onError, r.onRejection)
	}
	if !r.opts.slog && !r.opts.stdLog {
		return
	}

	r.prevLogger = slog.Default()
	r.prevWriter = log.Writer()
	r.prevFlags = log.Flags()

	if r.opts.slog {
		r.logger = slog.New(r.Handler(r.prevLogger.Handler()))
		// points the log package at the new handler and resets its flags, both are fixed below
		slog.SetDefault(r.logger)
	}

	out := r.prevWriter
	if r.opts.stdLog {
		r.writer = &logWriter{rec: r, next: r.prevWriter}
		out = r.writer
	}
	log.SetOutput(out)
	log.SetFlags(r.prevFlags)
}

func (r *Recorder) uninstall() {
	if r.logger != nil && slog.Default() == r.logger {
		slog.SetDefault(r.prevLogger)
	}
	if r.writer != nil {
		if w, ok := log.Writer().(*logWriter); ok && w == r.writer {
			log.SetOutput(r.prevWriter)
			log.SetFlags(r.prevFlags)
		}
	}
}

// Active reports whether the recorder still records, i.e. Restore was not called yet.
func (r *Recorder) Active() bool {
	return r.active.Load()
}

// Restore stops recording, removes event listeners and reinstates the previous slog default logger
// and log writer if they were not replaced after the recorder was created. Otherwise the interception
// layer stays in place and only passes calls through. Restore is safe to call more than once.
func (r *Recorder) Restore() {
	r.restoreOnce.Do(func() {
		r.active.Store(false)
		if r.removeListeners != nil {
			r.removeListeners()
		}
		r.uninstall()
		r.metrics.unregister()
	})
}

// Record records a call with arbitrary arguments at the given level.
// It is the entry point for logging surfaces other than slog and log.
func (r *Recorder) Record(level Level, args ...any) {
	r.capture(level, func() ([]any, string) {
		return serializeArgs(args), r.callers()
	})
}

// Snapshot returns a copy of the recorded entries from the oldest to the newest.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.RLock()
	logs := r.ring.all()
	r.mu.RUnlock()
	return Snapshot{Logs: logs}
}

// TakeAll returns a copy of the recorded entries and empties the buffer.
func (r *Recorder) TakeAll() Snapshot {
	r.mu.Lock()
	logs := r.ring.all()
	r.ring.reset()
	r.mu.Unlock()

	r.metrics.setBuffered(0)
	return Snapshot{Logs: logs}
}

// capture builds and stores an entry. Any panic while building the entry is swallowed,
// a logging call must never fail because of the recorder.
func (r *Recorder) capture(level Level, build func() (msg []any, stack string)) {
	if !r.active.Load() {
		return
	}

	defer func() {
		if recover() != nil {
			r.metrics.failed()
		}
	}()

	e := Entry{Time: r.opts.now(), Level: level}
	e.Message, e.Stack = build()
	r.push(e)
}

func (r *Recorder) push(e Entry) {
	r.mu.Lock()
	evicted := r.ring.add(e)
	n := r.ring.len()
	r.mu.Unlock()

	r.metrics.recorded(e.Level, evicted, n)
}

// callers formats the current call stack leaving out frames of the logging machinery.
func (r *Recorder) callers() string {
	if !r.opts.stack {
		return ""
	}

	pcs := make([]uintptr, maxStackFrames)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var b strings.Builder
	for {
		f, more := frames.Next()
		if !internalFrame(f.Function) {
			fmt.Fprintf(&b, "%s\n\t%s:%d\n", f.Function, f.File, f.Line)
		}
		if !more {
			break
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func internalFrame(function string) bool {
	for _, prefix := range []string{"log.", "log/slog.", "github.com/sirupsen/logrus.", pkgPath + ".", pkgPath + "/"} {
		if strings.HasPrefix(function, prefix) {
			return true
		}
	}
	return false
}

func serializeArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = Serialize(a)
	}
	return out
}
