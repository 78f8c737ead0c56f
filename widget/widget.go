// Package widget ties the log recorder, the environment collector and a sink into a feedback widget.
package widget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vgarvardt/fidebe"
	"github.com/vgarvardt/fidebe/config"
	"github.com/vgarvardt/fidebe/console"
	"github.com/vgarvardt/fidebe/envinfo"
	"github.com/vgarvardt/fidebe/feedback"
)

// ErrNoSink is returned by New when the configuration has no endpoint and no sink is given.
var ErrNoSink = errors.New("no endpoint configured and no sink given")

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("widget is closed")

// Widget records logs from the moment it is created and sends them along with every report.
type Widget struct {
	cfg      config.Config
	sink     feedback.Sink
	recorder *console.Recorder
	collect  func() envinfo.Info
	logger   *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Option configures a Widget.
type Option func(w *options)

type options struct {
	sink       feedback.Sink
	logger     *slog.Logger
	registerer prometheus.Registerer
	recorder   []console.Option
	collect    func() envinfo.Info
}

// WithSink sends submissions to sink instead of the configured endpoint.
func WithSink(sink feedback.Sink) Option {
	return func(o *options) { o.sink = sink }
}

// WithLogger sets the logger of the widget itself, the slog default at the time of New is used otherwise.
// Records of the widget logger are never recorded, also when it writes through the log package.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer registers the recorder metrics with reg when metrics are enabled,
// prometheus.DefaultRegisterer is used otherwise.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithRecorderOptions passes additional options to the recorder, they are applied after the configured ones.
func WithRecorderOptions(opts ...console.Option) Option {
	return func(o *options) { o.recorder = append(o.recorder, opts...) }
}

// WithEnvCollector replaces envinfo.Collect.
func WithEnvCollector(collect func() envinfo.Info) Option {
	return func(o *options) { o.collect = collect }
}

// New creates the widget and starts recording.
func New(cfg config.Config, opts ...Option) (*Widget, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{collect: envinfo.Collect}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.sink == nil && cfg.Endpoint == "" {
		return nil, ErrNoSink
	}

	w := &Widget{cfg: cfg, sink: o.sink, collect: o.collect}

	handler := o.logger.Handler()
	if cfg.Console.Enabled {
		recOpts := cfg.Console.RecorderOptions()
		if cfg.Metrics.Enabled {
			reg := o.registerer
			if reg == nil {
				reg = prometheus.DefaultRegisterer
			}
			recOpts = append(recOpts, console.WithRegisterer(reg))
		}
		recOpts = append(recOpts, o.recorder...)

		rec, err := console.New(cfg.Console.MaxEntries, recOpts...)
		if err != nil {
			return nil, fmt.Errorf("could not start log recorder: %w", err)
		}
		w.recorder = rec
		handler = rec.Unrecorded(handler)
	}
	w.logger = slog.New(handler).With(fidebe.Component("widget"))

	if w.sink == nil {
		httpOpts := []feedback.HTTPOption{feedback.WithLogger(w.logger)}
		if cfg.Timeout > 0 {
			httpOpts = append(httpOpts, feedback.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
		}
		for k, v := range cfg.Headers {
			httpOpts = append(httpOpts, feedback.WithHeader(k, v))
		}

		sink, err := feedback.NewHTTPSink(cfg.Endpoint, httpOpts...)
		if err != nil {
			_ = w.Close()
			return nil, err
		}
		w.sink = sink
	}

	w.logger.Debug("Feedback widget started",
		slog.Bool("console", cfg.Console.Enabled),
		slog.Int("max_entries", cfg.Console.MaxEntries),
	)
	return w, nil
}

// Recorder returns the log recorder, nil when the console capture is disabled.
func (w *Widget) Recorder() *console.Recorder {
	return w.recorder
}

// Submit collects the context for the report and sends it to the sink.
// The returned submission is what was sent, also when the sink failed.
func (w *Widget) Submit(ctx context.Context, r feedback.Report) (*feedback.Submission, error) {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	sub := feedback.NewSubmission(r)
	if len(w.cfg.Labels) > 0 {
		sub.Labels = maps.Clone(w.cfg.Labels)
	}
	if w.cfg.Env.Enabled {
		info := w.collect()
		sub.Env = &info
	}
	if w.recorder != nil {
		sub.Logs = feedback.LogsFrom(w.recorder.Snapshot())
	}

	if err := w.sink.Send(ctx, sub); err != nil {
		w.logger.ErrorContext(ctx, "Could not send feedback", slog.String("id", sub.ID), fidebe.Error(err))
		return sub, fmt.Errorf("could not send feedback: %w", err)
	}

	if w.recorder != nil && w.cfg.Console.ClearOnSubmit {
		w.recorder.TakeAll()
	}

	w.logger.InfoContext(ctx, "Feedback sent",
		slog.String("id", sub.ID),
		slog.Int("attachments", len(sub.Attachments)),
		slog.Int("logs", logCount(sub)),
	)
	return sub, nil
}

// Close stops recording and reinstates the loggers the widget replaced. It is safe to call more than once.
func (w *Widget) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if w.recorder != nil {
		w.recorder.Restore()
	}
	return nil
}

func logCount(s *feedback.Submission) int {
	if s.Logs == nil {
		return 0
	}
	return s.Logs.Count
}
