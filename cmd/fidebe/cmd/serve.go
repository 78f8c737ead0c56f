package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/vgarvardt/fidebe"
	"github.com/vgarvardt/fidebe/console"
	"github.com/vgarvardt/fidebe/feedback"
)

type serveOptions struct {
	addr            string
	forward         string
	maxEntries      int
	shutdownTimeout time.Duration
}

func newServeCommand(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a collector receiving feedback reports",
		Long: `serve accepts reports on POST /feedback, logs them and optionally forwards them
to another endpoint. The collector records its own logs, they are available on /debug/logs,
metrics are on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if opts.forward == "" {
				opts.forward = cfg.Endpoint
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", ":8080", "address to listen on")
	cmd.Flags().StringVar(&opts.forward, "forward", "", "endpoint to forward the reports to, the configured endpoint by default")
	cmd.Flags().IntVar(&opts.maxEntries, "max-entries", console.DefaultMaxEntries, "number of own log entries kept for /debug/logs")
	cmd.Flags().DurationVar(&opts.shutdownTimeout, "shutdown-timeout", 10*time.Second, "graceful shutdown timeout")
	return cmd
}

func serve(ctx context.Context, opts *serveOptions) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	rec, err := console.New(opts.maxEntries, console.WithRegisterer(reg), console.WithStack(false))
	if err != nil {
		return err
	}
	defer rec.Restore()

	logger := slog.Default().With(fidebe.Component("collector"))

	var sink feedback.Sink = newLogSink(logger, reg)
	if opts.forward != "" {
		fwd, err := feedback.NewHTTPSink(opts.forward, feedback.WithLogger(logger))
		if err != nil {
			return err
		}
		sink = multiSink{sink, fwd}
	}

	srv := &http.Server{
		Addr:              opts.addr,
		Handler:           newRouter(sink, rec, reg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Collector listening", slog.String("addr", opts.addr), slog.String("forward", opts.forward))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("collector failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down collector")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("could not shut down collector: %w", err)
	}
	return nil
}

func newRouter(sink feedback.Sink, rec *console.Recorder, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
	r.Method(http.MethodPost, "/feedback", feedback.Handler(sink, logger))
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Get("/debug/logs", func(w http.ResponseWriter, req *http.Request) {
		snapshot := rec.Snapshot()
		if lvl := console.Level(req.URL.Query().Get("level")); lvl != "" {
			if !lvl.Valid() {
				http.Error(w, fmt.Sprintf("unknown level %q", lvl), http.StatusBadRequest)
				return
			}
			snapshot = snapshot.FilterLevel(lvl)
		}
		if q := req.URL.Query().Get("q"); q != "" {
			snapshot = snapshot.FilterMessageSnippet(q)
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snapshot); err != nil {
			logger.Warn("Could not write logs", fidebe.Error(err))
		}
	})
	return r
}

// logSink logs every received submission.
type logSink struct {
	logger   *slog.Logger
	received prometheus.Counter
}

func newLogSink(logger *slog.Logger, reg prometheus.Registerer) *logSink {
	return &logSink{
		logger: logger,
		received: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "fidebe",
			Subsystem: "collector",
			Name:      "submissions_total",
			Help:      "Total number of received submissions.",
		}),
	}
}

func (s *logSink) Send(ctx context.Context, sub *feedback.Submission) error {
	s.received.Inc()

	attrs := []any{
		slog.String("id", sub.ID),
		slog.String("text", sub.Text),
		slog.Int("attachments", len(sub.Attachments)),
	}
	if sub.Client != nil {
		attrs = append(attrs, slog.String("url", sub.Client.Page.URL), slog.String("user_agent", sub.Client.UserAgent))
	}
	if len(sub.Labels) > 0 {
		attrs = append(attrs, slog.Any("labels", sub.Labels))
	}
	if sub.Logs != nil {
		attrs = append(attrs,
			slog.Int("logs", sub.Logs.Count),
			slog.Int("errors", console.Snapshot{Logs: sub.Logs.Entries}.FilterLevel(console.LevelError).Len()),
		)
	}
	s.logger.InfoContext(ctx, "Feedback received", attrs...)
	return nil
}

// multiSink sends to every sink in order and stops at the first failure.
type multiSink []feedback.Sink

func (m multiSink) Send(ctx context.Context, sub *feedback.Submission) error {
	for _, s := range m {
		if err := s.Send(ctx, sub); err != nil {
			return err
		}
	}
	return nil
}
