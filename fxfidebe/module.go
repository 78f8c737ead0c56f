// Package fxfidebe provides the feedback widget to Fx applications.
package fxfidebe

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/vgarvardt/fidebe/config"
	"github.com/vgarvardt/fidebe/feedback"
	"github.com/vgarvardt/fidebe/widget"
)

// Module provides *widget.Widget, it needs a config.Config in the container.
// The widget is closed when the application stops.
var Module = fx.Module("fidebe",
	fx.Provide(NewWidget),
)

// WithEventLogger makes Fx log its events with EventLogger to the slog default.
var WithEventLogger = fx.WithLogger(func() fxevent.Logger {
	return &EventLogger{}
})

// Params are the dependencies of NewWidget.
type Params struct {
	fx.In

	Config config.Config
	// Sink replaces the configured endpoint.
	Sink       feedback.Sink         `optional:"true"`
	Logger     *slog.Logger          `optional:"true"`
	Registerer prometheus.Registerer `optional:"true"`
}

// NewWidget creates the widget and ties it to the application lifecycle.
func NewWidget(lc fx.Lifecycle, p Params) (*widget.Widget, error) {
	var opts []widget.Option
	if p.Sink != nil {
		opts = append(opts, widget.WithSink(p.Sink))
	}
	if p.Logger != nil {
		opts = append(opts, widget.WithLogger(p.Logger))
	}
	if p.Registerer != nil {
		opts = append(opts, widget.WithRegisterer(p.Registerer))
	}

	w, err := widget.New(p.Config, opts...)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return w.Close()
		},
	})
	return w, nil
}
