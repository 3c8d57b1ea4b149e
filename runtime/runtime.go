// Package runtime wires the process-wide services a revue-based program
// needs — the scheduler coordinator (by way of revue.Engine), the
// well-known printer actor, and (in the future) any other global service —
// into one fx.App, so construction and teardown order are explicit and
// reversed automatically (spec §9 "Global state" design note).
package runtime

import (
	"context"
	"io"
	"os"

	"go.uber.org/fx"

	"github.com/lguibr/revue"
)

// Config selects the shape of the runtime handle. The zero Config is
// usable: it selects GOMAXPROCS workers, a no-op logger, and stdout as the
// printer actor's sink.
type Config struct {
	Workers     int
	Logger      revue.Logger
	PrinterSink io.Writer
}

// Runtime owns one revue.Engine and its well-known printer actor for the
// lifetime of the process (or test). Build and start one with New, and
// always Stop it before exiting.
type Runtime struct {
	app     *fx.App
	Engine  *revue.Engine
	Printer revue.PID
}

// Module provides the Engine and the printer actor in dependency order:
// the Engine must exist before anything can be spawned on it.
func Module(cfg Config) fx.Option {
	return fx.Module("revue-runtime",
		fx.Provide(func() *revue.Engine {
			logger := cfg.Logger
			if logger == nil {
				logger = revue.NoopLogger()
			}
			return revue.New(revue.Options{Workers: cfg.Workers, Logger: logger})
		}),
		fx.Invoke(func(lc fx.Lifecycle, e *revue.Engine) {
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					e.Shutdown()
					return nil
				},
			})
		}),
		fx.Provide(func(e *revue.Engine) revue.PID {
			sink := cfg.PrinterSink
			if sink == nil {
				sink = os.Stdout
			}
			return revue.NewPrinterActor(e, sink)
		}),
	)
}

// New constructs and starts a Runtime. Callers must call Stop when done.
func New(ctx context.Context, cfg Config) (*Runtime, error) {
	rt := &Runtime{}
	app := fx.New(
		Module(cfg),
		fx.Populate(&rt.Engine, &rt.Printer),
		fx.NopLogger,
	)
	rt.app = app
	if err := app.Start(ctx); err != nil {
		return nil, err
	}
	return rt, nil
}

// Stop tears the runtime down in reverse construction order (the
// scheduler and timer service are stopped after anything that depends on
// them — here just the printer actor, which has no explicit shutdown hook
// of its own and is simply abandoned alongside the Engine it lives in).
func (r *Runtime) Stop(ctx context.Context) error {
	return r.app.Stop(ctx)
}
