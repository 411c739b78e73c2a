package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/km-arc/go-managers/framework/config"
	"github.com/km-arc/go-managers/framework/container"
	"github.com/km-arc/go-managers/framework/datatable"
	"github.com/km-arc/go-managers/framework/diagnostics"
	"github.com/km-arc/go-managers/framework/lifecycle"
	"github.com/km-arc/go-managers/framework/logging"
	"github.com/km-arc/go-managers/framework/providers"
	"github.com/km-arc/go-managers/framework/world"
)

// BootScene is the name of the scene active before the game loads one.
const BootScene = "Boot"

// Hooks are the application's lifecycle callbacks. Register is required.
type Hooks struct {
	// Register adds managers in initialization order.
	Register func(a *Application, r *lifecycle.Registry)
	// ForceInit eagerly resolves singletons once every manager is ready.
	ForceInit func(ctx context.Context, a *Application) error
	// OnReady runs after the ready signal.
	OnReady func(ctx context.Context, a *Application)
}

// Option customizes New.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	output    io.Writer
	providers []providers.Provider
}

// WithLogger replaces the logger built from config.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithOutput sets where the config-built logger writes. Defaults to stderr.
func WithOutput(w io.Writer) Option { return func(o *options) { o.output = w } }

// WithProviders registers extra providers after the framework defaults.
func WithProviders(p ...providers.Provider) Option {
	return func(o *options) { o.providers = append(o.providers, p...) }
}

// Application wires the world, the singleton resolver and the manager
// supervisor together.
type Application struct {
	Config     *config.Config
	Logger     *slog.Logger
	World      *world.World
	Resolver   *container.Resolver
	Supervisor *lifecycle.Supervisor

	hooks    Hooks
	shutdown sync.Once
}

// New creates and bootstraps the application. hooks.Register runs before
// New returns.
//
//	a := app.New(config.Load(), app.Hooks{
//	    Register: func(a *app.Application, r *lifecycle.Registry) {
//	        lifecycle.Create(r, func() *audio.Manager { return audio.New() })
//	    },
//	})
//	err := a.Run(ctx)
func New(cfg *config.Config, hooks Hooks, opts ...Option) *Application {
	o := options{output: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = logging.New(cfg.Log.Level, cfg.Log.Format, o.output).With("app", cfg.App.Name)
	}

	w := world.New(BootScene, logger)
	a := &Application{
		Config:   cfg,
		Logger:   logger,
		World:    w,
		Resolver: container.New(w, logger),
		hooks:    hooks,
	}

	for _, p := range append(providers.Defaults(cfg), o.providers...) {
		p.Register(a.Resolver)
	}

	a.Supervisor = lifecycle.New(lifecycle.Hooks{
		Register: func(r *lifecycle.Registry) {
			if hooks.Register != nil {
				hooks.Register(a, r)
			}
		},
		ForceInit: func(ctx context.Context) error {
			if hooks.ForceInit != nil {
				return hooks.ForceInit(ctx, a)
			}
			return nil
		},
		OnReady: func(ctx context.Context) {
			if hooks.OnReady != nil {
				hooks.OnReady(ctx, a)
			}
		},
	}, lifecycle.Options{
		World:        w,
		Logger:       logger,
		InitTimeout:  cfg.Lifecycle.InitTimeout,
		PollInterval: cfg.Lifecycle.PollInterval,
	})
	return a
}

// DataTableStore resolves the configured sheet store.
func (a *Application) DataTableStore() (datatable.Store, error) {
	return container.Resolve[datatable.Store](a.Resolver)
}

// Diagnostics returns the diagnostics HTTP handler.
func (a *Application) Diagnostics() *diagnostics.Router {
	return diagnostics.Handler(a.Supervisor, a.World, a.Logger)
}

// Run drives the frame loop, initializes every manager and serves
// diagnostics when DIAGNOSTICS_PORT is set. It blocks until ctx is done or
// a component fails, then shuts down.
func (a *Application) Run(ctx context.Context) error {
	ctx = logging.WithLogger(ctx, a.Logger)
	a.Logger.Info("🚀 Application starting.", "env", a.Config.App.Env, "fps", a.Config.App.TargetFPS)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.World.Run(gctx, a.Config.App.TargetFPS)
	})
	if port := a.Config.Diagnostics.Port; port != "" {
		srv := diagnostics.NewServer(":"+port, a.Diagnostics(), a.Logger)
		g.Go(func() error { return srv.Run(gctx) })
	}
	g.Go(func() error {
		if err := a.Supervisor.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		return nil
	})

	err := g.Wait()
	a.Shutdown()
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

// Shutdown stops scene notifications, closes the sheet store and refuses
// further resolution. Safe to call more than once.
func (a *Application) Shutdown() {
	a.shutdown.Do(func() {
		a.Supervisor.Close()
		if container.IsValid[datatable.Store](a.Resolver) {
			if c, ok := container.MustResolve[datatable.Store](a.Resolver).(io.Closer); ok {
				if err := c.Close(); err != nil {
					a.Logger.Warn("Closing data table store failed.", "error", err)
				}
			}
		}
		a.Resolver.Shutdown()
		a.World.Flush()
		a.Logger.Info("👋 Application stopped.")
	})
}

// Environment returns APP_ENV value.
func (a *Application) Environment() string { return a.Config.App.Env }
func (a *Application) IsLocal() bool       { return a.Environment() == "local" }
func (a *Application) IsProduction() bool  { return a.Environment() == "production" }
func (a *Application) IsTesting() bool     { return a.Environment() == "testing" }
func (a *Application) IsDebug() bool       { return a.Config.App.Debug }
