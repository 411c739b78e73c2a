package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/km-arc/go-managers/framework/app"
	"github.com/km-arc/go-managers/framework/config"
	"github.com/km-arc/go-managers/framework/datatable"
	"github.com/km-arc/go-managers/framework/health"
	"github.com/km-arc/go-managers/framework/lifecycle"
	"github.com/km-arc/go-managers/framework/logging"
	"github.com/km-arc/go-managers/framework/resources"
	"github.com/km-arc/go-managers/framework/world"
)

// Units is the "Units" sheet.
type Units struct {
	Items []struct {
		ID   int     `json:"id"`
		Name string  `json:"name"`
		HP   float64 `json:"hp"`
	} `json:"items"`
}

// PlayerManager keeps a player with health alive across scene loads.
type PlayerManager struct {
	lifecycle.BaseManager

	world  *world.World
	player *health.Health
}

func (m *PlayerManager) Name() string { return "PlayerManager" }

func (m *PlayerManager) Init(ctx context.Context) error {
	world.Ensure(m.world, &m.player, "Player", nil, func() *health.Health { return health.New(100) })
	m.world.Persist(m.player)
	logging.FromContext(ctx).Info("Player ready.")
	m.MarkInitialized()
	return nil
}

func (m *PlayerManager) OnSceneReloaded(scene world.Scene) {
	world.Reconnect(m.world, &m.player, "Player")
}

func main() {
	cfg := config.Load() // loads .env automatically
	if err := config.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	application := app.New(cfg, app.Hooks{
		Register: func(a *app.Application, r *lifecycle.Registry) {
			// Initialization order: resources, tables, then gameplay.
			lifecycle.Create(r, func() *resources.Manager {
				return resources.New(os.DirFS("Assets/Resources"), a.Logger)
			})

			store, err := a.DataTableStore()
			if err != nil {
				a.Logger.Error("Data table store unavailable, using memory.", "error", err)
				store = datatable.NewMemoryStore()
			}
			tables := lifecycle.Create(r, func() *datatable.Manager {
				return datatable.New(datatable.Options{
					URL:         a.Config.DataTable.URL,
					LoadOnStart: a.Config.DataTable.LoadOnStart,
					Store:       store,
					Logger:      a.Logger,
				})
			})
			datatable.Register[Units](tables, "Units")

			lifecycle.Create(r, func() *PlayerManager { return &PlayerManager{world: a.World} })
		},
		OnReady: func(ctx context.Context, a *app.Application) {
			a.World.LoadScene("Title", world.LoadSingle)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		application.Logger.Error("Application failed.", "error", err)
		os.Exit(1)
	}
}
