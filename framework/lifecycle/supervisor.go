package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/km-arc/go-managers/framework/logging"
	"github.com/km-arc/go-managers/framework/world"
)

// DefaultPollInterval is how often a pending manager's ready flag is checked.
const DefaultPollInterval = 10 * time.Millisecond

// ── State ─────────────────────────────────────────────────────────────────────

// State is the supervisor's position in its lifecycle.
type State int32

const (
	Constructed State = iota
	ManagersRegistered
	Initializing
	Ready
)

func (s State) String() string {
	switch s {
	case Constructed:
		return "constructed"
	case ManagersRegistered:
		return "managers-registered"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// ── Hooks / Options ───────────────────────────────────────────────────────────

// Hooks are the application-specific steps of the bootstrap.
//
//	sup := lifecycle.New(lifecycle.Hooks{
//	    Register: func(r *lifecycle.Registry) {
//	        lifecycle.Create(r, newResourceManager)
//	        lifecycle.Create(r, newDataTableManager)
//	    },
//	    ForceInit: func(ctx context.Context) error {
//	        return container.ForceInit[*Inventory](resolver)
//	    },
//	    OnReady: func(ctx context.Context) { w.LoadScene("Title", world.LoadSingle) },
//	}, lifecycle.Options{World: w, Logger: logger})
type Hooks struct {
	// Register adds managers. Called exactly once, from New.
	Register func(r *Registry)

	// ForceInit runs after every manager is ready, for state that needs all
	// of them to exist.
	ForceInit func(ctx context.Context) error

	// OnReady runs last, after the ready signal is published.
	OnReady func(ctx context.Context)
}

// Options tune a Supervisor. The zero value is usable.
type Options struct {
	// World hosts the manager parent object and emits scene loads. Optional.
	World *world.World

	Logger *slog.Logger

	// InitTimeout bounds the wait for each manager. Zero waits forever.
	InitTimeout time.Duration

	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration
}

// ── Supervisor ────────────────────────────────────────────────────────────────

// Supervisor owns the manager registry, initializes managers one at a time
// in registration order and publishes a single ready signal.
type Supervisor struct {
	hooks    Hooks
	opts     Options
	registry *Registry
	notifier *SceneNotifier
	logger   *slog.Logger

	state     atomic.Int32
	started   atomic.Bool
	ready     chan struct{}
	readyOnce sync.Once
}

// New creates a supervisor, subscribes it to scene loads and runs
// hooks.Register.
func New(hooks Hooks, opts Options) *Supervisor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	logger := logging.OrDiscard(opts.Logger)
	reg := newRegistry(opts.World, logger)

	s := &Supervisor{
		hooks:    hooks,
		opts:     opts,
		registry: reg,
		logger:   logger,
		ready:    make(chan struct{}),
	}
	s.state.Store(int32(Constructed))

	var src SceneSource
	if opts.World != nil {
		src = opts.World
	}
	s.notifier = NewSceneNotifier(reg, src, logger)
	s.notifier.Enable()

	if hooks.Register != nil {
		hooks.Register(reg)
	}
	s.state.Store(int32(ManagersRegistered))
	logger.Debug("Managers registered.", "count", reg.Len())
	return s
}

// Register adds a manager before Start. After Start it panics with
// ErrLateRegistration.
func (s *Supervisor) Register(m Manager) {
	s.registry.Add(m)
}

// Registry returns the manager registry.
func (s *Supervisor) Registry() *Registry { return s.registry }

// Notifier returns the scene notifier.
func (s *Supervisor) Notifier() *SceneNotifier { return s.notifier }

// Managers returns the registered managers in order.
func (s *Supervisor) Managers() []Manager { return s.registry.Managers() }

// State returns the current lifecycle state.
func (s *Supervisor) State() State { return State(s.state.Load()) }

// IsInitialized reports whether the supervisor reached Ready.
func (s *Supervisor) IsInitialized() bool { return s.State() == Ready }

// Ready is closed once every manager is ready and ForceInit succeeded.
func (s *Supervisor) Ready() <-chan struct{} { return s.ready }

// AllManagersInitialized reports whether every registered manager is ready.
func (s *Supervisor) AllManagersInitialized() bool {
	for _, m := range s.registry.Managers() {
		if !m.IsInitialized() {
			return false
		}
	}
	return true
}

// Start initializes managers in order. Manager i+1 is not touched until
// manager i reports ready. On error the supervisor stays in Initializing.
// Each Init receives a context carrying a logger tagged with the manager
// name (see logging.FromContext).
func (s *Supervisor) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	s.registry.freeze()
	s.state.Store(int32(Initializing))
	managers := s.registry.Managers()
	s.logger.Info("🔵 Initialize start.", "managers", len(managers))

	for i, m := range managers {
		name := NameOf(m)
		mctx := logging.WithLogger(ctx, s.logger.With("manager", name))
		if err := m.Init(mctx); err != nil {
			s.logger.Error("Manager init failed.", "manager", name, "error", err)
			return fmt.Errorf("lifecycle: init %s: %w", name, err)
		}
		if err := s.waitReady(ctx, m, name, i); err != nil {
			return err
		}
		s.logger.Info("🟢 Manager initialized.", "manager", name, "order", i)
	}

	if s.hooks.ForceInit != nil {
		if err := s.hooks.ForceInit(ctx); err != nil {
			s.logger.Error("Force init failed.", "error", err)
			return fmt.Errorf("lifecycle: force init: %w", err)
		}
	}

	s.state.Store(int32(Ready))
	s.readyOnce.Do(func() { close(s.ready) })
	s.logger.Info("🔵 Initialize completed.")

	if s.hooks.OnReady != nil {
		s.hooks.OnReady(ctx)
	}
	return nil
}

// waitReady polls m until it is ready, ctx is done or InitTimeout expires.
func (s *Supervisor) waitReady(ctx context.Context, m Manager, name string, index int) error {
	if m.IsInitialized() {
		return nil
	}

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	var timeout <-chan time.Time
	if s.opts.InitTimeout > 0 {
		timer := time.NewTimer(s.opts.InitTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("lifecycle: waiting for %s: %w", name, ctx.Err())
		case <-timeout:
			if m.IsInitialized() {
				return nil
			}
			err := &StallError{Manager: name, Index: index, Waited: s.opts.InitTimeout}
			s.logger.Error("Manager never became ready.", "manager", name, "waited", s.opts.InitTimeout)
			return err
		case <-ticker.C:
			if m.IsInitialized() {
				return nil
			}
		}
	}
}

// Close unsubscribes from scene loads.
func (s *Supervisor) Close() {
	s.notifier.Disable()
}
