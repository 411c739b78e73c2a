package lifecycle_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-managers/framework/lifecycle"
	"github.com/km-arc/go-managers/framework/logging"
	"github.com/km-arc/go-managers/framework/world"
)

// ── stub managers ─────────────────────────────────────────────────────────────

// callLog records events from several goroutines in order.
type callLog struct {
	mu     sync.Mutex
	events []string
}

func (l *callLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// asyncManager becomes ready on its own goroutine after delay.
type asyncManager struct {
	lifecycle.BaseManager
	name    string
	delay   time.Duration
	log     *callLog
	before  []*asyncManager
	early   bool // set when Init ran while a predecessor was pending
	inits   int
	reloads []string
}

func (m *asyncManager) Name() string { return m.name }

func (m *asyncManager) Init(ctx context.Context) error {
	m.inits++
	if m.IsInitialized() {
		return nil
	}
	for _, b := range m.before {
		if !b.IsInitialized() {
			m.early = true
		}
	}
	m.log.add("init(%s)", m.name)
	go func() {
		time.Sleep(m.delay)
		m.log.add("ready(%s)", m.name)
		m.MarkInitialized()
	}()
	return nil
}

func (m *asyncManager) OnSceneReloaded(scene world.Scene) {
	m.reloads = append(m.reloads, scene.Name)
}

// stuckManager never becomes ready.
type stuckManager struct {
	lifecycle.BaseManager
	id int
}

func (m *stuckManager) Init(context.Context) error { return nil }

// failingManager returns an error from Init.
type failingManager struct {
	lifecycle.BaseManager
	err error
}

func (m *failingManager) Init(context.Context) error { return m.err }

// valueManager has a non-comparable dynamic type.
type valueManager struct{ tags []string }

func (valueManager) Init(context.Context) error  { return nil }
func (valueManager) IsInitialized() bool         { return true }
func (valueManager) OnSceneReloaded(world.Scene) {}

// loggingManager logs from Init through the context logger.
type loggingManager struct {
	lifecycle.BaseManager
}

func (m *loggingManager) Init(ctx context.Context) error {
	logging.FromContext(ctx).Info("warming up")
	m.MarkInitialized()
	return nil
}

// syncManager is ready as soon as Init returns.
type syncManager struct {
	lifecycle.BaseManager
	id int
}

func (m *syncManager) Init(context.Context) error {
	m.MarkInitialized()
	return nil
}

func fastOptions() lifecycle.Options {
	return lifecycle.Options{
		Logger:       logging.Discard(),
		PollInterval: time.Millisecond,
		InitTimeout:  2 * time.Second,
	}
}

func newManagers(log *callLog, names ...string) []*asyncManager {
	var out []*asyncManager
	for _, n := range names {
		m := &asyncManager{name: n, delay: 5 * time.Millisecond, log: log}
		m.before = append([]*asyncManager(nil), out...)
		out = append(out, m)
	}
	return out
}

// ── Ordering ──────────────────────────────────────────────────────────────────

func TestStart_StrictSequentialOrder(t *testing.T) {
	log := &callLog{}
	ms := newManagers(log, "A", "B", "C")

	sup := lifecycle.New(lifecycle.Hooks{
		Register: func(r *lifecycle.Registry) {
			for _, m := range ms {
				r.Add(m)
			}
		},
	}, fastOptions())

	require.NoError(t, sup.Start(context.Background()))

	want := []string{"init(A)", "ready(A)", "init(B)", "ready(B)", "init(C)", "ready(C)"}
	if diff := cmp.Diff(want, log.snapshot()); diff != "" {
		t.Errorf("call order mismatch (-want +got):\n%s", diff)
	}
	for _, m := range ms {
		assert.False(t, m.early, "%s initialized before its predecessors were ready", m.name)
	}
}

func TestStart_HooksRunAfterAllReady(t *testing.T) {
	log := &callLog{}
	ms := newManagers(log, "A", "B")
	var sup *lifecycle.Supervisor

	sup = lifecycle.New(lifecycle.Hooks{
		Register: func(r *lifecycle.Registry) {
			for _, m := range ms {
				r.Add(m)
			}
		},
		ForceInit: func(ctx context.Context) error {
			log.add("force(all=%t)", sup.AllManagersInitialized())
			return nil
		},
		OnReady: func(ctx context.Context) {
			log.add("ready-hook(%s)", sup.State())
		},
	}, fastOptions())

	require.NoError(t, sup.Start(context.Background()))

	got := log.snapshot()
	require.Len(t, got, 6)
	assert.Equal(t, []string{"force(all=true)", "ready-hook(ready)"}, got[4:])
}

// ── State machine ─────────────────────────────────────────────────────────────

func TestState_Transitions(t *testing.T) {
	var seen lifecycle.State = -1
	var sup *lifecycle.Supervisor

	sup = lifecycle.New(lifecycle.Hooks{
		Register: func(r *lifecycle.Registry) {
			r.Add(&syncManager{id: 1})
		},
		ForceInit: func(ctx context.Context) error {
			seen = sup.State()
			return nil
		},
	}, fastOptions())

	assert.Equal(t, lifecycle.ManagersRegistered, sup.State())
	assert.False(t, sup.IsInitialized())

	require.NoError(t, sup.Start(context.Background()))
	assert.Equal(t, lifecycle.Initializing, seen)
	assert.Equal(t, lifecycle.Ready, sup.State())
	assert.True(t, sup.IsInitialized())
}

func TestRegisterHook_CalledOnce(t *testing.T) {
	calls := 0
	sup := lifecycle.New(lifecycle.Hooks{
		Register: func(r *lifecycle.Registry) { calls++ },
	}, fastOptions())
	require.NoError(t, sup.Start(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestStart_Twice(t *testing.T) {
	sup := lifecycle.New(lifecycle.Hooks{}, fastOptions())
	require.NoError(t, sup.Start(context.Background()))
	assert.ErrorIs(t, sup.Start(context.Background()), lifecycle.ErrAlreadyStarted)
}

func TestStart_EmptyRegistryIsReady(t *testing.T) {
	sup := lifecycle.New(lifecycle.Hooks{}, fastOptions())
	require.NoError(t, sup.Start(context.Background()))
	assert.True(t, sup.AllManagersInitialized())
}

// ── Ready signal ──────────────────────────────────────────────────────────────

func TestReady_ClosedOnce(t *testing.T) {
	sup := lifecycle.New(lifecycle.Hooks{
		Register: func(r *lifecycle.Registry) { r.Add(&syncManager{id: 1}) },
	}, fastOptions())

	select {
	case <-sup.Ready():
		t.Fatal("ready signal published before Start")
	default:
	}

	require.NoError(t, sup.Start(context.Background()))

	select {
	case <-sup.Ready():
	case <-time.After(time.Second):
		t.Fatal("ready signal not published")
	}
}

// ── AllManagersInitialized ────────────────────────────────────────────────────

func TestAllManagersInitialized(t *testing.T) {
	a := &syncManager{id: 1}
	b := &syncManager{id: 2}
	sup := lifecycle.New(lifecycle.Hooks{
		Register: func(r *lifecycle.Registry) {
			r.Add(a)
			r.Add(b)
		},
	}, fastOptions())

	assert.False(t, sup.AllManagersInitialized())
	a.MarkInitialized()
	assert.False(t, sup.AllManagersInitialized(), "b still pending")
	b.MarkInitialized()
	assert.True(t, sup.AllManagersInitialized())
}

// ── Late registration ─────────────────────────────────────────────────────────

func TestRegister_AfterStartPanics(t *testing.T) {
	sup := lifecycle.New(lifecycle.Hooks{}, fastOptions())
	require.NoError(t, sup.Start(context.Background()))

	defer func() {
		r := recover()
		require.NotNil(t, r, "late registration must panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value should be an error, got %T", r)
		assert.ErrorIs(t, err, lifecycle.ErrLateRegistration)
	}()
	sup.Register(&syncManager{id: 1})
}

func TestRegister_DuringInitializationPanics(t *testing.T) {
	var sup *lifecycle.Supervisor
	var recovered any
	late := &syncManager{id: 2}

	sup = lifecycle.New(lifecycle.Hooks{
		Register: func(r *lifecycle.Registry) { r.Add(&syncManager{id: 1}) },
		ForceInit: func(ctx context.Context) error {
			defer func() { recovered = recover() }()
			sup.Register(late)
			return nil
		},
	}, fastOptions())

	require.NoError(t, sup.Start(context.Background()))
	require.NotNil(t, recovered)
	assert.ErrorIs(t, recovered.(error), lifecycle.ErrLateRegistration)
	assert.Len(t, sup.Managers(), 1)
}

func TestRegister_BeforeStartAllowed(t *testing.T) {
	sup := lifecycle.New(lifecycle.Hooks{}, fastOptions())
	m := &syncManager{id: 1}
	sup.Register(m)
	require.NoError(t, sup.Start(context.Background()))
	assert.True(t, m.IsInitialized())
}

func TestRegister_DuplicateIgnored(t *testing.T) {
	m := &syncManager{id: 1}
	sup := lifecycle.New(lifecycle.Hooks{
		Register: func(r *lifecycle.Registry) {
			assert.True(t, r.Add(m))
			assert.False(t, r.Add(m))
		},
	}, fastOptions())
	assert.Len(t, sup.Managers(), 1)
}

func TestRegister_NonComparablePanics(t *testing.T) {
	sup := lifecycle.New(lifecycle.Hooks{}, fastOptions())
	assert.PanicsWithValue(t,
		"lifecycle: manager lifecycle_test.valueManager is not comparable, register a pointer",
		func() { sup.Register(valueManager{tags: []string{"a"}}) })
	assert.Empty(t, sup.Managers())
}

// ── Failure semantics ─────────────────────────────────────────────────────────

func TestStart_StalledManagerTimesOut(t *testing.T) {
	after := &syncManager{id: 9}
	opts := fastOptions()
	opts.InitTimeout = 20 * time.Millisecond

	sup := lifecycle.New(lifecycle.Hooks{
		Register: func(r *lifecycle.Registry) {
			r.Add(&stuckManager{id: 1})
			r.Add(after)
		},
	}, opts)

	err := sup.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, lifecycle.ErrStalledInitialization)

	var stall *lifecycle.StallError
	require.True(t, errors.As(err, &stall))
	assert.Equal(t, "stuckManager", stall.Manager)
	assert.Equal(t, 0, stall.Index)

	assert.Equal(t, lifecycle.Initializing, sup.State())
	assert.False(t, after.IsInitialized(), "later managers are never initialized")
}

func TestStart_ContextCancelled(t *testing.T) {
	opts := fastOptions()
	opts.InitTimeout = 0

	sup := lifecycle.New(lifecycle.Hooks{
		Register: func(r *lifecycle.Registry) { r.Add(&stuckManager{id: 1}) },
	}, opts)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := sup.Start(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, lifecycle.Initializing, sup.State())
}

func TestStart_InitError(t *testing.T) {
	boom := errors.New("boom")
	onReady := false
	sup := lifecycle.New(lifecycle.Hooks{
		Register: func(r *lifecycle.Registry) { r.Add(&failingManager{err: boom}) },
		OnReady:  func(context.Context) { onReady = true },
	}, fastOptions())

	err := sup.Start(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.False(t, onReady)
	assert.False(t, sup.IsInitialized())
}

func TestStart_ForceInitError(t *testing.T) {
	boom := errors.New("force failed")
	sup := lifecycle.New(lifecycle.Hooks{
		ForceInit: func(context.Context) error { return boom },
	}, fastOptions())

	assert.ErrorIs(t, sup.Start(context.Background()), boom)
	assert.Equal(t, lifecycle.Initializing, sup.State())
}

// ── Idempotent Init ───────────────────────────────────────────────────────────

func TestInit_AlreadyReadyManager(t *testing.T) {
	log := &callLog{}
	m := newManagers(log, "A")[0]
	m.MarkInitialized()

	sup := lifecycle.New(lifecycle.Hooks{
		Register: func(r *lifecycle.Registry) { r.Add(m) },
	}, fastOptions())

	require.NoError(t, sup.Start(context.Background()))
	assert.Equal(t, 1, m.inits)
	assert.Empty(t, log.snapshot(), "a ready manager's Init is a no-op")
}

// ── Create ────────────────────────────────────────────────────────────────────

func TestCreate_AttachesUnderManagerParent(t *testing.T) {
	w := world.New("Boot", logging.Discard())
	opts := fastOptions()
	opts.World = w

	var created *syncManager
	lifecycle.New(lifecycle.Hooks{
		Register: func(r *lifecycle.Registry) {
			created = lifecycle.Create(r, func() *syncManager { return &syncManager{id: 3} })
		},
	}, opts)

	obj, ok := w.ObjectOf(created)
	require.True(t, ok)
	require.NotNil(t, obj.Parent)
	assert.Equal(t, lifecycle.ManagerParentName, obj.Parent.Name)

	w.LoadScene("Next", world.LoadSingle)
	assert.True(t, w.Alive(created), "managers live under a persistent parent")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "initializing", lifecycle.Initializing.String())
	assert.Equal(t, "State(9)", lifecycle.State(9).String())
}

// ── Context logger ────────────────────────────────────────────────────────────

func TestStart_InitContextCarriesManagerLogger(t *testing.T) {
	var buf bytes.Buffer
	opts := fastOptions()
	opts.Logger = logging.New("info", "json", &buf)

	sup := lifecycle.New(lifecycle.Hooks{
		Register: func(r *lifecycle.Registry) { r.Add(&loggingManager{}) },
	}, opts)
	require.NoError(t, sup.Start(context.Background()))

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["msg"] == "warming up" {
			found = true
			assert.Equal(t, "loggingManager", entry["manager"])
		}
	}
	assert.True(t, found, "Init logged through the context logger")
}
