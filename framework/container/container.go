package container

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/km-arc/go-managers/framework/logging"
)

// ── Errors ────────────────────────────────────────────────────────────────────

var (
	// ErrShuttingDown is returned by every resolution after Shutdown.
	ErrShuttingDown = errors.New("container: shutting down")
	// ErrDuplicateInstance reports more than one live instance of a singleton type.
	// The resolver recovers by keeping the earliest one.
	ErrDuplicateInstance = errors.New("container: duplicate singleton instance")
	// ErrNoFactory means the type cannot be built: no factory is registered and
	// it is not a pointer to a struct.
	ErrNoFactory = errors.New("container: no factory registered")
	// ErrCircularResolution means a factory resolved, directly or through other
	// factories, the type it is building.
	ErrCircularResolution = errors.New("container: circular resolution")
)

// ── Environment ───────────────────────────────────────────────────────────────

// Environment is the runtime object graph the resolver looks instances up in.
// world.World implements it.
type Environment interface {
	// FindAll returns every live instance of t, earliest created first.
	FindAll(t reflect.Type) []any
	// Attach adds a freshly built instance to the object graph.
	Attach(name string, component any)
	// Persist marks component to survive scene transitions.
	Persist(component any) bool
	// Destroy schedules component for disposal.
	Destroy(component any)
	// Destroyed reports whether component was attached once and has since
	// been destroyed or scheduled for destruction.
	Destroyed(component any) bool
}

// Awakener is implemented by singletons that want a callback once they become
// the canonical instance.
type Awakener interface {
	OnSingletonAwake()
}

// Factory builds a singleton. It may resolve other singletons through r.
type Factory func(r *Resolver) (any, error)

// record is the per-type singleton slot.
type record struct {
	instance  any
	persisted bool
}

// ── Resolver ──────────────────────────────────────────────────────────────────

// Resolver owns at most one canonical instance per type. It replaces
// package-level singleton state: create one per application and pass it to
// whoever needs lookups.
//
// The Resolver handed to a Factory shares all state with its parent and
// additionally remembers which types the current call chain is building.
type Resolver struct {
	*shared

	// types being built by this call chain, outermost first
	chain []reflect.Type
}

type shared struct {
	mu sync.Mutex

	env    Environment
	logger *slog.Logger

	// type → canonical instance
	records map[reflect.Type]*record

	// type → registered factory
	factories map[reflect.Type]Factory

	// type → closed when the in-flight build finishes
	building map[reflect.Type]chan struct{}

	quitting bool
}

// New creates a resolver backed by env.
func New(env Environment, logger *slog.Logger) *Resolver {
	return &Resolver{shared: &shared{
		env:       env,
		logger:    logging.OrDiscard(logger),
		records:   make(map[reflect.Type]*record),
		factories: make(map[reflect.Type]Factory),
		building:  make(map[reflect.Type]chan struct{}),
	}}
}

// ── Registration ──────────────────────────────────────────────────────────────

// Singleton registers the factory used when no live T exists.
//
//	container.Singleton(r, func(r *container.Resolver) (*Audio, error) {
//	    return NewAudio(container.MustResolve[*Config](r)), nil
//	})
func Singleton[T any](r *Resolver, factory func(r *Resolver) (T, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typeOf[T]()] = func(r *Resolver) (any, error) {
		return factory(r)
	}
}

// Adopt is called by an instance announcing itself as the singleton for T.
// An empty slot, or one whose instance was destroyed, adopts it; a slot held
// by another live instance keeps the incumbent, destroys inst and returns
// ErrDuplicateInstance.
func Adopt[T any](r *Resolver, inst T) error {
	t := typeOf[T]()
	r.current(t)

	r.mu.Lock()
	if r.quitting {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrShuttingDown, TypeName(t))
	}
	if rec, ok := r.records[t]; ok && rec.instance != nil {
		same := rec.instance == any(inst)
		r.mu.Unlock()
		if same {
			return nil
		}
		r.logger.Warn("Duplicate singleton detected, destroying newcomer.", "type", TypeName(t))
		r.env.Destroy(inst)
		return fmt.Errorf("%w: %s", ErrDuplicateInstance, TypeName(t))
	}
	rec := &record{instance: inst}
	r.records[t] = rec
	r.mu.Unlock()

	r.canonicalize(t, rec)
	return nil
}

// ── Resolution ────────────────────────────────────────────────────────────────

// Resolve returns the canonical T, discovering or building it on first use.
//
//	audio, err := container.Resolve[*Audio](r)
func Resolve[T any](r *Resolver) (T, error) {
	var zero T
	t := typeOf[T]()
	inst, err := r.resolve(t)
	if err != nil {
		return zero, err
	}
	typed, ok := inst.(T)
	if !ok {
		return zero, fmt.Errorf("container: Resolve[%s]: resolved to %T", TypeName(t), inst)
	}
	return typed, nil
}

// MustResolve is like Resolve but panics on error.
func MustResolve[T any](r *Resolver) T {
	v, err := Resolve[T](r)
	if err != nil {
		panic(err)
	}
	return v
}

// IsValid reports whether a live canonical T exists and shutdown has not
// begun.
func IsValid[T any](r *Resolver) bool {
	return r.current(typeOf[T]()) != nil && !r.ShuttingDown()
}

// Resolved reports whether T has a live canonical instance, ignoring
// shutdown.
func Resolved[T any](r *Resolver) bool {
	return r.current(typeOf[T]()) != nil
}

// ForceInit resolves T eagerly if it has not been resolved yet.
func ForceInit[T any](r *Resolver) error {
	if Resolved[T](r) {
		return nil
	}
	inst, err := Resolve[T](r)
	if err != nil {
		return err
	}
	r.logger.Debug("Singleton force-initialized.", "type", TypeName(typeOf[T]()), "instance", fmt.Sprintf("%p", any(inst)))
	return nil
}

// Forget drops the canonical T so the next Resolve discovers it again.
func Forget[T any](r *Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, typeOf[T]())
}

// current returns the canonical record for t, or nil. A record whose instance
// the environment has destroyed is dropped so the next resolution rediscovers.
func (r *Resolver) current(t reflect.Type) *record {
	r.mu.Lock()
	rec, ok := r.records[t]
	r.mu.Unlock()
	if !ok || rec.instance == nil {
		return nil
	}
	if !r.env.Destroyed(rec.instance) {
		return rec
	}

	r.mu.Lock()
	if r.records[t] == rec {
		delete(r.records, t)
		r.logger.Warn("Canonical singleton was destroyed, dropping it.", "type", TypeName(t))
	}
	r.mu.Unlock()
	return nil
}

func (r *Resolver) resolve(t reflect.Type) (any, error) {
	name := TypeName(t)

	for _, outer := range r.chain {
		if outer == t {
			return nil, fmt.Errorf("%w: %s", ErrCircularResolution, name)
		}
	}

	var (
		done    chan struct{}
		factory Factory
	)
	for {
		if r.ShuttingDown() {
			r.logger.Warn("Resolver is shutting down, refusing resolution.", "type", name)
			return nil, fmt.Errorf("%w: %s", ErrShuttingDown, name)
		}
		if rec := r.current(t); rec != nil {
			return rec.instance, nil
		}

		r.mu.Lock()
		if r.quitting || r.records[t] != nil {
			r.mu.Unlock()
			continue
		}
		if wait, ok := r.building[t]; ok {
			// Another call chain is building t; take its result.
			r.mu.Unlock()
			<-wait
			continue
		}
		done = make(chan struct{})
		r.building[t] = done
		factory = r.factories[t]
		r.mu.Unlock()
		break
	}

	defer func() {
		r.mu.Lock()
		delete(r.building, t)
		r.mu.Unlock()
		close(done)
	}()

	inst, created, err := r.discover(t, factory)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if rec, ok := r.records[t]; ok && rec.instance != nil {
		// Adopted while we were building.
		r.mu.Unlock()
		if created {
			r.env.Destroy(inst)
		}
		return rec.instance, nil
	}
	rec := &record{instance: inst}
	r.records[t] = rec
	r.mu.Unlock()

	r.canonicalize(t, rec)
	return inst, nil
}

// within returns a resolver for the factory building t.
func (r *Resolver) within(t reflect.Type) *Resolver {
	chain := make([]reflect.Type, len(r.chain), len(r.chain)+1)
	copy(chain, r.chain)
	return &Resolver{shared: r.shared, chain: append(chain, t)}
}

// discover looks t up in the environment, building a fresh instance when
// there is none. created is true for freshly built instances.
func (r *Resolver) discover(t reflect.Type, factory Factory) (inst any, created bool, err error) {
	name := TypeName(t)
	found := r.env.FindAll(t)

	switch len(found) {
	case 0:
		inst, err = r.build(t, factory)
		if err != nil {
			return nil, false, err
		}
		r.env.Attach(name, inst)
		r.logger.Info("Singleton instance created.", "type", name)
		return inst, true, nil
	case 1:
		return found[0], false, nil
	default:
		r.logger.Error("Multiple singleton instances found, keeping the first.",
			"type", name, "count", len(found), "error", ErrDuplicateInstance)
		for _, extra := range found[1:] {
			r.env.Destroy(extra)
		}
		return found[0], false, nil
	}
}

func (r *Resolver) build(t reflect.Type, factory Factory) (any, error) {
	if factory != nil {
		inst, err := factory(r.within(t))
		if err != nil {
			return nil, fmt.Errorf("container: build %s: %w", TypeName(t), err)
		}
		if inst == nil {
			return nil, fmt.Errorf("container: build %s: factory returned nil", TypeName(t))
		}
		return inst, nil
	}
	if t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct {
		return reflect.New(t.Elem()).Interface(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoFactory, TypeName(t))
}

// canonicalize runs the one-time side effects for a new canonical instance.
func (r *Resolver) canonicalize(t reflect.Type, rec *record) {
	r.mu.Lock()
	if rec.persisted {
		r.mu.Unlock()
		return
	}
	rec.persisted = true
	inst := rec.instance
	r.mu.Unlock()

	r.env.Persist(inst)
	if a, ok := inst.(Awakener); ok {
		a.OnSingletonAwake()
	}
	r.logger.Debug("Singleton registered as canonical.", "type", TypeName(t))
}

// ── Teardown ──────────────────────────────────────────────────────────────────

// Shutdown flags the resolver as shutting down. It is irreversible.
func (r *Resolver) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.quitting {
		r.quitting = true
		r.logger.Debug("Resolver shutdown signaled.")
	}
}

// ShuttingDown reports whether Shutdown has been called.
func (r *Resolver) ShuttingDown() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.quitting
}

// Flush drops every canonical instance. Factories and the shutdown flag stay.
func (r *Resolver) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = make(map[reflect.Type]*record)
}

// Types returns the names of every type with a canonical instance (for debugging).
func (r *Resolver) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.records))
	for t, rec := range r.records {
		if rec.instance != nil {
			out = append(out, TypeName(t))
		}
	}
	return out
}

// ── Reflect helpers ───────────────────────────────────────────────────────────

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// TypeName returns the package-qualified name of t, dereferencing pointers.
//
//	container.TypeName(reflect.TypeOf(&Audio{}))  // "game.Audio"
func TypeName(t reflect.Type) string {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Name() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}
