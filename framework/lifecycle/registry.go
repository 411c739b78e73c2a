package lifecycle

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/km-arc/go-managers/framework/world"
)

// ManagerParentName is the name of the world object managers are attached under.
const ManagerParentName = "==== Manager ===="

// Registry is the ordered set of managers. Insertion order is initialization
// order; the same manager added twice is ignored. It freezes once the
// supervisor starts initializing.
type Registry struct {
	mu       sync.RWMutex
	managers []Manager
	seen     map[Manager]bool
	frozen   bool

	world  *world.World
	parent *world.Object
	logger *slog.Logger
}

func newRegistry(w *world.World, logger *slog.Logger) *Registry {
	r := &Registry{
		seen:   make(map[Manager]bool),
		world:  w,
		logger: logger,
	}
	if w != nil {
		parent := &managerRoot{}
		r.parent = w.Spawn(ManagerParentName, parent, nil)
		w.Persist(parent)
	}
	return r
}

// managerRoot is the component carried by the manager parent object.
type managerRoot struct {
	_ byte
}

// Add appends m. It panics with ErrLateRegistration once the registry is
// frozen, and when m's dynamic type is not comparable (register a pointer).
// Returns false when m was already registered.
func (r *Registry) Add(m Manager) bool {
	if isNil(m) {
		panic("lifecycle: Add called with nil manager")
	}
	if !reflect.TypeOf(m).Comparable() {
		panic(fmt.Sprintf("lifecycle: manager %T is not comparable, register a pointer", m))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		panic(fmt.Errorf("%w: %s", ErrLateRegistration, NameOf(m)))
	}
	if r.seen[m] {
		r.logger.Warn("Manager already registered, ignoring.", "manager", NameOf(m))
		return false
	}
	r.seen[m] = true
	r.managers = append(r.managers, m)
	r.logger.Debug("Manager registered.", "manager", NameOf(m), "order", len(r.managers)-1)
	return true
}

// Managers returns a snapshot in registration order.
func (r *Registry) Managers() []Manager {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Manager, len(r.managers))
	copy(out, r.managers)
	return out
}

// Len returns the number of registered managers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.managers)
}

// Frozen reports whether registration is closed.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

func (r *Registry) freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Create builds a manager with ctor, attaches it under the manager parent
// object (when the registry has a world) and registers it.
//
//	res := lifecycle.Create(reg, func() *resources.Manager { return resources.New(fsys, logger) })
func Create[T Manager](r *Registry, ctor func() T) T {
	m := ctor()
	if r.world != nil {
		r.world.Spawn(NameOf(m), m, r.parent)
	}
	r.Add(m)
	return m
}
