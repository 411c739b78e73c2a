package lifecycle

import (
	"context"
	"reflect"
	"sync/atomic"

	"github.com/km-arc/go-managers/framework/world"
)

// ── Manager interface ─────────────────────────────────────────────────────────

// Manager is the capability set every registered service must satisfy.
//
//	type AudioManager struct{ lifecycle.BaseManager }
//
//	func (m *AudioManager) Init(ctx context.Context) error {
//	    go func() {
//	        m.loadBanks()
//	        m.MarkInitialized()
//	    }()
//	    return nil
//	}
type Manager interface {
	// Init triggers initialization. It may finish asynchronously; the
	// supervisor waits for IsInitialized before moving on. Calling it again
	// after the manager is ready must be a no-op.
	Init(ctx context.Context) error

	// IsInitialized flips from false to true exactly once.
	IsInitialized() bool

	// OnSceneReloaded re-acquires references a scene load may have
	// invalidated. It can arrive before Init has finished.
	OnSceneReloaded(scene world.Scene)
}

// Named lets a manager choose the name used in logs and diagnostics.
type Named interface {
	Name() string
}

// NameOf returns m's Name() or its type name.
func NameOf(m Manager) string {
	if n, ok := m.(Named); ok && n.Name() != "" {
		return n.Name()
	}
	t := reflect.TypeOf(m)
	if t == nil {
		return "<nil>"
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// isNil catches typed nil pointers hidden in a non-nil interface.
func isNil(m Manager) bool {
	if m == nil {
		return true
	}
	v := reflect.ValueOf(m)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

// ── BaseManager ───────────────────────────────────────────────────────────────

// BaseManager is an embeddable struct carrying the ready flag and a no-op
// OnSceneReloaded. Embed it and implement Init.
type BaseManager struct {
	ready atomic.Bool
}

// IsInitialized reports whether MarkInitialized has been called.
func (b *BaseManager) IsInitialized() bool { return b.ready.Load() }

// MarkInitialized sets the ready flag. It returns true only for the call that
// actually flipped it.
func (b *BaseManager) MarkInitialized() bool { return b.ready.CompareAndSwap(false, true) }

// OnSceneReloaded does nothing.
func (b *BaseManager) OnSceneReloaded(world.Scene) {}
