package world

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/km-arc/go-managers/framework/logging"
)

// ── Scenes ────────────────────────────────────────────────────────────────────

// LoadMode controls what happens to existing objects when a scene loads.
type LoadMode int

const (
	// LoadSingle replaces the active scene: every non-persistent object is destroyed.
	LoadSingle LoadMode = iota
	// LoadAdditive keeps every existing object.
	LoadAdditive
)

func (m LoadMode) String() string {
	if m == LoadAdditive {
		return "additive"
	}
	return "single"
}

// Scene identifies an active content context.
type Scene struct {
	Name string   `json:"name"`
	Mode LoadMode `json:"mode"`
}

// ── Objects ───────────────────────────────────────────────────────────────────

// Object is a node in the runtime object graph carrying one component.
type Object struct {
	ID        uint64
	Name      string
	Parent    *Object
	Component any

	persistent bool
	doomed     bool
}

// Persistent reports whether the object itself was marked to survive scene loads.
func (o *Object) Persistent() bool { return o.persistent }

// root returns the top-most ancestor.
func (o *Object) root() *Object {
	for o.Parent != nil {
		o = o.Parent
	}
	return o
}

// Destroyer is implemented by components that want a callback when their
// object is removed from the world.
type Destroyer interface {
	OnDestroy()
}

type listener struct {
	id int
	fn func(Scene)
}

// ── World ─────────────────────────────────────────────────────────────────────

// World is an in-memory object graph with scene loading. Components are keyed
// by identity, so they must be comparable (pointers in practice).
type World struct {
	mu sync.Mutex

	nextID    uint64
	objects   []*Object // creation order
	byComp    map[any]*Object
	destroyed map[any]struct{}
	pending   []*Object

	listeners  []listener
	nextListen int

	active Scene
	logger *slog.Logger
}

// New creates a world whose active scene is initial.
func New(initial string, logger *slog.Logger) *World {
	return &World{
		byComp:    make(map[any]*Object),
		destroyed: make(map[any]struct{}),
		active:    Scene{Name: initial, Mode: LoadSingle},
		logger:    logging.OrDiscard(logger),
	}
}

// Spawn attaches component to the graph under parent (nil for a root object).
// Spawning an already attached component returns its existing object.
func (w *World) Spawn(name string, component any, parent *Object) *Object {
	if component == nil {
		panic("world: Spawn called with nil component")
	}
	if !reflect.TypeOf(component).Comparable() {
		panic(fmt.Sprintf("world: component %T is not comparable", component))
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if obj, ok := w.byComp[component]; ok {
		return obj
	}
	w.nextID++
	obj := &Object{ID: w.nextID, Name: name, Parent: parent, Component: component}
	w.objects = append(w.objects, obj)
	w.byComp[component] = obj
	delete(w.destroyed, component)
	return obj
}

// Attach spawns component as a root object.
func (w *World) Attach(name string, component any) {
	w.Spawn(name, component, nil)
}

// ObjectOf returns the object carrying component.
func (w *World) ObjectOf(component any) (*Object, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	obj, ok := w.byComp[component]
	return obj, ok
}

// FindAll returns every live component whose dynamic type is t (or implements
// t when t is an interface), in creation order.
func (w *World) FindAll(t reflect.Type) []any {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []any
	for _, obj := range w.objects {
		if obj.doomed {
			continue
		}
		ct := reflect.TypeOf(obj.Component)
		if ct == t || (t.Kind() == reflect.Interface && ct.Implements(t)) {
			out = append(out, obj.Component)
		}
	}
	return out
}

// Persist marks the object carrying component (and so its children) to
// survive single-mode scene loads. Returns false when component is unknown.
func (w *World) Persist(component any) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	obj, ok := w.byComp[component]
	if !ok {
		return false
	}
	obj.persistent = true
	return true
}

// Destroy schedules the object carrying component, and its descendants, for
// removal at the next Flush.
func (w *World) Destroy(component any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	obj, ok := w.byComp[component]
	if !ok || obj.doomed {
		return
	}
	w.doom(obj)
}

// doom must hold mu.
func (w *World) doom(target *Object) {
	for _, obj := range w.objects {
		if obj.doomed {
			continue
		}
		for p := obj; p != nil; p = p.Parent {
			if p == target {
				obj.doomed = true
				w.pending = append(w.pending, obj)
				break
			}
		}
	}
}

// Alive reports whether component is attached and not scheduled for destruction.
func (w *World) Alive(component any) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	obj, ok := w.byComp[component]
	return ok && !obj.doomed
}

// Destroyed reports whether component was attached once and has since been
// destroyed or scheduled for destruction.
func (w *World) Destroyed(component any) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if obj, ok := w.byComp[component]; ok {
		return obj.doomed
	}
	_, gone := w.destroyed[component]
	return gone
}

// Pending returns the number of objects awaiting removal.
func (w *World) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Len returns the number of attached objects, including pending ones.
func (w *World) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.objects)
}

// Flush removes every scheduled object and runs OnDestroy callbacks.
// It returns the number of removed objects.
func (w *World) Flush() int {
	w.mu.Lock()
	doomed := w.pending
	w.pending = nil
	if len(doomed) > 0 {
		kept := w.objects[:0]
		for _, obj := range w.objects {
			if obj.doomed {
				delete(w.byComp, obj.Component)
				w.destroyed[obj.Component] = struct{}{}
				continue
			}
			kept = append(kept, obj)
		}
		w.objects = kept
	}
	w.mu.Unlock()

	for _, obj := range doomed {
		if d, ok := obj.Component.(Destroyer); ok {
			d.OnDestroy()
		}
	}
	return len(doomed)
}

// ── Scene loading ─────────────────────────────────────────────────────────────

// OnSceneLoaded subscribes fn to scene-loaded events. The returned func
// removes the subscription.
func (w *World) OnSceneLoaded(fn func(Scene)) (unsubscribe func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextListen++
	id := w.nextListen
	w.listeners = append(w.listeners, listener{id: id, fn: fn})

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		for i, l := range w.listeners {
			if l.id == id {
				w.listeners = append(w.listeners[:i:i], w.listeners[i+1:]...)
				return
			}
		}
	}
}

// LoadScene activates a new scene. In single mode every object whose root is
// not persistent is destroyed before listeners run.
func (w *World) LoadScene(name string, mode LoadMode) Scene {
	scene := Scene{Name: name, Mode: mode}

	w.mu.Lock()
	if mode == LoadSingle {
		for _, obj := range w.objects {
			if !obj.doomed && !obj.root().persistent {
				obj.doomed = true
				w.pending = append(w.pending, obj)
			}
		}
	}
	w.active = scene
	listeners := append([]listener(nil), w.listeners...)
	w.mu.Unlock()

	removed := w.Flush()
	w.logger.Info("Scene loaded", "scene", name, "mode", mode.String(), "destroyed", removed)

	for _, l := range listeners {
		l.fn(scene)
	}
	return scene
}

// ActiveScene returns the most recently loaded scene.
func (w *World) ActiveScene() Scene {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// ── Frame loop ────────────────────────────────────────────────────────────────

// Run ticks at fps frames per second, flushing scheduled destroys at the end
// of every frame, until ctx is done.
func (w *World) Run(ctx context.Context, fps int) error {
	if fps <= 0 {
		fps = 60
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	w.logger.Debug("World frame loop started.", "fps", fps)
	for {
		select {
		case <-ctx.Done():
			w.Flush()
			w.logger.Debug("World frame loop stopped.")
			return nil
		case <-ticker.C:
			w.Flush()
		}
	}
}
