package lifecycle

import (
	"log/slog"
	"sync"

	"github.com/km-arc/go-managers/framework/logging"
	"github.com/km-arc/go-managers/framework/world"
)

// SceneSource emits scene-loaded events and knows which components died.
// world.World implements it.
type SceneSource interface {
	OnSceneLoaded(fn func(world.Scene)) (unsubscribe func())
	Destroyed(component any) bool
}

// SceneNotifier relays scene loads to every registered manager.
type SceneNotifier struct {
	registry *Registry
	src      SceneSource
	logger   *slog.Logger

	mu          sync.Mutex
	unsubscribe func()
}

// NewSceneNotifier creates a notifier. src may be nil, in which case only
// explicit Notify calls deliver anything.
func NewSceneNotifier(reg *Registry, src SceneSource, logger *slog.Logger) *SceneNotifier {
	return &SceneNotifier{registry: reg, src: src, logger: logging.OrDiscard(logger)}
}

// Enable subscribes to the source. Calling it twice is harmless.
func (n *SceneNotifier) Enable() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.src == nil || n.unsubscribe != nil {
		return
	}
	n.unsubscribe = n.src.OnSceneLoaded(func(scene world.Scene) { n.Notify(scene) })
}

// Disable removes the subscription.
func (n *SceneNotifier) Disable() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.unsubscribe != nil {
		n.unsubscribe()
		n.unsubscribe = nil
	}
}

// Enabled reports whether the notifier is subscribed.
func (n *SceneNotifier) Enabled() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.unsubscribe != nil
}

// Notify calls OnSceneReloaded on every live manager, ready or not, and
// returns how many were notified. Destroyed managers are skipped.
func (n *SceneNotifier) Notify(scene world.Scene) int {
	notified := 0
	for _, m := range n.registry.Managers() {
		if isNil(m) || (n.src != nil && n.src.Destroyed(m)) {
			n.logger.Debug("Skipping dead manager on scene load.", "manager", NameOf(m))
			continue
		}
		m.OnSceneReloaded(scene)
		notified++
	}
	n.logger.Debug("Scene reload delivered.", "scene", scene.Name, "managers", notified)
	return notified
}
