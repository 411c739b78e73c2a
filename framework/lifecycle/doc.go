// Package lifecycle bootstraps an application's managers.
//
// # Lifecycle
//
//	New    Hooks.Register adds managers             → ManagersRegistered
//	Start  each manager's Init, then wait for ready  → Initializing
//	       Hooks.ForceInit, ready signal, OnReady    → Ready
//
// Initialization is a strict barrier: manager i+1 never starts while manager
// i is pending, so a manager may rely on everything registered before it.
// Registration closes when Start begins; a late Register panics with
// ErrLateRegistration.
//
// # Managers
//
//	type ResourceManager struct{ lifecycle.BaseManager }
//
//	func (m *ResourceManager) Init(ctx context.Context) error {
//	    if m.IsInitialized() {
//	        return nil
//	    }
//	    m.load()
//	    m.MarkInitialized()
//	    return nil
//	}
//
// # Scene reloads
//
// With Options.World set, every scene load reaches OnSceneReloaded on all
// registered managers that are still alive, whether or not they finished
// initializing.
//
// # Bounded waits
//
//	lifecycle.Options{InitTimeout: 30 * time.Second}
//
// A manager that stays pending longer makes Start return a *StallError
// (errors.Is(err, ErrStalledInitialization)).
package lifecycle
