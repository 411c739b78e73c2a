// Package container resolves one canonical instance per Go type.
//
// # Overview
//
// A Resolver replaces hand-rolled package-level singletons. It is owned by
// the application root and passed to anything that needs lookups, so tests
// get an isolated resolver each.
//
// Resolution looks the type up in an Environment (the runtime object graph):
//
//   - nothing live: build one (registered factory, or zero value for
//     pointer-to-struct types), attach it, mark it persistent
//   - one live: adopt it
//   - several live: adopt the earliest created, destroy the rest and log the
//     conflict (ErrDuplicateInstance, not fatal)
//
// The canonical instance is cached until Forget, Flush or Shutdown. A cached
// instance the environment has since destroyed is dropped on the next lookup,
// and resolution starts over.
//
// Concurrent callers resolving the same type wait for the one in-flight
// build. ErrCircularResolution is reported only when a factory's own call
// chain comes back to the type it is building.
//
// # Resolving
//
//	r := container.New(w, logger)
//
//	container.Singleton(r, func(r *container.Resolver) (*Audio, error) {
//	    return &Audio{Volume: 0.8}, nil
//	})
//
//	audio, err := container.Resolve[*Audio](r)
//	audio := container.MustResolve[*Audio](r)   // panics instead
//
//	container.IsValid[*Audio](r)    // canonical exists and not shutting down
//	container.ForceInit[*Audio](r)  // resolve now if not yet resolved
//
// # Self registration
//
// An instance placed in the world by other means can claim its slot:
//
//	if err := container.Adopt(r, audio); errors.Is(err, container.ErrDuplicateInstance) {
//	    // audio was scheduled for destruction, the incumbent stays
//	}
//
// # Shutdown
//
// After r.Shutdown() every Resolve returns ErrShuttingDown, even when a
// canonical instance is still cached.
package container
