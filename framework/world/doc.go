// Package world is the runtime environment the managers live in: an object
// graph with creation-ordered lookup, persistence across scene loads,
// deferred destruction and scene-loaded events.
//
// # Lifecycle of an object
//
//	w := world.New("Boot", logger)
//	obj := w.Spawn("Audio", audio, nil)  // attach
//	w.Persist(audio)                     // survive LoadSingle
//	w.Destroy(audio)                     // scheduled
//	w.Flush()                            // removed, OnDestroy called
//
// # Scenes
//
//	unsubscribe := w.OnSceneLoaded(func(s world.Scene) { ... })
//	w.LoadScene("Battle", world.LoadSingle)
//
// A single-mode load destroys every object whose root is not persistent,
// flushes, then notifies listeners in subscription order.
package world
