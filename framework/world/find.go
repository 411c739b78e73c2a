package world

import "reflect"

// FindAllOf returns every live component of type T in creation order.
func FindAllOf[T any](w *World) []T {
	t := reflect.TypeOf((*T)(nil)).Elem()
	found := w.FindAll(t)
	out := make([]T, 0, len(found))
	for _, c := range found {
		if typed, ok := c.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}

// Find returns the earliest created live component of type T.
func Find[T any](w *World) (T, bool) {
	all := FindAllOf[T](w)
	if len(all) == 0 {
		var zero T
		return zero, false
	}
	return all[0], true
}

// Ensure returns *ref when it is still alive. Otherwise it looks for a live
// T in the world and, failing that, builds one with ctor and spawns it under
// parent. *ref is updated in every case.
//
//	world.Ensure(w, &m.camera, "Camera", m.root, func() *Camera { return &Camera{} })
func Ensure[T any](w *World, ref *T, name string, parent *Object, ctor func() T) T {
	if w.Alive(*ref) {
		return *ref
	}
	if found, ok := Find[T](w); ok {
		*ref = found
		w.logger.Debug("Component found in scene.", "name", name)
		return found
	}
	*ref = ctor()
	w.Spawn(name, *ref, parent)
	w.logger.Debug("Component created.", "name", name)
	return *ref
}

// Reconnect refreshes *ref from the world after a scene load. It never
// creates anything; ok is false when no live T exists.
func Reconnect[T any](w *World, ref *T, name string) (T, bool) {
	if w.Alive(*ref) {
		return *ref, true
	}
	found, ok := Find[T](w)
	if !ok {
		w.logger.Warn("Component not found in scene.", "name", name)
		return *ref, false
	}
	*ref = found
	w.logger.Debug("Component reconnected.", "name", name)
	return found, true
}
