// Package resources caches game assets read from an fs.FS.
//
// Each asset category searches its own comma separated list of directories,
// first match wins:
//
//	m := resources.New(os.DirFS("Assets/Resources"), logger)
//	hero, err := m.Prefab("Hero")
package resources
