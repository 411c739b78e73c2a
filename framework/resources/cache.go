package resources

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/km-arc/go-managers/framework/strutil"
)

var (
	// ErrNotFound means no file matched the name in any search directory.
	ErrNotFound = errors.New("resources: not found")
	// ErrNotInitialized is returned by Manager lookups before Init.
	ErrNotInitialized = errors.New("resources: manager not initialized")
)

// Decoder turns raw file bytes into a cached value.
type Decoder[T any] func(name, filePath string, data []byte) (T, error)

// Cache lazily loads named files from a set of directories and keeps the
// decoded values until deleted.
type Cache[T any] struct {
	mu     sync.RWMutex
	fsys   fs.FS
	dirs   []string
	exts   []string
	decode Decoder[T]
	items  map[string]T
}

// NewCache builds a cache over fsys. dirs and exts are comma separated lists,
// e.g. "Sound, Sound/SFX" and "ogg, wav". An empty exts matches any extension.
func NewCache[T any](fsys fs.FS, dirs, exts string, decode Decoder[T]) *Cache[T] {
	var normalized []string
	for _, e := range strutil.SplitTrim(exts, ',') {
		normalized = append(normalized, strings.TrimPrefix(e, "."))
	}
	return &Cache[T]{
		fsys:   fsys,
		dirs:   strutil.SplitTrim(dirs, ','),
		exts:   normalized,
		decode: decode,
		items:  make(map[string]T),
	}
}

// Dirs returns the search directories in priority order.
func (c *Cache[T]) Dirs() []string { return append([]string(nil), c.dirs...) }

// Get returns the cached value for name, loading it on first use.
func (c *Cache[T]) Get(name string) (T, error) {
	c.mu.RLock()
	v, ok := c.items[name]
	c.mu.RUnlock()
	if ok {
		return v, nil
	}

	var zero T
	filePath, ok := c.locate(name)
	if !ok {
		return zero, fmt.Errorf("%w: %s in [%s]", ErrNotFound, name, strings.Join(c.dirs, ", "))
	}
	v, err := c.load(name, filePath)
	if err != nil {
		return zero, err
	}
	return v, nil
}

// Has reports whether name is already cached.
func (c *Cache[T]) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.items[name]
	return ok
}

// Del evicts name. Returns false when it was not cached.
func (c *Cache[T]) Del(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[name]; !ok {
		return false
	}
	delete(c.items, name)
	return true
}

// Clear evicts everything.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]T)
}

// Len returns the number of cached values.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// LoadAll preloads every matching file in every directory. Missing
// directories are skipped. The first name found wins, as with Get.
func (c *Cache[T]) LoadAll() (int, error) {
	loaded := 0
	for _, dir := range c.dirs {
		entries, err := fs.ReadDir(c.fsys, dir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return loaded, fmt.Errorf("resources: read %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() || !c.matches(e.Name()) {
				continue
			}
			name := strings.TrimSuffix(e.Name(), path.Ext(e.Name()))
			if c.Has(name) {
				continue
			}
			if _, err := c.load(name, path.Join(dir, e.Name())); err != nil {
				return loaded, err
			}
			loaded++
		}
	}
	return loaded, nil
}

func (c *Cache[T]) load(name, filePath string) (T, error) {
	var zero T
	data, err := fs.ReadFile(c.fsys, filePath)
	if err != nil {
		return zero, fmt.Errorf("resources: read %s: %w", filePath, err)
	}
	v, err := c.decode(name, filePath, data)
	if err != nil {
		return zero, fmt.Errorf("resources: decode %s: %w", filePath, err)
	}
	c.mu.Lock()
	c.items[name] = v
	c.mu.Unlock()
	return v, nil
}

// locate finds the first file for name across dirs and extensions.
func (c *Cache[T]) locate(name string) (string, bool) {
	for _, dir := range c.dirs {
		base := path.Join(dir, name)
		if len(c.exts) == 0 {
			matches, _ := fs.Glob(c.fsys, base+".*")
			for _, m := range matches {
				if st, err := fs.Stat(c.fsys, m); err == nil && !st.IsDir() {
					return m, true
				}
			}
			continue
		}
		for _, ext := range c.exts {
			candidate := base + "." + ext
			if st, err := fs.Stat(c.fsys, candidate); err == nil && !st.IsDir() {
				return candidate, true
			}
		}
	}
	return "", false
}

func (c *Cache[T]) matches(file string) bool {
	ext := strings.TrimPrefix(path.Ext(file), ".")
	if ext == "" {
		return false
	}
	if len(c.exts) == 0 {
		return true
	}
	for _, e := range c.exts {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}
