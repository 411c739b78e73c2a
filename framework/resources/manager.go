package resources

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"

	"github.com/km-arc/go-managers/framework/lifecycle"
	"github.com/km-arc/go-managers/framework/logging"
	"github.com/km-arc/go-managers/framework/world"
)

// Category groups assets that share search directories.
type Category string

const (
	Prefab      Category = "prefab"
	UIPrefab    Category = "ui-prefab"
	Effect      Category = "effect"
	Sprite      Category = "sprite"
	SpriteAtlas Category = "sprite-atlas"
	Audio       Category = "audio"
	Material    Category = "material"
	TextAsset   Category = "text-asset"
	Font        Category = "font"
)

// Paths are the comma separated search directories and extensions of a category.
type Paths struct {
	Dirs string
	Exts string
}

// DefaultPaths is the conventional asset layout.
var DefaultPaths = map[Category]Paths{
	Prefab:      {Dirs: "Prefabs, Prefabs/UI, Prefabs/Effect", Exts: "prefab"},
	UIPrefab:    {Dirs: "Prefabs/UI/Prefab, Prefabs/UI/Map", Exts: "prefab"},
	Effect:      {Dirs: "Effect, Effect/Base Game"},
	Sprite:      {Dirs: "Sprites"},
	SpriteAtlas: {Dirs: "SpriteAtlas"},
	Audio:       {Dirs: "Sound, Sound/SFX, Sound/BGM", Exts: "ogg, wav"},
	Material:    {Dirs: "Materials"},
	TextAsset:   {Dirs: "TextAsset"},
	Font:        {Dirs: "FontAsset"},
}

// Asset is a raw file as loaded from disk. Decoding is left to the game.
type Asset struct {
	Name string
	Path string
	Data []byte
}

func decodeAsset(name, filePath string, data []byte) (Asset, error) {
	return Asset{Name: name, Path: filePath, Data: data}, nil
}

var _ lifecycle.Manager = (*Manager)(nil)

// Manager owns one Cache per Category. It preloads the sprite atlas and
// audio on Init and refreshes the atlas after every scene load.
type Manager struct {
	lifecycle.BaseManager

	fsys   fs.FS
	logger *slog.Logger

	mu     sync.RWMutex
	paths  map[Category]Paths
	caches map[Category]*Cache[Asset]
}

// New creates a resource manager reading from fsys with DefaultPaths.
func New(fsys fs.FS, logger *slog.Logger) *Manager {
	paths := make(map[Category]Paths, len(DefaultPaths))
	for k, v := range DefaultPaths {
		paths[k] = v
	}
	return &Manager{
		fsys:   fsys,
		logger: logging.OrDiscard(logger),
		paths:  paths,
	}
}

// Name implements lifecycle.Named.
func (m *Manager) Name() string { return "ResourceManager" }

// SetPaths overrides a category's layout. Only effective before Init.
func (m *Manager) SetPaths(cat Category, p Paths) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paths[cat] = p
	return m
}

// Init builds the caches and preloads the sprite atlas and audio.
func (m *Manager) Init(ctx context.Context) error {
	if m.IsInitialized() {
		return nil
	}

	m.mu.Lock()
	m.caches = make(map[Category]*Cache[Asset], len(m.paths))
	for cat, p := range m.paths {
		m.caches[cat] = NewCache(m.fsys, p.Dirs, p.Exts, decodeAsset)
	}
	m.mu.Unlock()

	for _, cat := range []Category{SpriteAtlas, Audio} {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := m.preload(cat)
		if err != nil {
			return err
		}
		m.logger.Debug("Resources preloaded.", "category", string(cat), "count", n)
	}

	m.MarkInitialized()
	m.logger.Info("🟢 Initialize completed.", "manager", m.Name())
	return nil
}

// OnSceneReloaded re-reads the sprite atlas, whose entries a scene load may
// have invalidated.
func (m *Manager) OnSceneReloaded(scene world.Scene) {
	m.logger.Debug("🔄 Reconnecting resources after scene load.", "scene", scene.Name)
	cache := m.cache(SpriteAtlas)
	if cache == nil {
		return
	}
	cache.Clear()
	if _, err := cache.LoadAll(); err != nil {
		m.logger.Warn("Sprite atlas reload failed.", "error", err)
		return
	}
	m.logger.Debug("✅ Resources reconnected.", "scene", scene.Name)
}

func (m *Manager) preload(cat Category) (int, error) {
	n, err := m.cache(cat).LoadAll()
	if err != nil {
		return n, fmt.Errorf("resources: preload %s: %w", cat, err)
	}
	return n, nil
}

func (m *Manager) cache(cat Category) *Cache[Asset] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.caches[cat]
}

// Get returns the named asset of a category.
func (m *Manager) Get(cat Category, name string) (Asset, error) {
	c := m.cache(cat)
	if c == nil {
		if m.IsInitialized() {
			return Asset{}, fmt.Errorf("%w: unknown category %q", ErrNotFound, cat)
		}
		return Asset{}, ErrNotInitialized
	}
	return c.Get(name)
}

// Del evicts the named asset of a category.
func (m *Manager) Del(cat Category, name string) bool {
	c := m.cache(cat)
	if c == nil {
		return false
	}
	return c.Del(name)
}

// Cached returns how many assets of a category are loaded.
func (m *Manager) Cached(cat Category) int {
	c := m.cache(cat)
	if c == nil {
		return 0
	}
	return c.Len()
}

// ── Category shorthands ───────────────────────────────────────────────────────

func (m *Manager) Prefab(name string) (Asset, error)      { return m.Get(Prefab, name) }
func (m *Manager) UIPrefab(name string) (Asset, error)    { return m.Get(UIPrefab, name) }
func (m *Manager) Effect(name string) (Asset, error)      { return m.Get(Effect, name) }
func (m *Manager) Sprite(name string) (Asset, error)      { return m.Get(Sprite, name) }
func (m *Manager) AtlasSprite(name string) (Asset, error) { return m.Get(SpriteAtlas, name) }
func (m *Manager) AudioClip(name string) (Asset, error)   { return m.Get(Audio, name) }
func (m *Manager) Material(name string) (Asset, error)    { return m.Get(Material, name) }
func (m *Manager) TextAsset(name string) (Asset, error)   { return m.Get(TextAsset, name) }
func (m *Manager) Font(name string) (Asset, error)        { return m.Get(Font, name) }
