package datatable

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/km-arc/go-managers/framework/lifecycle"
	"github.com/km-arc/go-managers/framework/logging"
	"github.com/km-arc/go-managers/framework/world"
)

var (
	// ErrNotLoaded means the sheet has not been loaded or was cleared.
	ErrNotLoaded = errors.New("datatable: sheet not loaded")
	// ErrUnknownSheet means the sheet was never registered.
	ErrUnknownSheet = errors.New("datatable: sheet not registered")
)

// Options configure a Manager.
type Options struct {
	// URL is the sheet endpoint base. May be set later with SetURL.
	URL string
	// LoadOnStart loads every registered sheet during Init.
	LoadOnStart bool
	// Store caches raw sheets. Defaults to a MemoryStore.
	Store Store
	// Client is the HTTP client for the loader. Optional.
	Client *http.Client
	Logger *slog.Logger
}

var _ lifecycle.Manager = (*Manager)(nil)

// Manager loads registered sheets and caches their decoded values.
type Manager struct {
	lifecycle.BaseManager

	loader      *Loader
	store       Store
	loadOnStart bool
	logger      *slog.Logger

	mu        sync.RWMutex
	factories map[string]func() any
	order     []string
	decoded   map[string]any
	progress  float64

	loading atomic.Bool
}

// New creates a data-table manager.
func New(opts Options) *Manager {
	logger := logging.OrDiscard(opts.Logger)
	store := opts.Store
	if store == nil {
		store = NewMemoryStore()
	}
	return &Manager{
		loader:      NewLoader(opts.URL, opts.Client, logger),
		store:       store,
		loadOnStart: opts.LoadOnStart,
		logger:      logger,
		factories:   make(map[string]func() any),
		decoded:     make(map[string]any),
	}
}

// Name implements lifecycle.Named.
func (m *Manager) Name() string { return "DataTableManager" }

// Register declares sheet, decoded into a fresh *T on every load.
//
//	type Units struct{ Items []Unit `json:"items"` }
//	datatable.Register[Units](m, "Units")
func Register[T any](m *Manager, sheet string) {
	m.RegisterFunc(sheet, func() any { return new(T) })
}

// RegisterFunc declares sheet with a factory returning a pointer to decode into.
func (m *Manager) RegisterFunc(sheet string, factory func() any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.factories[sheet]; !ok {
		m.order = append(m.order, sheet)
	}
	m.factories[sheet] = factory
}

// Sheets returns registered sheet names in registration order.
func (m *Manager) Sheets() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

// SetURL replaces the loader's base URL.
func (m *Manager) SetURL(u string) { m.loader.SetURL(u) }

// Loader exposes the underlying loader.
func (m *Manager) Loader() *Loader { return m.loader }

// Init loads every sheet when LoadOnStart is set. Failed sheets are logged;
// the manager still becomes ready.
func (m *Manager) Init(ctx context.Context) error {
	if m.IsInitialized() {
		return nil
	}
	if m.loadOnStart {
		if err := m.LoadAll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logger.Error("❌ Some sheets failed to load.", "error", err)
		}
	}
	m.MarkInitialized()
	m.logger.Info("🟢 Initialize completed.", "manager", m.Name())
	return nil
}

// OnSceneReloaded is a no-op: tables survive scene loads.
func (m *Manager) OnSceneReloaded(world.Scene) {}

// LoadAll loads every registered sheet in order, updating Progress.
func (m *Manager) LoadAll(ctx context.Context) error {
	sheets := m.Sheets()
	m.loading.Store(true)
	m.setProgress(0)
	defer m.loading.Store(false)

	var errs []error
	for i, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := m.LoadTable(ctx, sheet); err != nil {
			errs = append(errs, err)
		}
		m.setProgress(float64(i+1) / float64(len(sheets)))
	}
	if len(sheets) == 0 {
		m.setProgress(1)
	}
	return errors.Join(errs...)
}

// LoadTable fetches and caches one sheet. When the fetch fails and the store
// still holds a previous copy, that copy is used.
func (m *Manager) LoadTable(ctx context.Context, sheet string) error {
	m.mu.RLock()
	factory, ok := m.factories[sheet]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSheet, sheet)
	}

	raw, err := m.loader.Fetch(ctx, sheet)
	if err != nil {
		stale, found, serr := m.store.Get(ctx, sheet)
		if serr != nil || !found {
			m.logger.Error("❌ Sheet load failed.", "sheet", sheet, "error", err)
			return err
		}
		m.logger.Warn("Sheet fetch failed, using stored copy.", "sheet", sheet, "error", err)
		raw = stale
	} else if err := m.store.Set(ctx, sheet, raw); err != nil {
		m.logger.Warn("Sheet store write failed.", "sheet", sheet, "error", err)
	}

	v := factory()
	if err := decode(sheet, raw, v); err != nil {
		m.logger.Error("❌ Sheet load failed.", "sheet", sheet, "error", err)
		return err
	}

	m.mu.Lock()
	m.decoded[sheet] = v
	m.mu.Unlock()
	m.logger.Info("✅ Sheet loaded.", "sheet", sheet)
	return nil
}

// Cached returns the decoded sheet. A sheet present only in the store is
// decoded on first access.
func Cached[T any](ctx context.Context, m *Manager, sheet string) (*T, error) {
	m.mu.RLock()
	v, ok := m.decoded[sheet]
	m.mu.RUnlock()

	if !ok {
		raw, found, err := m.store.Get(ctx, sheet)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrNotLoaded, sheet)
		}
		fresh := new(T)
		if err := decode(sheet, raw, fresh); err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.decoded[sheet] = fresh
		m.mu.Unlock()
		v = fresh
	}

	typed, ok := v.(*T)
	if !ok {
		return nil, fmt.Errorf("datatable: sheet %q holds %T, not %T", sheet, v, (*T)(nil))
	}
	return typed, nil
}

// IsTableLoaded reports whether sheet is cached in memory or in the store.
func (m *Manager) IsTableLoaded(ctx context.Context, sheet string) bool {
	m.mu.RLock()
	_, ok := m.decoded[sheet]
	m.mu.RUnlock()
	if ok {
		return true
	}
	has, err := m.store.Has(ctx, sheet)
	return err == nil && has
}

// ClearCache drops every cached sheet.
func (m *Manager) ClearCache(ctx context.Context) error {
	m.mu.Lock()
	m.decoded = make(map[string]any)
	m.mu.Unlock()
	if err := m.store.Clear(ctx); err != nil {
		return err
	}
	m.logger.Info("🗑️ Data cache cleared.")
	return nil
}

// ClearTableCache drops one sheet. Returns false when nothing was cached.
func (m *Manager) ClearTableCache(ctx context.Context, sheet string) bool {
	m.mu.Lock()
	_, inMemory := m.decoded[sheet]
	delete(m.decoded, sheet)
	m.mu.Unlock()

	stored, err := m.store.Delete(ctx, sheet)
	if err != nil {
		m.logger.Warn("Sheet store delete failed.", "sheet", sheet, "error", err)
	}
	if inMemory || stored {
		m.logger.Info("🗑️ Sheet cache cleared.", "sheet", sheet)
		return true
	}
	return false
}

// IsLoading reports whether LoadAll is running.
func (m *Manager) IsLoading() bool { return m.loading.Load() }

// Progress is the fraction of sheets processed by the current or last LoadAll.
func (m *Manager) Progress() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.progress
}

func (m *Manager) setProgress(p float64) {
	m.mu.Lock()
	m.progress = p
	m.mu.Unlock()
}
