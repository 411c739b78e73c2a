// Package health is a minimal hit-point component. It knows nothing about
// combat rules: callers hand it final numbers and it reports what actually
// changed.
package health

import (
	"math"
	"sync"
)

// Damageable is anything that can take final damage.
type Damageable interface {
	TakeDamage(amount float64)
}

var _ Damageable = (*Health)(nil)

// Health tracks current/max HP and emits Damaged, Healed and Died events.
type Health struct {
	mu sync.Mutex

	max     float64
	current float64
	dead    bool

	onDamaged []func(applied float64)
	onHealed  []func(applied float64)
	onDied    []func()
}

// New returns a Health initialized with maxHP and full health.
func New(maxHP float64) *Health {
	h := &Health{}
	h.Initialize(maxHP, nil)
	return h
}

// Initialize sets max HP (maxHP, at least 1) and current HP (start, clamped to
// [0, max], or max when start is nil). No events fire.
func (h *Health) Initialize(maxHP float64, start *float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.max = math.Max(1, maxHP)
	cur := h.max
	if start != nil {
		cur = *start
	}
	h.current = clamp(cur, 0, h.max)
	h.dead = h.current <= 0
}

// ── Events ────────────────────────────────────────────────────────────────────

// OnDamaged subscribes to damage actually applied.
func (h *Health) OnDamaged(fn func(applied float64)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onDamaged = append(h.onDamaged, fn)
}

// OnHealed subscribes to healing actually applied.
func (h *Health) OnHealed(fn func(applied float64)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onHealed = append(h.onHealed, fn)
}

// OnDied subscribes to death. It fires once per life.
func (h *Health) OnDied(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onDied = append(h.onDied, fn)
}

// ── Mutations ─────────────────────────────────────────────────────────────────

// TakeDamage subtracts amount (negative treated as 0). Ignored when dead.
func (h *Health) TakeDamage(amount float64) {
	h.mu.Lock()
	if h.dead || amount <= 0 {
		h.mu.Unlock()
		return
	}
	prev := h.current
	h.current = math.Max(0, h.current-amount)
	applied := prev - h.current
	died := h.current <= 0
	if died {
		h.dead = true
	}
	damaged, diedFns := h.onDamaged, h.onDied
	h.mu.Unlock()

	if applied > 0 {
		emit(damaged, applied)
	}
	if died {
		emitVoid(diedFns)
	}
}

// Heal adds amount up to max HP. Ignored when dead.
func (h *Health) Heal(amount float64) {
	h.mu.Lock()
	if h.dead || amount <= 0 {
		h.mu.Unlock()
		return
	}
	prev := h.current
	h.current = math.Min(h.max, h.current+amount)
	applied := h.current - prev
	healed := h.onHealed
	h.mu.Unlock()

	if applied > 0 {
		emit(healed, applied)
	}
}

// Kill drops HP to zero. The remaining HP is reported as damage.
func (h *Health) Kill() {
	h.mu.Lock()
	if h.dead {
		h.mu.Unlock()
		return
	}
	prev := h.current
	h.current = 0
	h.dead = true
	damaged, diedFns := h.onDamaged, h.onDied
	h.mu.Unlock()

	if prev > 0 {
		emit(damaged, prev)
	}
	emitVoid(diedFns)
}

// Revive brings the entity back with hp clamped to [1, max].
func (h *Health) Revive(hp float64) {
	h.mu.Lock()
	h.current = clamp(hp, 1, math.Max(1, h.max))
	h.dead = false
	cur, healed := h.current, h.onHealed
	h.mu.Unlock()

	emit(healed, cur)
}

// ── Accessors ─────────────────────────────────────────────────────────────────

func (h *Health) Max() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.max
}

func (h *Health) Current() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

func (h *Health) IsDead() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dead
}

// Normalized returns current/max in [0, 1], for HP bars.
func (h *Health) Normalized() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.max <= 0 {
		return 0
	}
	return clamp(h.current/h.max, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func emit(fns []func(float64), v float64) {
	for _, fn := range fns {
		fn(v)
	}
}

func emitVoid(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
