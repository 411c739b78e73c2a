package datatable

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Store keeps the raw wrapped JSON of loaded sheets.
type Store interface {
	Get(ctx context.Context, sheet string) ([]byte, bool, error)
	Set(ctx context.Context, sheet string, data []byte) error
	Delete(ctx context.Context, sheet string) (bool, error)
	Has(ctx context.Context, sheet string) (bool, error)
	Clear(ctx context.Context) error
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)

// ── Memory ────────────────────────────────────────────────────────────────────

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, sheet string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[sheet]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, sheet string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sheet] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sheet string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[sheet]
	delete(s.data, sheet)
	return ok, nil
}

func (s *MemoryStore) Has(_ context.Context, sheet string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[sheet]
	return ok, nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string][]byte)
	return nil
}

// ── Redis ─────────────────────────────────────────────────────────────────────

// RedisClient is the subset of redis.Cmdable the store uses.
// *redis.Client and *redis.ClusterClient satisfy it.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

// DefaultRedisPrefix namespaces sheet keys.
const DefaultRedisPrefix = "datatable:"

// RedisStore shares loaded sheets between processes.
type RedisStore struct {
	client RedisClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a store. An empty prefix uses DefaultRedisPrefix;
// a zero ttl never expires. The prefix is matched literally by Clear, glob
// metacharacters in it included.
func NewRedisStore(client RedisClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(sheet string) string { return s.prefix + sheet }

func (s *RedisStore) Get(ctx context.Context, sheet string) ([]byte, bool, error) {
	str, err := s.client.Get(ctx, s.key(sheet)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("datatable: redis get %q: %w", sheet, err)
	}
	return []byte(str), true, nil
}

func (s *RedisStore) Set(ctx context.Context, sheet string, data []byte) error {
	if err := s.client.Set(ctx, s.key(sheet), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("datatable: redis set %q: %w", sheet, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sheet string) (bool, error) {
	n, err := s.client.Del(ctx, s.key(sheet)).Result()
	if err != nil {
		return false, fmt.Errorf("datatable: redis del %q: %w", sheet, err)
	}
	return n > 0, nil
}

func (s *RedisStore) Has(ctx context.Context, sheet string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(sheet)).Result()
	if err != nil {
		return false, fmt.Errorf("datatable: redis exists %q: %w", sheet, err)
	}
	return n > 0, nil
}

// globEscaper quotes the metacharacters of Redis MATCH patterns.
var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string { return globEscaper.Replace(s) }

// Clear deletes every key under the prefix.
func (s *RedisStore) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, escapeGlob(s.prefix)+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("datatable: redis scan: %w", err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("datatable: redis del: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Close closes the underlying client when it supports closing.
func (s *RedisStore) Close() error {
	if c, ok := s.client.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
