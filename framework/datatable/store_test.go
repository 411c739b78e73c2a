package datatable_test

import (
	"context"
	"errors"
	"path"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-managers/framework/datatable"
)

// fakeRedis implements datatable.RedisClient over a map.
type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
	fail error

	snapshot []string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return redis.NewStringResult("", f.fail)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return redis.NewStatusResult("", f.fail)
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Exists(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

// Scan returns one key per page from a snapshot taken at cursor 0, so keys
// deleted mid-iteration do not shift later pages.
func (f *fakeRedis) Scan(_ context.Context, cursor uint64, match string, _ int64) *redis.ScanCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cursor == 0 {
		f.snapshot = f.snapshot[:0]
		for k := range f.data {
			if ok, _ := path.Match(match, k); ok {
				f.snapshot = append(f.snapshot, k)
			}
		}
		sort.Strings(f.snapshot)
	}
	if int(cursor) >= len(f.snapshot) {
		return redis.NewScanCmdResult(nil, 0, nil)
	}
	next := cursor + 1
	if int(next) >= len(f.snapshot) {
		next = 0
	}
	return redis.NewScanCmdResult([]string{f.snapshot[cursor]}, next, nil)
}

func storeContract(t *testing.T, s datatable.Store) {
	t.Helper()
	ctx := context.Background()

	_, found, err := s.Get(ctx, "Units")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Set(ctx, "Units", []byte(`{"items":[]}`)))
	require.NoError(t, s.Set(ctx, "Items", []byte(`{"items":[1]}`)))

	got, found, err := s.Get(ctx, "Units")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"items":[]}`, string(got))

	has, err := s.Has(ctx, "Items")
	require.NoError(t, err)
	assert.True(t, has)

	deleted, err := s.Delete(ctx, "Items")
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = s.Delete(ctx, "Items")
	require.NoError(t, err)
	assert.False(t, deleted)

	require.NoError(t, s.Set(ctx, "Skills", []byte(`{}`)))
	require.NoError(t, s.Clear(ctx))
	for _, sheet := range []string{"Units", "Skills"} {
		has, err := s.Has(ctx, sheet)
		require.NoError(t, err)
		assert.False(t, has, sheet)
	}
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, datatable.NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	storeContract(t, datatable.NewRedisStore(newFakeRedis(), "", 0))
}

func TestRedisStore_PrefixAndTTL(t *testing.T) {
	fake := newFakeRedis()
	fake.data["other:key"] = "keep"
	s := datatable.NewRedisStore(fake, "game:tables:", time.Hour)

	require.NoError(t, s.Set(context.Background(), "Units", []byte(`{}`)))
	assert.Contains(t, fake.data, "game:tables:Units")
	assert.Equal(t, time.Hour, fake.ttls["game:tables:Units"])

	require.NoError(t, s.Clear(context.Background()))
	assert.Equal(t, map[string]string{"other:key": "keep"}, fake.data)
}

func TestRedisStore_ClearTreatsPrefixLiterally(t *testing.T) {
	fake := newFakeRedis()
	fake.data["game1x:Units"] = "keep"
	fake.data["game1?:Units"] = "keep"
	s := datatable.NewRedisStore(fake, "game[1]?:", 0)

	require.NoError(t, s.Set(context.Background(), "Units", []byte(`{}`)))
	require.NoError(t, s.Set(context.Background(), "Skills", []byte(`{}`)))
	require.NoError(t, s.Clear(context.Background()))

	assert.Equal(t, map[string]string{"game1x:Units": "keep", "game1?:Units": "keep"}, fake.data)
}

func TestRedisStore_Errors(t *testing.T) {
	fake := newFakeRedis()
	fake.fail = errors.New("connection refused")
	s := datatable.NewRedisStore(fake, "", 0)

	_, _, err := s.Get(context.Background(), "Units")
	assert.ErrorIs(t, err, fake.fail)
	assert.ErrorIs(t, s.Set(context.Background(), "Units", nil), fake.fail)
}
