package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/km-arc/go-managers/framework/config"
	"github.com/km-arc/go-managers/framework/container"
	"github.com/km-arc/go-managers/framework/datatable"
)

// Provider registers singleton factories on a resolver.
type Provider interface {
	Register(r *container.Resolver)
}

// ── ConfigProvider ────────────────────────────────────────────────────────────

// ConfigProvider binds the loaded configuration.
//
// Bound types:
//   - *config.Config
type ConfigProvider struct {
	Config *config.Config
}

func (p *ConfigProvider) Register(r *container.Resolver) {
	cfg := p.Config
	container.Singleton(r, func(*container.Resolver) (*config.Config, error) {
		if cfg == nil {
			return config.Load(), nil
		}
		return cfg, nil
	})
}

// ── DataTableStoreProvider ────────────────────────────────────────────────────

// DataTableStoreProvider binds the sheet store selected by DATATABLE_CACHE.
//
// Bound types:
//   - datatable.Store  (*datatable.MemoryStore or *datatable.RedisStore)
//
// Configuration keys read from *config.Config:
//   - DataTable.Cache  memory | redis
//   - Redis.Addr, Redis.Password, Redis.DB, Redis.Prefix
type DataTableStoreProvider struct {
	// TTL applied to stored sheets in redis. Zero never expires.
	TTL time.Duration
	// Ping checks the redis connection when the store is built.
	Ping bool
}

func (p *DataTableStoreProvider) Register(r *container.Resolver) {
	ttl, ping := p.TTL, p.Ping
	container.Singleton(r, func(r *container.Resolver) (datatable.Store, error) {
		cfg, err := container.Resolve[*config.Config](r)
		if err != nil {
			return nil, err
		}
		if cfg.DataTable.Cache != "redis" {
			return datatable.NewMemoryStore(), nil
		}

		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if ping {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := client.Ping(ctx).Err(); err != nil {
				_ = client.Close()
				return nil, fmt.Errorf("providers: redis %s: %w", cfg.Redis.Addr, err)
			}
		}
		return datatable.NewRedisStore(client, cfg.Redis.Prefix, ttl), nil
	})
}

// Defaults returns the framework providers in registration order.
func Defaults(cfg *config.Config) []Provider {
	return []Provider{
		&ConfigProvider{Config: cfg},
		&DataTableStoreProvider{},
	}
}
