package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/km-arc/go-managers/framework/validation"
)

// Config is the central typed configuration struct.
type Config struct {
	App         AppConfig
	Log         LogConfig
	Lifecycle   LifecycleConfig
	DataTable   DataTableConfig
	Redis       RedisConfig
	Diagnostics DiagnosticsConfig
}

type AppConfig struct {
	Name      string
	Env       string // local | production | testing
	Debug     bool
	TargetFPS int
}

type LogConfig struct {
	Level  string // debug | info | warn | error
	Format string // text | json
}

type LifecycleConfig struct {
	InitTimeout  time.Duration // 0 waits forever
	PollInterval time.Duration
}

type DataTableConfig struct {
	URL         string
	LoadOnStart bool
	Cache       string // memory | redis
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type DiagnosticsConfig struct {
	Port string // empty disables the server
}

// Rules validate the raw environment before it is parsed, so a typo is
// reported instead of silently falling back to a default.
var Rules = validation.Rules{
	"APP_NAME":                "sometimes|max:64",
	"APP_ENV":                 "sometimes|in:local,production,testing",
	"APP_DEBUG":               "sometimes|boolean",
	"APP_TARGET_FPS":          "sometimes|integer|gte:1|lte:1000",
	"LOG_LEVEL":               "sometimes|in:debug,info,warn,warning,error",
	"LOG_FORMAT":              "sometimes|in:text,json",
	"LIFECYCLE_INIT_TIMEOUT":  "sometimes|duration",
	"LIFECYCLE_POLL_INTERVAL": "sometimes|duration",
	"DATATABLE_URL":           "sometimes|url",
	"DATATABLE_LOAD_ON_START": "sometimes|boolean",
	"DATATABLE_CACHE":         "sometimes|in:memory,redis",
	"REDIS_ADDR":              "required_if:DATATABLE_CACHE,redis|sometimes|host_port",
	"REDIS_DB":                "sometimes|integer|gte:0",
	"DIAGNOSTICS_PORT":        "sometimes|integer|gte:1|lte:65535",
}

// Load reads .env (if present) and populates a Config from environment variables.
// Call once at bootstrap: cfg := config.Load()
func Load(envFiles ...string) *Config {
	files := envFiles
	if len(files) == 0 {
		files = []string{".env"}
	}
	// Non-fatal: .env may not exist in production
	_ = godotenv.Load(files...)

	return &Config{
		App: AppConfig{
			Name:      env("APP_NAME", "Game"),
			Env:       env("APP_ENV", "local"),
			Debug:     envBool("APP_DEBUG", true),
			TargetFPS: GetInt("APP_TARGET_FPS", 60),
		},
		Log: LogConfig{
			Level:  env("LOG_LEVEL", "info"),
			Format: env("LOG_FORMAT", "text"),
		},
		Lifecycle: LifecycleConfig{
			InitTimeout:  GetDuration("LIFECYCLE_INIT_TIMEOUT", 30*time.Second),
			PollInterval: GetDuration("LIFECYCLE_POLL_INTERVAL", 10*time.Millisecond),
		},
		DataTable: DataTableConfig{
			URL:         env("DATATABLE_URL", ""),
			LoadOnStart: envBool("DATATABLE_LOAD_ON_START", true),
			Cache:       env("DATATABLE_CACHE", "memory"),
		},
		Redis: RedisConfig{
			Addr:     env("REDIS_ADDR", "127.0.0.1:6379"),
			Password: env("REDIS_PASSWORD", ""),
			DB:       GetInt("REDIS_DB", 0),
			Prefix:   env("REDIS_PREFIX", "datatable:"),
		},
		Diagnostics: DiagnosticsConfig{
			Port: env("DIAGNOSTICS_PORT", ""),
		},
	}
}

// Validate checks every known key in the environment against Rules.
// The returned error is a *validation.Errors.
func Validate() error {
	data := make(map[string]string, len(Rules))
	for key := range Rules {
		data[key] = os.Getenv(key)
	}
	// required_if looks at DATATABLE_CACHE's effective value.
	if data["DATATABLE_CACHE"] == "" {
		data["DATATABLE_CACHE"] = "memory"
	}
	return validation.Make(data, Rules).Err()
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool { return c.App.Env == "production" }

// Get returns a raw env value, falling back to defaultVal.
func Get(key, defaultVal string) string {
	return env(key, defaultVal)
}

// GetInt returns an int env value.
func GetInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

// GetBool returns a bool env value.
func GetBool(key string, defaultVal bool) bool {
	return envBool(key, defaultVal)
}

// GetDuration returns a time.Duration env value such as "30s".
func GetDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// ── helpers ─────────────────────────────────────────────────────────────────

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
