package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StorePebble   = "pebble"
	StoreMemory   = "memory"
)

// Browser modes. BrowserAuto uses the session kind each vendor profile asks for.
const (
	BrowserAuto   = "auto"
	BrowserRod    = "rod"
	BrowserStatic = "static"
)

type Config struct {
	Env        string
	ListenAddr string
	LogLevel   string

	StoreBackend string
	DatabaseURL  string
	PebbleDir    string
	RedisURL     string

	RefreshWorkers int
	RefreshQueue   int
	CacheTTL       time.Duration

	VendorProfiles  string
	BrowserMode     string
	BrowserHeadless bool
	BrowserBin      string
	BrowserTimeout  time.Duration
	ScreenshotDir   string

	RetryMax  int
	RetryBase time.Duration
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var out int
		_, err := fmt.Sscanf(v, "%d", &out)
		if err == nil {
			return out
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// Load reads a .env file when there is one, then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the config from the process environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		Env:             getenv("APP_ENV", "development"),
		ListenAddr:      getenv("LISTEN_ADDR", ":8080"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		StoreBackend:    strings.ToLower(getenv("STORE_BACKEND", StoreMemory)),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		PebbleDir:       getenv("PEBBLE_DIR", "data/pebble"),
		RedisURL:        os.Getenv("REDIS_URL"),
		RefreshWorkers:  getenvInt("REFRESH_WORKERS", 2),
		RefreshQueue:    getenvInt("REFRESH_QUEUE", 256),
		CacheTTL:        getenvDuration("CACHE_TTL", 24*time.Hour),
		VendorProfiles:  os.Getenv("VENDOR_PROFILES"),
		BrowserMode:     strings.ToLower(getenv("BROWSER_MODE", BrowserAuto)),
		BrowserHeadless: getenvBool("BROWSER_HEADLESS", true),
		BrowserBin:      os.Getenv("BROWSER_BIN"),
		BrowserTimeout:  getenvDuration("BROWSER_TIMEOUT", 30*time.Second),
		ScreenshotDir:   getenv("SCREENSHOT_DIR", "screenshots"),
		RetryMax:        getenvInt("RETRY_MAX", 3),
		RetryBase:       getenvDuration("RETRY_BASE", time.Second),
	}

	switch cfg.StoreBackend {
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return cfg, fmt.Errorf("DATABASE_URL is required for STORE_BACKEND=%s", StorePostgres)
		}
	case StorePebble, StoreMemory:
	default:
		return cfg, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	switch cfg.BrowserMode {
	case BrowserAuto, BrowserRod, BrowserStatic:
	default:
		return cfg, fmt.Errorf("unknown BROWSER_MODE %q", cfg.BrowserMode)
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	return cfg, nil
}
