package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type EventsCfg struct {
	Enabled bool   `toml:"enabled"`
	Brokers string `toml:"brokers"`
	Topic   string `toml:"topic"`
	Queue   int    `toml:"queue"`
}

type MetricsCfg struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
	Path    string `toml:"path"`
}

// BuildCfg is stamped onto the build info gauge.
type BuildCfg struct {
	Version  string `toml:"version"`
	Revision string `toml:"revision"`
	Branch   string `toml:"branch"`
	Date     string `toml:"date"`
}

type Config struct {
	Addr           string        `toml:"addr"`
	LogLevel       string        `toml:"log_level"`
	LogConsole     bool          `toml:"log_console"`
	LogSampleN     int           `toml:"log_sample_n"`
	DefaultDPI     int           `toml:"default_dpi"`
	DefaultOverlap float64       `toml:"default_overlap"`
	MaxUploadBytes int64         `toml:"max_upload_bytes"`
	MaxPixels      int64         `toml:"max_pixels"`
	GenerationTTL  Duration      `toml:"generation_ttl"`
	GenerationCap  int           `toml:"generation_capacity"`
	PanelCache     string        `toml:"panel_cache"`
	PanelCacheTTL  Duration      `toml:"panel_cache_ttl"`
	PanelCacheSize int           `toml:"panel_cache_size"`
	CacheNamespace string        `toml:"cache_namespace"`
	RedisAddr      string        `toml:"redis_addr"`
	CacheOpTimeout Duration      `toml:"cache_op_timeout"`
	Events         EventsCfg     `toml:"events"`
	Metrics        MetricsCfg    `toml:"metrics"`
	Build          BuildCfg      `toml:"build"`
	AllowedOrigins []string      `toml:"allowed_origins"`
	ShutdownGrace  time.Duration `toml:"-"`
}

// Duration decodes TOML strings such as "30m".
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", b, err)
	}
	d.Duration = v
	return nil
}

func Defaults() Config {
	return Config{
		Addr:           ":5000",
		LogLevel:       "info",
		DefaultDPI:     150,
		DefaultOverlap: 2,
		MaxUploadBytes: 50 << 20,
		MaxPixels:      400_000_000,
		GenerationTTL:  Duration{30 * time.Minute},
		GenerationCap:  8,
		PanelCache:     "memory",
		PanelCacheSize: 64,
		CacheNamespace: "wallpanels",
		RedisAddr:      "localhost:6379",
		CacheOpTimeout: Duration{500 * time.Millisecond},
		Events: EventsCfg{
			Brokers: "localhost:9092",
			Topic:   "panel-generations",
			Queue:   256,
		},
		Metrics: MetricsCfg{
			Addr: ":9090",
			Path: "/metrics",
		},
		AllowedOrigins: []string{"*"},
		ShutdownGrace:  10 * time.Second,
	}
}

// FromEnv loads defaults, then the optional TOML file named by CONFIG_FILE,
// then environment overrides.
func FromEnv() (Config, error) {
	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

func LoadFile(path string, cfg *Config) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file %s: %w", path, err)
		}
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

func applyEnv(c *Config) {
	c.Addr = getenv("ADDR", c.Addr)
	if port := os.Getenv("PORT"); port != "" && os.Getenv("ADDR") == "" {
		c.Addr = ":" + port
	}
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)
	c.LogConsole = getbool("LOG_CONSOLE", c.LogConsole)
	c.LogSampleN = getint("LOG_SAMPLE_N", c.LogSampleN)
	c.DefaultDPI = getint("DEFAULT_DPI", c.DefaultDPI)
	c.DefaultOverlap = getfloat("DEFAULT_OVERLAP", c.DefaultOverlap)
	c.MaxUploadBytes = getint64("MAX_UPLOAD_BYTES", c.MaxUploadBytes)
	c.MaxPixels = getint64("MAX_PIXELS", c.MaxPixels)
	c.GenerationTTL.Duration = getduration("GENERATION_TTL", c.GenerationTTL.Duration)
	c.GenerationCap = getint("GENERATION_CAPACITY", c.GenerationCap)
	c.PanelCache = strings.ToLower(getenv("PANEL_CACHE_DRIVER", c.PanelCache))
	c.PanelCacheTTL.Duration = getduration("PANEL_CACHE_TTL", c.PanelCacheTTL.Duration)
	c.PanelCacheSize = getint("PANEL_CACHE_SIZE", c.PanelCacheSize)
	c.CacheNamespace = getenv("CACHE_NAMESPACE", c.CacheNamespace)
	c.RedisAddr = getenv("REDIS_ADDR", c.RedisAddr)
	c.CacheOpTimeout.Duration = getduration("CACHE_OP_TIMEOUT", c.CacheOpTimeout.Duration)
	c.Events.Enabled = getbool("EVENTS_ENABLED", c.Events.Enabled)
	c.Events.Brokers = getenv("KAFKA_BROKERS", c.Events.Brokers)
	c.Events.Topic = getenv("KAFKA_TOPIC", c.Events.Topic)
	c.Events.Queue = getint("EVENTS_QUEUE", c.Events.Queue)
	c.Metrics.Enabled = getbool("METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Addr = getenv("METRICS_ADDR", c.Metrics.Addr)
	c.Metrics.Path = getenv("METRICS_PATH", c.Metrics.Path)
	c.Build.Version = getenv("BUILD_VERSION", c.Build.Version)
	c.Build.Revision = getenv("BUILD_REVISION", c.Build.Revision)
	c.Build.Branch = getenv("BUILD_BRANCH", c.Build.Branch)
	c.Build.Date = getenv("BUILD_DATE", c.Build.Date)
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}
}

func (c Config) Validate() error {
	switch {
	case c.DefaultDPI <= 0:
		return fmt.Errorf("default dpi must be positive (got %d)", c.DefaultDPI)
	case c.DefaultOverlap < 0:
		return fmt.Errorf("default overlap must not be negative (got %g)", c.DefaultOverlap)
	case c.MaxUploadBytes <= 0:
		return fmt.Errorf("max upload bytes must be positive (got %d)", c.MaxUploadBytes)
	case c.LogSampleN < 0:
		return fmt.Errorf("log sample rate must not be negative (got %d)", c.LogSampleN)
	case c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/"):
		return fmt.Errorf("metrics path must start with / (got %q)", c.Metrics.Path)
	}
	switch c.PanelCache {
	case "none", "memory", "redis":
	default:
		return fmt.Errorf("unknown panel cache driver %q (want none, memory or redis)", c.PanelCache)
	}
	return nil
}

func (c Config) Brokers() []string { return splitList(c.Events.Brokers) }

func splitList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
