package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// InvalidationCfg configures the consumer of OSRM dataset reload events.
type InvalidationCfg struct {
	Enabled    bool
	Topic      string
	Brokers    string
	GroupID    string
	DedupeSize int
}

type AccessCfg struct {
	MaxGridPoints int
	Resolution    int
	Radius        float64
	Points        int
	Classes       int
	Workers       int
}

type Config struct {
	Addr       string
	LogLevel   string
	LogConsole bool
	LogSampleN int

	OSRMHost         string
	OSRMVersion      string
	OSRMProfile      string
	OSRMTimeout      time.Duration
	OSRMMaxTableSize int

	Access AccessCfg

	// Empty RedisAddr disables the shared table cache.
	RedisAddr      string
	CacheTTL       time.Duration
	CacheTTLOvr    map[string]time.Duration
	CacheOpTimeout time.Duration

	SessionCacheSize int
	SessionTTL       time.Duration

	Invalidation InvalidationCfg

	MetricsEnabled bool
	MetricsAddr    string
	MetricsPath    string
}

func FromEnv() Config {
	workers := getint("MATRIX_WORKERS", 1)
	if workers < 1 {
		workers = 1
	}
	classes := getint("ACCESS_CLASSES", 8)
	if classes < 1 {
		classes = 8
	}

	return Config{
		Addr:       getenv("ADDR", ":8090"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogConsole: getbool("LOG_CONSOLE", false),
		LogSampleN: getint("LOG_SAMPLE_N", 0),

		OSRMHost:         getenv("OSRM_HOST", "http://localhost:5000"),
		OSRMVersion:      getenv("OSRM_VERSION", "v1"),
		OSRMProfile:      getenv("OSRM_PROFILE", "driving"),
		OSRMTimeout:      getduration("OSRM_TIMEOUT", 30*time.Second),
		OSRMMaxTableSize: getint("OSRM_MAX_TABLE_SIZE", 10000),

		Access: AccessCfg{
			MaxGridPoints: getint("ACCESS_MAX_GRID_POINTS", 3500),
			Resolution:    getint("ACCESS_RESOLUTION", 200),
			Radius:        getfloat("ACCESS_RADIUS", 0.4),
			Points:        getint("ACCESS_POINTS", 100),
			Classes:       classes,
			Workers:       workers,
		},

		RedisAddr:      strings.TrimSpace(getenv("REDIS_ADDR", "")),
		CacheTTL:       getduration("CACHE_TTL", 24*time.Hour),
		CacheTTLOvr:    parseDurationMap(getenv("CACHE_TTL_OVERRIDES", "")),
		CacheOpTimeout: getduration("CACHE_OP_TIMEOUT", 150*time.Millisecond),

		SessionCacheSize: getint("SESSION_CACHE_SIZE", 256),
		SessionTTL:       getduration("SESSION_TTL", 15*time.Minute),

		Invalidation: InvalidationCfg{
			Enabled:    getbool("INVALIDATION_ENABLED", false),
			Topic:      getenv("KAFKA_TOPIC", "osrm-dataset-events"),
			Brokers:    getenv("KAFKA_BROKERS", "localhost:9092"),
			GroupID:    getenv("KAFKA_GROUP_ID", "osrm-access"),
			DedupeSize: getint("INVALIDATION_DEDUPE_SIZE", 1024),
		},

		MetricsEnabled: getbool("METRICS_ENABLED", false),
		MetricsAddr:    getenv("METRICS_ADDR", ":9090"),
		MetricsPath:    getenv("METRICS_PATH", "/metrics"),
	}
}

// TTLFor returns the cache TTL for profile, honouring CACHE_TTL_OVERRIDES.
func (c Config) TTLFor(profile string) time.Duration {
	if d, ok := c.CacheTTLOvr[profile]; ok && d > 0 {
		return d
	}
	return c.CacheTTL
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

// parse "driving=24h,foot=1h" into map
func parseDurationMap(s string) map[string]time.Duration {
	out := map[string]time.Duration{}
	s = strings.TrimSpace(s)
	if s == "" {
		return out
	}
	parts := strings.SplitSeq(s, ",")
	for p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		k := strings.TrimSpace(kv[0])
		v := strings.TrimSpace(kv[1])
		if k == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil {
			out[k] = d
		}
	}
	return out
}
