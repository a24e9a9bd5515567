// Package config loads verigate settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"verigate/internal/verification/cache"
	vstrings "verigate/pkg/platform/strings"
)

// Cache backends.
const (
	CacheMemory   = "memory"
	CacheRedis    = "redis"
	CachePostgres = "postgres"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr string
	// PublicOrigin is the scheme://host the gateway is reachable at. Callback
	// URLs are built from it and relayed messages carry it.
	PublicOrigin    string
	ShutdownTimeout time.Duration
	AdminToken      string
	LogLevel        string
}

// Provider configures the verification provider client.
type Provider struct {
	BaseURL    string
	APIKey     string
	WorkflowID string
	Timeout    time.Duration
}

// RedisConfig configures the shared Redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Reconciler tunes verification attempts.
type Reconciler struct {
	CacheBackend      string
	CacheTTL          time.Duration
	MaxDuration       time.Duration
	StorePollInterval time.Duration
	CloseDelay        time.Duration
	DecisionTTL       time.Duration
}

// Callback configures signed callback URLs. An empty key disables signing.
type Callback struct {
	SigningKey string
	TokenTTL   time.Duration
}

// Audit configures the audit trail sink.
type Audit struct {
	KafkaBrokers []string
	Topic        string
	BufferSize   int
	// OperationsSampleRate applies to routine lifecycle events only.
	OperationsSampleRate float64
}

// RateLimit bounds the public relay endpoints per client IP.
type RateLimit struct {
	PerSecond float64
	Burst     int
}

type Config struct {
	Server      Server
	Provider    Provider
	Redis       RedisConfig
	DatabaseURL string
	Reconciler  Reconciler
	Callback    Callback
	Audit       Audit
	RateLimit   RateLimit
}

// Load reads a .env file when present and then the process environment.
// Malformed values fail fast.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv.
func FromEnv(getenv func(string) string) (Config, error) {
	p := parser{getenv: getenv}
	cfg := Config{
		Server: Server{
			Addr:            p.str("VERIGATE_ADDR", ":8080"),
			PublicOrigin:    strings.TrimRight(p.str("VERIGATE_PUBLIC_ORIGIN", "http://localhost:8080"), "/"),
			ShutdownTimeout: p.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
			AdminToken:      p.str("ADMIN_TOKEN", ""),
			LogLevel:        p.str("LOG_LEVEL", "info"),
		},
		Provider: Provider{
			BaseURL:    p.str("PROVIDER_BASE_URL", "https://verification.didit.me"),
			APIKey:     p.str("PROVIDER_API_KEY", ""),
			WorkflowID: p.str("PROVIDER_WORKFLOW_ID", ""),
			Timeout:    p.duration("PROVIDER_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			URL:          p.str("REDIS_URL", ""),
			PoolSize:     p.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: p.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  p.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		DatabaseURL: p.str("DATABASE_URL", ""),
		Reconciler: Reconciler{
			CacheBackend:      strings.ToLower(p.str("CACHE_BACKEND", CacheMemory)),
			CacheTTL:          p.duration("CACHE_TTL", cache.DefaultTTL),
			MaxDuration:       p.duration("ATTEMPT_MAX_DURATION", 30*time.Minute),
			StorePollInterval: p.duration("STORE_POLL_INTERVAL", time.Second),
			CloseDelay:        p.duration("CLOSE_DELAY", 800*time.Millisecond),
			DecisionTTL:       p.duration("DECISION_TTL", time.Hour),
		},
		Callback: Callback{
			SigningKey: p.str("CALLBACK_SIGNING_KEY", ""),
			TokenTTL:   p.duration("CALLBACK_TOKEN_TTL", 2*time.Hour),
		},
		Audit: Audit{
			KafkaBrokers:         vstrings.SplitList(p.str("KAFKA_BROKERS", ""), ","),
			Topic:                p.str("AUDIT_TOPIC", "verigate.audit"),
			BufferSize:           p.integer("AUDIT_BUFFER_SIZE", 1024),
			OperationsSampleRate: p.float("AUDIT_OPERATIONS_SAMPLE_RATE", 1),
		},
		RateLimit: RateLimit{
			PerSecond: p.float("MESSAGE_RATE_LIMIT", 5),
			Burst:     p.integer("MESSAGE_RATE_BURST", 20),
		},
	}
	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	switch c.Reconciler.CacheBackend {
	case CacheMemory:
	case CacheRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("CACHE_BACKEND=redis requires REDIS_URL"))
		}
	case CachePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("CACHE_BACKEND=postgres requires DATABASE_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("CACHE_BACKEND: unknown backend %q", c.Reconciler.CacheBackend))
	}
	if u, err := url.Parse(c.Server.PublicOrigin); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("VERIGATE_PUBLIC_ORIGIN: %q is not an absolute origin", c.Server.PublicOrigin))
	}
	if c.RateLimit.PerSecond <= 0 || c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("MESSAGE_RATE_LIMIT and MESSAGE_RATE_BURST must be positive"))
	}
	return errors.Join(errs...)
}

type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid duration %q", key, raw))
		return def
	}
	return d
}

func (p *parser) integer(key string, def int) int {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid integer %q", key, raw))
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid number %q", key, raw))
		return def
	}
	return f
}
