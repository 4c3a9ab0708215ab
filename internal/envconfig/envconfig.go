/*
Package envconfig maps process environment variables onto the auth manager
configuration and the daemon's own settings.

Usage:

	env, err := envconfig.Load()
	if err != nil {
		return err
	}
	cfg := env.ToConfig()
*/
package envconfig

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/MrEthical07/streamauth"
	"github.com/MrEthical07/streamauth/storage"
)

// Env is the flat environment schema.
type Env struct {
	// Token signing
	Secret     string        `env:"AUTH_SECRET,required,unset"`
	Issuer     string        `env:"AUTH_ISSUER" envDefault:"streamauth"`
	Audience   string        `env:"AUTH_AUDIENCE"`
	AccessTTL  time.Duration `env:"AUTH_ACCESS_TTL" envDefault:"2h"`
	RefreshTTL time.Duration `env:"AUTH_REFRESH_TTL" envDefault:"168h"`
	Production bool          `env:"AUTH_PRODUCTION" envDefault:"false"`

	// Bootstrap owner account
	OwnerUsername string `env:"OWNER_USERNAME"`
	OwnerPassword string `env:"OWNER_PASSWORD,unset"`

	// Storage backend for sessions, blacklist and login attempts
	StorageType  string `env:"STORAGE_TYPE" envDefault:"memory"`
	RedisURL     string `env:"REDIS_URL"`
	UpstashURL   string `env:"UPSTASH_REDIS_URL"`
	UpstashToken string `env:"UPSTASH_REDIS_TOKEN,unset"`
	KeyPrefix    string `env:"STORAGE_PREFIX" envDefault:"streamauth:"`

	SessionEnforce bool `env:"AUTH_SESSION_ENFORCE" envDefault:"false"`
	AuditEnabled   bool `env:"AUTH_AUDIT" envDefault:"true"`

	// Daemon
	HTTPAddr    string  `env:"HTTP_ADDR" envDefault:":8080"`
	MetricsAddr string  `env:"METRICS_ADDR"`
	TrustProxy  bool    `env:"TRUST_PROXY" envDefault:"false"`
	RateLimit   float64 `env:"HTTP_RATE_LIMIT" envDefault:"10"`
	RateBurst   int     `env:"HTTP_RATE_BURST" envDefault:"20"`
	LogLevel    string  `env:"LOG_LEVEL" envDefault:"info"`

	// User store: USERS_FILE wins over DATABASE_URL; neither means an empty in-memory store.
	UsersFile   string `env:"USERS_FILE"`
	DatabaseURL string `env:"DATABASE_URL,unset"`
}

// Load parses the process environment.
func Load() (*Env, error) {
	return parse(env.Options{})
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (*Env, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Env, error) {
	e := &Env{}
	if err := env.ParseWithOptions(e, opts); err != nil {
		return nil, fmt.Errorf("envconfig: %w", err)
	}
	e.StorageType = strings.ToLower(strings.TrimSpace(e.StorageType))
	switch e.StorageType {
	case string(storage.TypeMemory), string(storage.TypeRedis), string(storage.TypeUpstash):
	default:
		return nil, fmt.Errorf("envconfig: STORAGE_TYPE must be memory, redis or upstash, got %q", e.StorageType)
	}
	return e, nil
}

// ToConfig layers the environment over streamauth.DefaultConfig. The
// result still needs Validate, which Build runs.
func (e *Env) ToConfig() streamauth.Config {
	cfg := streamauth.DefaultConfig()

	cfg.Token.Secret = []byte(e.Secret)
	cfg.Token.Issuer = e.Issuer
	cfg.Token.Audience = e.Audience
	cfg.Token.AccessTTL = e.AccessTTL
	cfg.Token.RefreshTTL = e.RefreshTTL

	cfg.Owner.Username = e.OwnerUsername
	cfg.Owner.Password = e.OwnerPassword

	cfg.Storage.Type = storage.Type(e.StorageType)
	cfg.Storage.RedisURL = e.RedisURL
	cfg.Storage.UpstashURL = e.UpstashURL
	cfg.Storage.UpstashToken = e.UpstashToken
	cfg.Storage.Prefix = e.KeyPrefix

	cfg.Session.Enforce = e.SessionEnforce
	cfg.Audit.Enabled = e.AuditEnabled
	cfg.Metrics.Enabled = e.MetricsAddr != ""
	cfg.Metrics.EnableLatencyHistograms = cfg.Metrics.Enabled

	cfg.ProductionMode = e.Production
	cfg.Cookie.Secure = e.Production

	return cfg
}
