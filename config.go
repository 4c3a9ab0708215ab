package streamauth

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/streamauth/jwt"
	"github.com/MrEthical07/streamauth/password"
	"github.com/MrEthical07/streamauth/storage"
)

// Config is passed to Builder.WithConfig and treated as immutable once the
// Manager is built.
type Config struct {
	Token          TokenConfig
	Storage        StorageConfig
	Cache          CacheConfig
	Security       SecurityConfig
	Session        SessionConfig
	Owner          OwnerConfig
	Password       password.Config
	Audit          AuditConfig
	Metrics        MetricsConfig
	Cookie         CookieConfig
	ProductionMode bool
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls HS256 signing. KeyID is reserved for rotation.
type TokenConfig struct {
	Secret     []byte
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Leeway     time.Duration
	KeyID      string
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageConfig selects the backend holding sessions and the blacklist.
// It is ignored when Builder.WithStorageBackend supplies one.
type StorageConfig struct {
	Type          storage.Type
	RedisURL      string
	UpstashURL    string
	UpstashToken  string
	Prefix        string
	OpTimeout     time.Duration
	SweepInterval time.Duration
}

/*
====================================
CACHE CONFIG
====================================
*/

type CacheConfig struct {
	TTL           time.Duration
	Capacity      int
	SweepInterval time.Duration
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig configures the login guard.
type SecurityConfig struct {
	MaxLoginAttempts int
	Window           time.Duration
	// SweepInterval applies to the in-memory attempt state only.
	SweepInterval time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls server side sessions. When Enforce is set an
// access token is only accepted while its session record exists.
type SessionConfig struct {
	Enforce bool
}

// OwnerConfig is the bootstrap account. Password may be an argon2id PHC
// hash or plaintext.
type OwnerConfig struct {
	Username string
	Password string
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// CookieConfig names the access token cookie read by Authenticate and set
// by the HTTP handlers.
type CookieConfig struct {
	Name   string
	Secure bool
}

const (
	defaultAccessTTL  = 2 * time.Hour
	defaultRefreshTTL = 7 * 24 * time.Hour
	defaultCookieName = "accessToken"
)

// DefaultConfig returns development defaults. Token.Secret is empty and
// must be set.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			Issuer:     "streamauth",
			AccessTTL:  defaultAccessTTL,
			RefreshTTL: defaultRefreshTTL,
			Leeway:     jwt.DefaultLeeway,
		},
		Storage: StorageConfig{
			Type:          storage.TypeMemory,
			Prefix:        "streamauth:",
			OpTimeout:     2 * time.Second,
			SweepInterval: time.Minute,
		},
		Cache: CacheConfig{
			TTL:           5 * time.Minute,
			Capacity:      1000,
			SweepInterval: time.Minute,
		},
		Security: SecurityConfig{
			MaxLoginAttempts: 5,
			Window:           15 * time.Minute,
			SweepInterval:    time.Minute,
		},
		Password: password.DefaultConfig(),
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Cookie: CookieConfig{
			Name: defaultCookieName,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Secret = append([]byte(nil), cfg.Token.Secret...)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if len(c.Token.Secret) == 0 {
		return errors.New("Token Secret is required")
	}
	if c.ProductionMode && len(c.Token.Secret) < jwt.MinProductionSecretBytes {
		return errors.New("ProductionMode requires token secret length >= 16 bytes")
	}
	if c.Token.AccessTTL <= 0 {
		return errors.New("Token AccessTTL must be > 0")
	}
	if c.Token.RefreshTTL <= 0 {
		return errors.New("Token RefreshTTL must be > 0")
	}
	if c.Token.RefreshTTL < c.Token.AccessTTL {
		return errors.New("Token RefreshTTL must be >= AccessTTL")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("Token Leeway must be between 0 and 2m")
	}

	switch c.Storage.Type {
	case storage.TypeMemory, "":
	case storage.TypeRedis:
		if c.Storage.RedisURL == "" {
			return errors.New("Storage RedisURL is required for redis")
		}
	case storage.TypeUpstash:
		if c.Storage.UpstashURL == "" || c.Storage.UpstashToken == "" {
			return errors.New("Storage UpstashURL and UpstashToken are required for upstash")
		}
	default:
		return errors.New("Storage Type must be memory, redis or upstash")
	}
	if c.Storage.OpTimeout < 0 {
		return errors.New("Storage OpTimeout must be >= 0")
	}

	if c.Cache.TTL <= 0 {
		return errors.New("Cache TTL must be > 0")
	}
	if c.Cache.Capacity <= 0 {
		return errors.New("Cache Capacity must be > 0")
	}

	if c.Security.MaxLoginAttempts <= 0 {
		return errors.New("Security MaxLoginAttempts must be > 0")
	}
	if c.Security.Window <= 0 {
		return errors.New("Security Window must be > 0")
	}

	if (c.Owner.Username == "") != (c.Owner.Password == "") {
		return errors.New("Owner Username and Password must be set together")
	}
	if c.Owner.Username != "" && strings.TrimSpace(c.Owner.Username) != c.Owner.Username {
		return errors.New("Owner Username must not have surrounding whitespace")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	if c.Cookie.Name == "" {
		return errors.New("Cookie Name is required")
	}
	if c.ProductionMode && !c.Cookie.Secure {
		return errors.New("ProductionMode requires secure cookies")
	}
	return nil
}
