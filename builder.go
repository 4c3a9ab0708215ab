package streamauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/streamauth/blacklist"
	"github.com/MrEthical07/streamauth/cache"
	internalaudit "github.com/MrEthical07/streamauth/internal/audit"
	"github.com/MrEthical07/streamauth/jwt"
	"github.com/MrEthical07/streamauth/password"
	"github.com/MrEthical07/streamauth/permission"
	"github.com/MrEthical07/streamauth/security"
	"github.com/MrEthical07/streamauth/session"
	"github.com/MrEthical07/streamauth/storage"
	"github.com/MrEthical07/streamauth/token"
)

// Builder assembles a Manager. A Builder can be built once.
type Builder struct {
	config Config

	users      UserStore
	logger     logr.Logger
	auditSink  AuditSink
	backend    storage.Backend
	redis      redis.UniversalClient
	roles      map[Role][]Permission
	predicates map[string]permission.Predicate
	now        func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
		logger: logr.Discard(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithUserStore sets the authoritative account source. Required.
func (b *Builder) WithUserStore(users UserStore) *Builder {
	b.users = users
	return b
}

func (b *Builder) WithLogger(log logr.Logger) *Builder {
	b.logger = log
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithStorageBackend supplies the backend for sessions and the blacklist
// instead of opening one from Config.Storage. The caller keeps ownership.
func (b *Builder) WithStorageBackend(backend storage.Backend) *Builder {
	b.backend = backend
	return b
}

// WithRedis supplies the client used for shared login attempt state. When
// unset, a Redis storage backend's client is used; otherwise the state is
// kept in process memory.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithRoles replaces the default role grants.
func (b *Builder) WithRoles(roles map[Role][]Permission) *Builder {
	b.roles = roles
	return b
}

// WithPredicate registers a named condition usable from permission grants.
func (b *Builder) WithPredicate(name string, fn permission.Predicate) *Builder {
	if b.predicates == nil {
		b.predicates = make(map[string]permission.Predicate)
	}
	b.predicates[name] = fn
	return b
}

// WithClock overrides time.Now for every component. Tests only.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires every component. Remote
// storage named in Config.Storage is dialled here.
func (b *Builder) Build(ctx context.Context) (*Manager, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.Owner.Username = security.NormalizeUsername(cfg.Owner.Username)

	now := b.now
	if now == nil {
		now = time.Now
	}

	signer, err := jwt.NewManager(jwt.Config{
		Secret:         cfg.Token.Secret,
		Issuer:         cfg.Token.Issuer,
		Audience:       cfg.Token.Audience,
		AccessTTL:      cfg.Token.AccessTTL,
		RefreshTTL:     cfg.Token.RefreshTTL,
		Leeway:         cfg.Token.Leeway,
		KeyID:          cfg.Token.KeyID,
		ProductionMode: cfg.ProductionMode,
		Now:            now,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewArgon2(cfg.Password)
	if err != nil {
		return nil, err
	}

	perms, err := permission.NewService(permission.Config{Roles: b.roles, Now: now})
	if err != nil {
		return nil, err
	}
	for name, fn := range b.predicates {
		if err := perms.RegisterPredicate(name, fn); err != nil {
			return nil, err
		}
	}
	perms.Predicates().Freeze()

	// -------- STORAGE --------
	backend, ownsBackend := b.backend, false
	if backend == nil {
		backend, err = storage.Open(ctx, storage.Config{
			Type:          cfg.Storage.Type,
			RedisURL:      cfg.Storage.RedisURL,
			UpstashURL:    cfg.Storage.UpstashURL,
			UpstashToken:  cfg.Storage.UpstashToken,
			Prefix:        cfg.Storage.Prefix,
			OpTimeout:     cfg.Storage.OpTimeout,
			SweepInterval: cfg.Storage.SweepInterval,
		})
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		ownsBackend = true
	}

	// -------- LOGIN GUARD --------
	rc := b.redis
	if rc == nil {
		if r, ok := backend.(*storage.Redis); ok {
			rc = r.Client()
		}
	}
	var state security.State
	if rc != nil {
		state = security.NewRedisState(rc, cfg.Storage.Prefix, cfg.Storage.OpTimeout)
	} else {
		state = security.NewMemoryState(cfg.Security.SweepInterval, now)
	}
	guard, err := security.NewGuard(state, security.Config{
		Policy: security.Policy{MaxAttempts: cfg.Security.MaxLoginAttempts, Window: cfg.Security.Window},
		Now:    now,
	})
	if err != nil {
		_ = state.Close()
		if ownsBackend {
			_ = backend.Close()
		}
		return nil, err
	}

	bl := blacklist.New(backend, cfg.Token.RefreshTTL)
	metrics := NewMetrics(cfg.Metrics)

	m := &Manager{
		config:      cfg,
		logger:      b.logger.WithName("streamauth"),
		now:         now,
		users:       b.users,
		tokens:      token.NewService(signer, bl, now),
		sessions:    session.NewStore(backend),
		backend:     backend,
		ownsBackend: ownsBackend,
		guard:       guard,
		perms:       perms,
		hasher:      hasher,
		metrics:     metrics,
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink, now),
	}
	m.cache = cache.New(cache.Config{
		TTL:           cfg.Cache.TTL,
		Capacity:      cfg.Cache.Capacity,
		SweepInterval: cfg.Cache.SweepInterval,
		Now:           now,
		OnSweep: func(n int) {
			if n > 0 {
				m.logger.V(1).Info("cache sweep", "removed", n)
			}
		},
	})

	m.logger.V(1).Info("auth manager ready",
		"storage", backend.Type(),
		"sharedLoginState", rc != nil,
		"sessionEnforce", cfg.Session.Enforce,
		"owner", cfg.Owner.Username != "",
	)

	b.built = true
	return m, nil
}
