package httpapi

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/go-logr/logr"
)

// Options tunes the router. Zero values take the defaults below.
type Options struct {
	Logger        logr.Logger
	TrustProxy    bool
	RatePerSecond float64
	Burst         int
	MaxBodyBytes  int64
}

const (
	defaultRatePerSecond = 10
	defaultBurst         = 20
	defaultMaxBodyBytes  = 1 << 20
)

// NewRouter mounts the auth routes under /auth. ctx bounds the lifetime of
// the throttle sweeper.
func NewRouter(ctx context.Context, auth Auth, opts Options) chi.Router {
	if opts.Logger.GetSink() == nil {
		opts.Logger = logr.Discard()
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = defaultRatePerSecond
	}
	if opts.Burst <= 0 {
		opts.Burst = defaultBurst
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}

	throttle := NewThrottle(ctx, opts.RatePerSecond, opts.Burst, opts.TrustProxy)

	r := chi.NewRouter()
	r.Use(Logging(opts.Logger))
	r.Use(throttle.Middleware)
	r.Use(MaxBodyBytes(opts.MaxBodyBytes))
	r.Use(RequestContext(opts.TrustProxy))
	r.Mount("/auth", NewHandler(auth, opts.Logger).Routes())
	return r
}
