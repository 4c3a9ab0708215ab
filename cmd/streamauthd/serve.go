package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MrEthical07/streamauth"
	"github.com/MrEthical07/streamauth/httpapi"
	"github.com/MrEthical07/streamauth/internal/envconfig"
	promexport "github.com/MrEthical07/streamauth/metrics/export/prometheus"
	"github.com/MrEthical07/streamauth/middleware"
	"github.com/MrEthical07/streamauth/userstore"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the authentication HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			env, err := envconfig.Load()
			if err != nil {
				return err
			}
			return serve(ctx, env, newLogger(cmd.ErrOrStderr(), env.LogLevel))
		},
	}
}

// userSource is the store plus its optional background work and cleanup.
type userSource struct {
	store userstore.Store
	watch func(context.Context) error
	close func() error
}

// openUserStore picks USERS_FILE, then DATABASE_URL, then an empty memory
// store. The owner account works with any of them.
func openUserStore(ctx context.Context, env *envconfig.Env, log logr.Logger) (*userSource, error) {
	switch {
	case env.UsersFile != "":
		f, err := userstore.OpenFile(env.UsersFile, userstore.FileOptions{Logger: log})
		if err != nil {
			return nil, fmt.Errorf("open users file: %w", err)
		}
		log.Info("user store ready", "kind", "file", "path", env.UsersFile, "users", f.Len())
		return &userSource{store: f, watch: f.Watch, close: func() error { return nil }}, nil
	case env.DatabaseURL != "":
		s, err := userstore.OpenSQL(env.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open user database: %w", err)
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("migrate user database: %w", err)
		}
		log.Info("user store ready", "kind", "sql")
		return &userSource{store: s, close: s.Close}, nil
	default:
		log.Info("user store ready", "kind", "memory")
		return &userSource{store: userstore.NewMemory(), close: func() error { return nil }}, nil
	}
}

func serve(ctx context.Context, env *envconfig.Env, log logr.Logger) error {
	users, err := openUserStore(ctx, env, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := users.close(); err != nil {
			log.Error(err, "close user store")
		}
	}()

	m, err := streamauth.New().
		WithConfig(env.ToConfig()).
		WithUserStore(users.store).
		WithLogger(log.WithName("auth")).
		WithAuditSink(streamauth.NewLogrSink(log.WithName("audit"))).
		Build(ctx)
	if err != nil {
		return fmt.Errorf("build auth manager: %w", err)
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Error(err, "close auth manager")
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	router := httpapi.NewRouter(gctx, m, httpapi.Options{
		Logger:        log.WithName("http"),
		TrustProxy:    env.TrustProxy,
		RatePerSecond: env.RateLimit,
		Burst:         env.RateBurst,
	})
	router.With(middleware.User(m)).Get("/me", func(w http.ResponseWriter, r *http.Request) {
		user, _ := streamauth.AuthUserFromContext(r.Context())
		middleware.WriteJSON(w, http.StatusOK, user)
	})

	servers := []*http.Server{newServer(env.HTTPAddr, router)}
	if env.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promexport.Handler(m))
		servers = append(servers, newServer(env.MetricsAddr, mux))
	}

	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			log.Info("listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	if users.watch != nil {
		g.Go(func() error { return users.watch(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", "timeout", shutdownTimeout.String())
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			errs = append(errs, srv.Shutdown(sctx))
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("stopped")
	return nil
}

func newServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
