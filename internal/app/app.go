// Package app wires all SpeechLink subsystems into a running engine.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves the HTTP API until the context is cancelled, and
// Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithStore,
// WithBackendClient, …). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Naqued/speechlink/internal/audio"
	"github.com/Naqued/speechlink/internal/backendapi"
	"github.com/Naqued/speechlink/internal/catalog"
	"github.com/Naqued/speechlink/internal/config"
	"github.com/Naqued/speechlink/internal/health"
	"github.com/Naqued/speechlink/internal/httpapi"
	"github.com/Naqued/speechlink/internal/kvstore"
	"github.com/Naqued/speechlink/internal/observe"
	"github.com/Naqued/speechlink/internal/orchestrator"
	"github.com/Naqued/speechlink/internal/prefs"
	"github.com/Naqued/speechlink/internal/routing"
	pkgaudio "github.com/Naqued/speechlink/pkg/audio"
	"github.com/Naqued/speechlink/pkg/provider/localtts"
	"github.com/Naqued/speechlink/pkg/provider/microute"
	"github.com/Naqued/speechlink/pkg/provider/synth"
)

// shutdownGrace bounds the HTTP server drain during Run teardown.
const shutdownGrace = 10 * time.Second

// Providers holds one value per pluggable slot. Nil means the component is
// not available on this host. Populated by main.go via the config registry.
type Providers struct {
	Remote  synth.Provider
	Local   localtts.Engine
	Routing microute.Capability
	Sink    pkgaudio.Sink
}

// App owns all subsystem lifetimes and serves the engine API.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems — initialised in New, torn down in Shutdown.
	store      kvstore.Store
	backend    *backendapi.Client
	audioMgr   *audio.Manager
	router     *routing.Router
	catalog    *catalog.Session
	reconciler *prefs.Reconciler
	orch       *orchestrator.Orchestrator
	metrics    *observe.Metrics
	httpServer *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a key-value store instead of creating one from config.
func WithStore(s kvstore.Store) Option {
	return func(a *App) { a.store = s }
}

// WithBackendClient injects a backend client instead of creating one from
// config.
func WithBackendClient(c *backendapi.Client) Option {
	return func(a *App) { a.backend = c }
}

// WithMetrics injects a metrics instance. Defaults to the package-level one.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option functions
// to inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Store ─────────────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// ── 2. Backend client ────────────────────────────────────────────────
	if err := a.initBackend(); err != nil {
		return nil, fmt.Errorf("app: init backend: %w", err)
	}

	// ── 3. Audio + routing ───────────────────────────────────────────────
	if providers.Sink == nil {
		return nil, errors.New("app: an audio sink is required")
	}
	a.audioMgr = audio.NewManager(providers.Sink)

	if providers.Routing != nil {
		a.router = routing.New(ctx, providers.Routing, a.store)
	}

	// ── 4. Catalog + reconciler ──────────────────────────────────────────
	if a.backend != nil {
		a.catalog = catalog.NewSession(a.backend)
		a.reconciler = prefs.New(a.backend, a.store, a.catalog)
	}

	// ── 5. Orchestrator ──────────────────────────────────────────────────
	if providers.Remote == nil {
		return nil, errors.New("app: a remote synthesis provider is required")
	}
	orchOpts := []orchestrator.Option{
		orchestrator.WithFallbackDeadline(cfg.Synthesis.FallbackDeadline.Std()),
		orchestrator.WithMetrics(a.metrics),
	}
	if a.reconciler != nil {
		orchOpts = append(orchOpts, orchestrator.WithPreferenceSource(a.reconciler.Preference))
	}
	a.orch = orchestrator.New(providers.Remote, providers.Local, a.audioMgr, a.router, orchOpts...)

	// ── 6. HTTP server ───────────────────────────────────────────────────
	a.httpServer = &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: a.buildHandler(),
	}

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStore sets up the configured persistence layer or uses an injected one.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil // injected
	}

	switch a.cfg.Store.Backend {
	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, a.cfg.Store.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		store := kvstore.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return err
		}
		a.store = store
		a.closers = append(a.closers, func() error {
			pool.Close()
			return nil
		})

	case config.StoreRedis:
		rc := a.cfg.Store.Redis
		store, err := kvstore.NewRedisStore(ctx, rc.Addr, rc.Password, rc.DB, rc.TTL.Std())
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		a.store = store
		a.closers = append(a.closers, store.Close)

	default:
		a.store = kvstore.NewMemStore()
	}

	slog.Info("store initialised", "backend", a.cfg.Store.Backend)
	return nil
}

// initBackend creates the backend API client with a token source derived from
// the config: a static token when given, otherwise a lazy login that caches
// the session token.
func (a *App) initBackend() error {
	if a.backend != nil || a.cfg.Backend.BaseURL == "" {
		return nil
	}

	var opts []backendapi.Option
	if ts := a.tokenSource(); ts != nil {
		opts = append(opts, backendapi.WithTokenSource(ts))
	}

	client, err := backendapi.New(a.cfg.Backend.BaseURL, opts...)
	if err != nil {
		return err
	}
	a.backend = client
	return nil
}

// tokenSource builds the bearer-token source for backend requests. Returns
// nil when no credentials are configured.
func (a *App) tokenSource() backendapi.TokenSource {
	if tok := a.cfg.Backend.Token; tok != "" {
		return func(context.Context) (string, error) { return tok, nil }
	}
	if a.cfg.Backend.Username == "" {
		return nil
	}

	username, password := a.cfg.Backend.Username, a.cfg.Backend.Password
	var (
		mu     sync.Mutex
		cached string
	)
	return func(ctx context.Context) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if cached != "" {
			return cached, nil
		}
		// a.backend is set before any request can trigger this source.
		tok, err := a.backend.Login(ctx, username, password)
		if err != nil {
			return "", fmt.Errorf("login: %w", err)
		}
		cached = tok
		return tok, nil
	}
}

// buildHandler assembles the full HTTP surface: API routes, health probes,
// and the Prometheus scrape endpoint, all behind the observability middleware.
func (a *App) buildHandler() http.Handler {
	mux := http.NewServeMux()

	if a.reconciler != nil && a.catalog != nil {
		httpapi.New(a.orch, a.reconciler, a.catalog, a.routerOrNoop()).Register(mux)
	}

	checkers := []health.Checker{health.KVStoreChecker(a.store)}
	if a.backend != nil {
		checkers = append(checkers, health.BackendChecker(func(ctx context.Context) error {
			_, err := a.backend.GetFavorites(ctx)
			return err
		}))
	}
	health.New(checkers...).Register(mux)

	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(a.metrics)(mux)
}

// routerOrNoop returns the real router, or a disabled one backed by an
// unavailable capability when no routing capability exists on this host.
func (a *App) routerOrNoop() *routing.Router {
	if a.router != nil {
		return a.router
	}
	return routing.New(context.Background(), nil, a.store)
}

// Accessors used by main for hot reload and startup logging.

// Orchestrator returns the speech pipeline core.
func (a *App) Orchestrator() *orchestrator.Orchestrator { return a.orch }

// Router returns the routing toggle, or nil when routing is unavailable.
func (a *App) Router() *routing.Router { return a.router }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves the HTTP API and blocks until ctx is cancelled or the server
// fails. On cancellation the server is drained within [shutdownGrace].
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.httpServer.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.httpServer.ListenAndServe()
		}
		errCh <- err
	}()

	slog.Info("http server listening", "addr", a.cfg.Server.ListenAddr, "tls", a.cfg.Server.TLS != nil)

	select {
	case <-ctx.Done():
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := a.httpServer.Shutdown(drainCtx); err != nil {
			slog.Warn("http server drain failed", "err", err)
		}
		return ctx.Err()

	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: http server: %w", err)
	}
}

// ─── Hot reload ──────────────────────────────────────────────────────────────

// ApplyReload applies hot-reloadable config changes to running subsystems.
// Log level changes are handled by main, which owns the logger.
func (a *App) ApplyReload(ctx context.Context, d config.ConfigDiff) {
	if d.FallbackDeadlineChanged {
		a.orch.SetFallbackDeadline(d.NewFallbackDeadline)
		slog.Info("fallback deadline updated", "deadline", d.NewFallbackDeadline)
	}
	if d.RoutingEnabledChanged && a.router != nil {
		if err := a.router.SetEnabled(ctx, d.NewRoutingEnabled); err != nil {
			slog.Warn("routing toggle reload failed", "enabled", d.NewRoutingEnabled, "err", err)
		}
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops playback and tears down all subsystems in reverse-init
// order. It respects the context deadline: if ctx expires before all closers
// finish, remaining closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		// Silence the pipeline first.
		if err := a.orch.Stop(); err != nil {
			slog.Warn("pipeline stop error", "err", err)
		}
		if err := a.audioMgr.StopAll(); err != nil {
			slog.Warn("audio stop error", "err", err)
		}

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
