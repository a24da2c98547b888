// Command speechlink is the main entry point for the SpeechLink speech engine.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Naqued/speechlink/internal/app"
	"github.com/Naqued/speechlink/internal/backendapi"
	"github.com/Naqued/speechlink/internal/config"
	"github.com/Naqued/speechlink/internal/observe"
	"github.com/Naqued/speechlink/pkg/audio/speaker"
	"github.com/Naqued/speechlink/pkg/provider/localtts"
	"github.com/Naqued/speechlink/pkg/provider/localtts/espeak"
	"github.com/Naqued/speechlink/pkg/provider/microute"
	"github.com/Naqued/speechlink/pkg/provider/microute/pulse"
	"github.com/Naqued/speechlink/pkg/provider/synth"
	backendsynth "github.com/Naqued/speechlink/pkg/provider/synth/backend"
	"github.com/Naqued/speechlink/pkg/provider/synth/elevenlabs"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	watch := flag.Bool("watch", false, "reload hot-reloadable settings when the config file changes")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "speechlink: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "speechlink: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	levelVar := new(slog.LevelVar)
	levelVar.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar}))
	slog.SetDefault(logger)

	slog.Info("speechlink starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "speechlink",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, cfg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg, providers)

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config watcher (optional) ─────────────────────────────────────────────
	if *watch {
		watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
			d := config.Diff(old, new)
			if d.Empty() {
				return
			}
			if d.LogLevelChanged {
				levelVar.Set(slogLevel(d.NewLogLevel))
				slog.Info("log level updated", "level", d.NewLogLevel)
			}
			application.ApplyReload(ctx, d)
		})
		if err != nil {
			slog.Error("failed to start config watcher", "err", err)
			return 1
		}
		defer watcher.Stop()
		slog.Info("config watcher running", "path", *configPath)
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in component factories into reg.
// Each factory receives a config.ProviderEntry and constructs the component
// from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry, cfg *config.Config) {
	// ── Remote synthesis ──────────────────────────────────────────────────────

	tokenFn := backendTokenSource(cfg)

	reg.RegisterRemote("backend", func(entry config.ProviderEntry) (synth.Provider, error) {
		var opts []backendsynth.Option
		if tokenFn != nil {
			opts = append(opts, backendsynth.WithTokenSource(tokenFn))
		}
		if path := optString(entry.Options, "path"); path != "" {
			opts = append(opts, backendsynth.WithPath(path))
		}
		return backendsynth.New(cfg.Backend.BaseURL, opts...)
	})

	reg.RegisterRemote("elevenlabs", func(entry config.ProviderEntry) (synth.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if format := optString(entry.Options, "output_format"); format != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(format))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	// ── Local fallback ────────────────────────────────────────────────────────

	reg.RegisterLocal("espeak", func(config.ProviderEntry) (localtts.Engine, error) {
		return espeak.New()
	})

	// ── Microphone routing ────────────────────────────────────────────────────

	reg.RegisterRouting("pulse", func(config.ProviderEntry) (microute.Capability, error) {
		return pulse.New()
	})
}

// backendTokenSource builds the bearer-token source attached to backend
// synthesis requests: a static token when configured, otherwise a lazy login
// that caches the session token. Returns nil when no credentials exist.
func backendTokenSource(cfg *config.Config) func(ctx context.Context) (string, error) {
	if tok := cfg.Backend.Token; tok != "" {
		return func(context.Context) (string, error) { return tok, nil }
	}
	if cfg.Backend.Username == "" || cfg.Backend.BaseURL == "" {
		return nil
	}

	loginClient, err := backendapi.New(cfg.Backend.BaseURL)
	if err != nil {
		return nil
	}

	username, password := cfg.Backend.Username, cfg.Backend.Password
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
		tok, err := loginClient.Login(ctx, username, password)
		if err != nil {
			return "", fmt.Errorf("login: %w", err)
		}
		cached = tok
		return tok, nil
	}
}

// buildProviders instantiates all components named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to consume.
// Local fallback and routing are optional: a missing binary degrades the
// feature instead of failing startup.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	remote, err := reg.CreateRemote(cfg.Synthesis.Remote)
	if err != nil {
		return nil, fmt.Errorf("create remote provider %q: %w", cfg.Synthesis.Remote.Name, err)
	}
	ps.Remote = remote
	slog.Info("provider created", "kind", "remote", "name", cfg.Synthesis.Remote.Name)

	if local, err := reg.CreateLocal(cfg.Synthesis.Local); err != nil {
		slog.Warn("local fallback engine unavailable", "name", cfg.Synthesis.Local.Name, "err", err)
	} else {
		ps.Local = local
		slog.Info("provider created", "kind", "local", "name", cfg.Synthesis.Local.Name)
	}

	if capability, err := reg.CreateRouting(cfg.Routing.Capability); err != nil {
		slog.Warn("microphone routing unavailable", "name", cfg.Routing.Capability.Name, "err", err)
	} else {
		ps.Routing = capability
		slog.Info("provider created", "kind", "routing", "name", cfg.Routing.Capability.Name)
	}

	sink, err := speaker.New()
	if err != nil {
		return nil, fmt.Errorf("create audio sink: %w", err)
	}
	ps.Sink = sink

	return ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, ps *app.Providers) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║       SpeechLink — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printComponent("Remote", cfg.Synthesis.Remote.Name, cfg.Synthesis.Remote.Model)
	if ps.Local != nil {
		printComponent("Local", cfg.Synthesis.Local.Name, "")
	} else {
		printComponent("Local", "", "")
	}
	if ps.Routing != nil {
		printComponent("Routing", cfg.Routing.Capability.Name, "")
	} else {
		printComponent("Routing", "", "")
	}
	printComponent("Store", string(cfg.Store.Backend), "")
	fmt.Printf("║  Deadline        : %-19s ║\n", cfg.Synthesis.FallbackDeadline.Std())
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printComponent(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not available)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a component Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
