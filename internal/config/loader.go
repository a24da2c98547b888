package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFallbackDeadline is applied when synthesis.fallback_deadline is not
// set. It matches the orchestrator's built-in default.
const DefaultFallbackDeadline = Duration(4 * time.Second)

// ValidProviderNames lists known implementation names per component kind.
// Used by [Validate] to warn about unrecognised names.
var ValidProviderNames = map[string][]string{
	"remote":  {"backend", "elevenlabs"},
	"local":   {"espeak"},
	"routing": {"pulse"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills in defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills unset fields with their documented defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Synthesis.FallbackDeadline == 0 {
		cfg.Synthesis.FallbackDeadline = DefaultFallbackDeadline
	}
	if cfg.Synthesis.Remote.Name == "" {
		cfg.Synthesis.Remote.Name = "backend"
	}
	if cfg.Synthesis.Local.Name == "" {
		cfg.Synthesis.Local.Name = "espeak"
	}
	if cfg.Routing.Capability.Name == "" {
		cfg.Routing.Capability.Name = "pulse"
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = StoreMemory
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when tls is set"))
		}
		if cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when tls is set"))
		}
	}

	// Component name validation — warn for unknown names.
	validateProviderName("remote", cfg.Synthesis.Remote.Name)
	validateProviderName("local", cfg.Synthesis.Local.Name)
	validateProviderName("routing", cfg.Routing.Capability.Name)

	// Synthesis
	if cfg.Synthesis.FallbackDeadline < 0 {
		errs = append(errs, fmt.Errorf("synthesis.fallback_deadline %s must not be negative", cfg.Synthesis.FallbackDeadline.Std()))
	}
	if cfg.Synthesis.FallbackDeadline.Std() > 30*time.Second {
		slog.Warn("synthesis.fallback_deadline is very long; the UI will appear stuck while the remote provider is slow",
			"deadline", cfg.Synthesis.FallbackDeadline.Std())
	}
	if cfg.Synthesis.Remote.Name == "backend" && cfg.Backend.BaseURL == "" {
		errs = append(errs, errors.New("backend.base_url is required when synthesis.remote is \"backend\""))
	}
	if cfg.Synthesis.Remote.Name == "elevenlabs" && cfg.Synthesis.Remote.APIKey == "" {
		errs = append(errs, errors.New("synthesis.remote.api_key is required when synthesis.remote is \"elevenlabs\""))
	}

	// Backend credentials
	if cfg.Backend.BaseURL != "" && cfg.Backend.Token == "" {
		if cfg.Backend.Username == "" {
			slog.Warn("backend.base_url is set but no token or username is configured; backend requests will be unauthenticated")
		} else if cfg.Backend.Password == "" {
			errs = append(errs, errors.New("backend.password is required when backend.username is set"))
		}
	}

	// Store
	if cfg.Store.Backend != "" && !cfg.Store.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("store.backend %q is invalid; valid values: memory, postgres, redis", cfg.Store.Backend))
	}
	if cfg.Store.Backend == StorePostgres && cfg.Store.PostgresDSN == "" {
		errs = append(errs, errors.New("store.postgres_dsn is required when store.backend is postgres"))
	}
	if cfg.Store.Backend == StoreRedis && cfg.Store.Redis.Addr == "" {
		errs = append(errs, errors.New("store.redis.addr is required when store.backend is redis"))
	}
	if cfg.Store.Redis.DB < 0 {
		errs = append(errs, fmt.Errorf("store.redis.db %d must not be negative", cfg.Store.Redis.DB))
	}
	if cfg.Store.Backend == StoreMemory && cfg.Routing.Enabled {
		slog.Warn("store.backend is memory; the routing toggle will reset to the configured default on restart")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown component name — may be a typo or third-party implementation",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
