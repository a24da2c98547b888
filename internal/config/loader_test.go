package config_test

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Naqued/speechlink/internal/config"
)

func TestLoadFromReader_FullConfig(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":9090"
  log_level: debug
backend:
  base_url: "https://api.speechlink.dev"
  username: alice
  password: hunter2
synthesis:
  fallback_deadline: 2500ms
  remote:
    name: backend
  local:
    name: espeak
routing:
  enabled: true
  capability:
    name: pulse
store:
  backend: redis
  redis:
    addr: "localhost:6379"
    ttl: 24h
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("listen_addr: got %q", cfg.Server.ListenAddr)
	}
	if cfg.Synthesis.FallbackDeadline.Std() != 2500*time.Millisecond {
		t.Errorf("fallback_deadline: got %s", cfg.Synthesis.FallbackDeadline.Std())
	}
	if cfg.Store.Redis.TTL.Std() != 24*time.Hour {
		t.Errorf("redis ttl: got %s", cfg.Store.Redis.TTL.Std())
	}
	if !cfg.Routing.Enabled {
		t.Error("routing.enabled should be true")
	}
}

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()
	yaml := `
backend:
  base_url: "https://api.speechlink.dev"
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr default: got %q, want :8080", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level default: got %q, want info", cfg.Server.LogLevel)
	}
	if cfg.Synthesis.FallbackDeadline != config.DefaultFallbackDeadline {
		t.Errorf("fallback_deadline default: got %s, want %s",
			cfg.Synthesis.FallbackDeadline.Std(), config.DefaultFallbackDeadline.Std())
	}
	if cfg.Synthesis.Remote.Name != "backend" {
		t.Errorf("remote default: got %q, want backend", cfg.Synthesis.Remote.Name)
	}
	if cfg.Synthesis.Local.Name != "espeak" {
		t.Errorf("local default: got %q, want espeak", cfg.Synthesis.Local.Name)
	}
	if cfg.Store.Backend != config.StoreMemory {
		t.Errorf("store default: got %q, want memory", cfg.Store.Backend)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	yaml := `
backend:
  base_url: "https://api.speechlink.dev"
  totally_unknown: 42
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: bananas
backend:
  base_url: "https://api.speechlink.dev"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_BackendRemoteRequiresBaseURL(t *testing.T) {
	t.Parallel()
	yaml := `
synthesis:
  remote:
    name: backend
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing backend.base_url, got nil")
	}
	if !strings.Contains(err.Error(), "base_url") {
		t.Errorf("error should mention base_url, got: %v", err)
	}
}

func TestValidate_ElevenLabsRemoteRequiresAPIKey(t *testing.T) {
	t.Parallel()
	yaml := `
synthesis:
  remote:
    name: elevenlabs
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing api_key, got nil")
	}
	if !strings.Contains(err.Error(), "api_key") {
		t.Errorf("error should mention api_key, got: %v", err)
	}
}

func TestValidate_StoreBackends(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "postgres without dsn",
			yaml: `
backend:
  base_url: "https://api.speechlink.dev"
store:
  backend: postgres
`,
			wantErr: "postgres_dsn",
		},
		{
			name: "redis without addr",
			yaml: `
backend:
  base_url: "https://api.speechlink.dev"
store:
  backend: redis
`,
			wantErr: "redis.addr",
		},
		{
			name: "unknown backend",
			yaml: `
backend:
  base_url: "https://api.speechlink.dev"
store:
  backend: etcd
`,
			wantErr: "store.backend",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tc.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error should mention %q, got: %v", tc.wantErr, err)
			}
		})
	}
}

func TestValidate_NegativeDeadline(t *testing.T) {
	t.Parallel()
	yaml := `
backend:
  base_url: "https://api.speechlink.dev"
synthesis:
  fallback_deadline: -1s
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative deadline, got nil")
	}
}

func TestValidate_UsernameWithoutPassword(t *testing.T) {
	t.Parallel()
	yaml := `
backend:
  base_url: "https://api.speechlink.dev"
  username: alice
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for username without password, got nil")
	}
	if !strings.Contains(err.Error(), "password") {
		t.Errorf("error should mention password, got: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
store:
  backend: postgres
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
	if !strings.Contains(errStr, "postgres_dsn") {
		t.Errorf("error should mention postgres_dsn, got: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load("/nonexistent/config.yaml")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want os.ErrNotExist", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	if len(config.ValidProviderNames) == 0 {
		t.Fatal("ValidProviderNames should not be empty")
	}
	remotes := config.ValidProviderNames["remote"]
	found := false
	for _, n := range remotes {
		if n == "backend" {
			found = true
			break
		}
	}
	if !found {
		t.Error(`ValidProviderNames["remote"] should contain "backend"`)
	}
}
