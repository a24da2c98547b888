package config_test

import (
	"errors"
	"testing"

	"github.com/Naqued/speechlink/internal/config"
	"github.com/Naqued/speechlink/pkg/provider/synth"
	synthmock "github.com/Naqued/speechlink/pkg/provider/synth/mock"
)

func TestRegistry_CreateRemote(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()

	var gotEntry config.ProviderEntry
	reg.RegisterRemote("backend", func(e config.ProviderEntry) (synth.Provider, error) {
		gotEntry = e
		return &synthmock.Provider{}, nil
	})

	p, err := reg.CreateRemote(config.ProviderEntry{Name: "backend", APIKey: "k"})
	if err != nil {
		t.Fatalf("CreateRemote: %v", err)
	}
	if p == nil {
		t.Fatal("CreateRemote returned nil provider")
	}
	if gotEntry.APIKey != "k" {
		t.Errorf("factory entry APIKey = %q, want %q", gotEntry.APIKey, "k")
	}
}

func TestRegistry_UnregisteredName(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()

	if _, err := reg.CreateRemote(config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("remote err = %v, want ErrProviderNotRegistered", err)
	}
	if _, err := reg.CreateLocal(config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("local err = %v, want ErrProviderNotRegistered", err)
	}
	if _, err := reg.CreateRouting(config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("routing err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_OverwriteRegistration(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()

	reg.RegisterRemote("backend", func(config.ProviderEntry) (synth.Provider, error) {
		return nil, errors.New("old factory")
	})
	reg.RegisterRemote("backend", func(config.ProviderEntry) (synth.Provider, error) {
		return &synthmock.Provider{}, nil
	})

	if _, err := reg.CreateRemote(config.ProviderEntry{Name: "backend"}); err != nil {
		t.Fatalf("later registration should win, got %v", err)
	}
}
