package config

import (
	"os"
	"testing"
)

func TestRemoteURL_Default(t *testing.T) {
	os.Unsetenv(EnvRemoteURL)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RemoteURL() != "" {
		t.Errorf("default RemoteURL = %q, want empty", cfg.RemoteURL())
	}
}

func TestRemoteURL_FromEnv(t *testing.T) {
	os.Setenv(EnvRemoteURL, "https://markers.example.com")
	defer os.Unsetenv(EnvRemoteURL)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RemoteURL() != "https://markers.example.com" {
		t.Errorf("RemoteURL = %q, want %q", cfg.RemoteURL(), "https://markers.example.com")
	}
}

func TestPort_Invalid(t *testing.T) {
	os.Setenv(EnvPort, "not-a-port")
	defer os.Unsetenv(EnvPort)

	if _, err := New(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestHeadless_FromEnv(t *testing.T) {
	os.Setenv(EnvHeadless, "true")
	defer os.Unsetenv(EnvHeadless)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Headless() {
		t.Error("Headless = false, want true")
	}
}
