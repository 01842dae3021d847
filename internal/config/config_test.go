package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("CCTOP_DB")
	os.Unsetenv("CCTOP_REFRESH_INTERVAL")
	os.Unsetenv("CCTOP_SESSION_LIMIT")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RefreshInterval != 2*time.Second {
		t.Errorf("RefreshInterval = %v", cfg.RefreshInterval)
	}
	if cfg.SessionLimit != 50 {
		t.Errorf("SessionLimit = %d", cfg.SessionLimit)
	}
}

func TestLoadFromEnv(t *testing.T) {
	old := os.Getenv("CCTOP_REFRESH_INTERVAL")
	defer os.Setenv("CCTOP_REFRESH_INTERVAL", old)
	os.Setenv("CCTOP_REFRESH_INTERVAL", "5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RefreshInterval != 5*time.Second {
		t.Errorf("RefreshInterval = %v, want 5s", cfg.RefreshInterval)
	}
}

func TestLoadClampsRefresh(t *testing.T) {
	old := os.Getenv("CCTOP_REFRESH_INTERVAL")
	defer os.Setenv("CCTOP_REFRESH_INTERVAL", old)
	os.Setenv("CCTOP_REFRESH_INTERVAL", "1ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RefreshInterval < 250*time.Millisecond {
		t.Errorf("RefreshInterval = %v, want clamped", cfg.RefreshInterval)
	}
}
