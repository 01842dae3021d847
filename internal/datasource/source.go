// Package datasource discovers and connects to the event database the
// Claude Code hooks write to.
package datasource

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cctop/cctop/internal/store"
)

const defaultDB = ".cctop/events.db"

// Discover finds the event database path.
// Priority: CCTOP_DB env var > .cctop/events.db in CWD > walk up parents >
// $HOME/.cctop/events.db.
func Discover() (string, error) {
	if env := os.Getenv("CCTOP_DB"); env != "" {
		if _, err := os.Stat(env); err == nil {
			return env, nil
		}
		return "", fmt.Errorf("CCTOP_DB=%q: %w", env, os.ErrNotExist)
	}

	// Check CWD first.
	if _, err := os.Stat(defaultDB); err == nil {
		abs, err := filepath.Abs(defaultDB)
		if err != nil {
			return "", fmt.Errorf("resolve absolute path for %s: %w", defaultDB, err)
		}
		return abs, nil
	}

	// Walk up parent directories.
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, defaultDB)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	// Per-user fallback, where the hook installer puts it.
	if home, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(home, defaultDB)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("no event database found (looked for %s)", defaultDB)
}

// Open discovers and opens the event store.
func Open() (*store.Store, string, error) {
	path, err := Discover()
	if err != nil {
		return nil, "", err
	}
	s, err := store.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", path, err)
	}
	return s, path, nil
}
