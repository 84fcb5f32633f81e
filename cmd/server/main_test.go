package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/visit-engine/config"
	"github.com/warp/visit-engine/store/sqlite"
)

// captureStore records the store run opens so tests can check it was closed.
func captureStore(t *testing.T) **sqlite.Store {
	t.Helper()
	var opened *sqlite.Store
	orig := openStore
	openStore = func(path string) (*sqlite.Store, error) {
		s, err := orig(path)
		opened = s
		return s, err
	}
	t.Cleanup(func() { openStore = orig })
	return &opened
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Port:         0,
		DatabasePath: filepath.Join(t.TempDir(), "visits.db"),
		LogLevel:     "error",
	}
}

func TestRun_AuditStartFailureClosesStore(t *testing.T) {
	// GIVEN: A schedule cron cannot parse
	opened := captureStore(t)
	cfg := testConfig(t)
	cfg.PriceAuditSchedule = "every tuesday"

	// WHEN: The server starts
	err := run(context.Background(), cfg, zerolog.Nop())

	// THEN: Startup fails and the database is released
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start price audit")
	require.NotNil(t, *opened)
	assert.Error(t, (*opened).Ping(context.Background()))
}

func TestRun_ShutdownOnCancelClosesStore(t *testing.T) {
	opened := captureStore(t)
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, zerolog.Nop()) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after cancel")
	}
	require.NotNil(t, *opened)
	assert.Error(t, (*opened).Ping(context.Background()))
}

func TestRun_BadDatabasePath(t *testing.T) {
	cfg := testConfig(t)
	cfg.DatabasePath = filepath.Join(t.TempDir(), "missing", "dir", "visits.db")

	err := run(context.Background(), cfg, zerolog.Nop())

	assert.Error(t, err)
}
