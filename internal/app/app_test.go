package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/daveminay/cohoscrape/internal/components/chrono"
	"github.com/daveminay/cohoscrape/internal/components/telemetry"
	"github.com/daveminay/cohoscrape/internal/config"
	"github.com/daveminay/cohoscrape/internal/gate"
	"github.com/daveminay/cohoscrape/internal/registry"
	"github.com/daveminay/cohoscrape/internal/session"

	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) config.Config {
	return config.Config{
		APIKey:            "key",
		Password:          "secret",
		RegistryURL:       registry.DefaultBaseURL,
		RateLimit:         2,
		MaxPages:          20,
		PageDelayMs:       1000,
		DownloadDelayMs:   1000,
		SessionTTLMinutes: 60,
		MemorySessions:    8,
		TempRoot:          t.TempDir(),
	}
}

func TestNewRequiresCredential(t *testing.T) {
	cfg := testConfig(t)
	cfg.APIKey = ""
	_, err := New(cfg, chrono.NewFake(time.Now()), &telemetry.Recorder{})
	require.ErrorIs(t, err, registry.ErrMissingCredential)
}

func TestManagerRequiresPassword(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(cfg, chrono.NewFake(time.Now()), &telemetry.Recorder{})
	require.NoError(t, err)

	store, closeStore, err := OpenStore(cfg)
	require.NoError(t, err)
	defer closeStore()

	cfg.Password = ""
	_, err = a.Manager(cfg, store, &telemetry.Recorder{})
	require.ErrorIs(t, err, gate.ErrNoSecret)
}

func TestOpenStore(t *testing.T) {
	cfg := testConfig(t)
	store, closeStore, err := OpenStore(cfg)
	require.NoError(t, err)
	require.IsType(t, session.MemoryStore{}, store)
	require.NoError(t, closeStore())

	cfg.DB = filepath.Join(t.TempDir(), "sessions.db")
	store, closeStore, err = OpenStore(cfg)
	require.NoError(t, err)
	require.IsType(t, session.SQLStore{}, store)

	ctx := context.Background()
	require.NoError(t, store.Authorize(ctx, "abc", time.Now()))
	require.NoError(t, closeStore())

	// sessions survive a reopen
	store, closeStore, err = OpenStore(cfg)
	require.NoError(t, err)
	defer closeStore()
	ok, err := store.Authorized(ctx, "abc")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestHttpDump(t *testing.T) {
	cfg := testConfig(t)
	cfg.HttpDumpDir = filepath.Join(t.TempDir(), "dump")
	_, err := New(cfg, chrono.NewFake(time.Now()), &telemetry.Recorder{})
	require.NoError(t, err)
	require.DirExists(t, cfg.HttpDumpDir)
}
