// Package app wires the extraction components together from a config.Config,
// shared by the server and the cli.
package app

import (
	"fmt"
	"log/slog"

	"github.com/daveminay/cohoscrape/internal/archive"
	"github.com/daveminay/cohoscrape/internal/components/chrono"
	"github.com/daveminay/cohoscrape/internal/components/telemetry"
	"github.com/daveminay/cohoscrape/internal/config"
	"github.com/daveminay/cohoscrape/internal/download"
	"github.com/daveminay/cohoscrape/internal/extraction"
	"github.com/daveminay/cohoscrape/internal/gate"
	"github.com/daveminay/cohoscrape/internal/locator"
	"github.com/daveminay/cohoscrape/internal/registry"
	"github.com/daveminay/cohoscrape/internal/session"
	"github.com/daveminay/cohoscrape/internal/webclient"

	"golang.org/x/time/rate"
)

type App struct {
	Registry *registry.Client
	Pipeline *extraction.Pipeline
	Time     chrono.API
}

// New builds the registry client and the pipeline. When cfg.HttpDumpDir is
// set every http exchange is also written there.
func New(cfg config.Config, time chrono.API, tel telemetry.API) (App, error) {
	var output telemetry.MessageOutput
	if cfg.HttpDumpDir != "" {
		fsOutput, err := telemetry.NewFilesystemOutput(cfg.HttpDumpDir)
		if err != nil {
			return App{}, fmt.Errorf("http dump dir: %w", err)
		}
		slog.Info("dumping http exchanges", "dir", cfg.HttpDumpDir)
		output = fsOutput
	}

	reg, err := registry.NewClient(registry.Options{
		BaseURL:   cfg.RegistryURL,
		APIKey:    cfg.APIKey,
		RateLimit: rate.Limit(cfg.RateLimit),
		Output:    output,
	}, tel)
	if err != nil {
		return App{}, err
	}
	web, err := webclient.New(webclient.Options{
		BaseURL: cfg.WebURL,
		Output:  output,
	}, tel)
	if err != nil {
		return App{}, err
	}

	pipeline := extraction.NewPipeline(
		reg,
		locator.NewLocator(web, locator.Options{
			MaxPages: cfg.MaxPages,
			Delay:    cfg.PageDelay(),
		}, time, tel),
		download.NewManager(web, download.Options{
			Delay: cfg.DownloadDelay(),
		}, time, tel),
		archive.NewBuilder(tel),
		time,
		tel,
	)

	return App{
		Registry: reg,
		Pipeline: pipeline,
		Time:     time,
	}, nil
}

// OpenStore opens the sql store when cfg.DB is set and an in-memory store
// otherwise. The returned close func is never nil.
func OpenStore(cfg config.Config) (session.Store, func() error, error) {
	if cfg.DB == "" {
		return session.NewMemoryStore(cfg.MemorySessions, cfg.SessionTTL()), func() error { return nil }, nil
	}
	store, err := session.OpenSQLStore(cfg.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("open session store: %w", err)
	}
	return store, store.Close, nil
}

// Manager builds a session manager on top of the pipeline.
func (a App) Manager(cfg config.Config, store session.Store, tel telemetry.API) (*session.Manager, error) {
	g, err := gate.New(cfg.Password)
	if err != nil {
		return nil, err
	}
	return session.NewManager(store, a.Pipeline, a.Registry, g, a.Time, tel, session.Options{
		TempRoot: cfg.TempRoot,
	}), nil
}
