package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/daveminay/cohoscrape/internal/registry"
	"github.com/daveminay/cohoscrape/internal/webclient"
	"github.com/daveminay/cohoscrape/lib/configutil"

	"github.com/robfig/cron/v3"
)

type Config struct {
	Listen string `json:"listen"`

	// DB is a sqlite path or a libsql url, sessions are kept in memory when
	// it is empty.
	DB string `json:"db"`

	// Companies House
	APIKey      string  `json:"api_key"`
	RegistryURL string  `json:"registry_url"`
	WebURL      string  `json:"web_url"`
	RateLimit   float64 `json:"rate_limit"`

	// Scraping
	MaxPages        int `json:"max_pages"`
	PageDelayMs     int `json:"page_delay_ms"`
	DownloadDelayMs int `json:"download_delay_ms"`

	// Access
	Password string `json:"password"`

	// Sessions
	SessionTTLMinutes int    `json:"session_ttl_minutes"`
	MemorySessions    int    `json:"memory_sessions"`
	SweepSchedule     string `json:"sweep_schedule"`
	TempRoot          string `json:"temp_root"`

	// HttpDumpDir, when set, receives a copy of every http exchange.
	HttpDumpDir string `json:"http_dump_dir"`
}

// Load reads `path` (a missing file is fine), then lets the environment
// override it and fills in defaults.
func Load(path string) (Config, error) {
	cfg, err := configutil.ReadOptional[Config](path)
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.Listen = envOr("COHOSCRAPE_LISTEN", cfg.Listen)
	cfg.DB = envOr("COHOSCRAPE_DB", cfg.DB)
	cfg.APIKey = envOr("COMPANIES_HOUSE_API_KEY", cfg.APIKey)
	cfg.Password = envOr("SCRAPER_PASSWORD", cfg.Password)
	cfg.MaxPages = envInt("COHOSCRAPE_MAX_PAGES", cfg.MaxPages)
	cfg.SessionTTLMinutes = envInt("COHOSCRAPE_SESSION_TTL_MINUTES", cfg.SessionTTLMinutes)

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.RegistryURL == "" {
		c.RegistryURL = registry.DefaultBaseURL
	}
	if c.WebURL == "" {
		c.WebURL = webclient.DefaultBaseURL
	}
	if c.RateLimit <= 0 {
		c.RateLimit = 2
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 20
	}
	if c.PageDelayMs <= 0 {
		c.PageDelayMs = 1000
	}
	if c.DownloadDelayMs <= 0 {
		c.DownloadDelayMs = 1000
	}
	if c.SessionTTLMinutes <= 0 {
		c.SessionTTLMinutes = 60
	}
	if c.MemorySessions <= 0 {
		c.MemorySessions = 1024
	}
	if c.SweepSchedule == "" {
		c.SweepSchedule = "*/10 * * * *"
	}
}

func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

func (c Config) PageDelay() time.Duration {
	return time.Duration(c.PageDelayMs) * time.Millisecond
}

func (c Config) DownloadDelay() time.Duration {
	return time.Duration(c.DownloadDelayMs) * time.Millisecond
}

// Validate checks what the server needs. The cli only needs the api key and
// checks it through registry.NewClient.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("COMPANIES_HOUSE_API_KEY is required: %w", registry.ErrMissingCredential)
	}
	if c.Password == "" {
		return fmt.Errorf("SCRAPER_PASSWORD is required")
	}
	_, err := cron.ParseStandard(c.SweepSchedule)
	if err != nil {
		return fmt.Errorf("sweep_schedule %q: %w", c.SweepSchedule, err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
