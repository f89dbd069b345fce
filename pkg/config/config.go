package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	LogFilePath         string `yaml:"log_file_path" json:"log_file_path" jsonschema:"default=logs/news_scraper.log,description=Log file location"`
	DBFilePath          string `yaml:"db_file_path" json:"db_file_path" jsonschema:"default=data/sql_news.db,description=SQLite database file"`
	ScrapePeriodSeconds int    `yaml:"scrape_period_seconds" json:"scrape_period_seconds" jsonschema:"default=10,minimum=1,description=Seconds between scheduler ticks; re-read on every tick"`
	LookbackDays        int    `yaml:"lookback_days" json:"lookback_days" jsonschema:"default=0,minimum=0,description=Days before today included in every scrape range"`

	Server struct {
		Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:5005,description=HTTP server listen address"`
		Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
	} `yaml:"server" json:"server" jsonschema:"description=Server configuration"`

	Redis RedisConfig `yaml:"redis" json:"redis" jsonschema:"description=Message queue configuration"`

	Fetch FetchConfig `yaml:"fetch" json:"fetch" jsonschema:"description=HTTP fetching configuration"`

	Sources []SourceConfig `yaml:"sources" json:"sources" jsonschema:"description=News sources to scrape"`
}

// RedisConfig holds broker settings. Empty Addr means localhost:6379, publishing is turned off by Disabled only.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr" jsonschema:"default=localhost:6379,description=Redis address or redis:// URL"`
	Password string `yaml:"password" json:"password" jsonschema:"description=Redis password"`
	DB       int    `yaml:"db" json:"db" jsonschema:"default=0,description=Redis database number"`
	Queue    string `yaml:"queue" json:"queue" jsonschema:"default=news_queue,description=Redis list receiving new records"`
	Disabled bool   `yaml:"disabled" json:"disabled" jsonschema:"default=false,description=Disable queue publishing"`
}

// FetchConfig holds fetch engine settings shared by all sources
type FetchConfig struct {
	Timeout       time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Timeout of a single HTTP request"`
	Workers       int           `yaml:"workers" json:"workers" jsonschema:"default=10,minimum=1,description=Concurrent page requests per source run"`
	EnrichWorkers int           `yaml:"enrich_workers" json:"enrich_workers" jsonschema:"default=5,minimum=1,description=Concurrent article requests per source run"`
	RetryAttempts int           `yaml:"retry_attempts" json:"retry_attempts" jsonschema:"default=5,minimum=1,description=Attempts per request before it is abandoned"`
	RetryDelay    time.Duration `yaml:"retry_delay" json:"retry_delay" jsonschema:"default=500ms,description=Initial backoff delay doubled every attempt"`
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" json:"max_retry_delay" jsonschema:"default=30s,description=Backoff delay cap"`
	RateLimit     float64       `yaml:"rate_limit" json:"rate_limit" jsonschema:"default=0,description=Requests per second per source (0 is unlimited)"`
	Burst         int           `yaml:"burst" json:"burst" jsonschema:"default=1,description=Rate limiter burst"`
	MaxPages      int           `yaml:"max_pages" json:"max_pages" jsonschema:"default=50,description=Upper bound of pages requested in one run"`
	UserAgent     string        `yaml:"user_agent" json:"user_agent" jsonschema:"description=User agent for HTTP requests"`
}

// SourceConfig describes one upstream source
type SourceConfig struct {
	Name       string   `yaml:"name" json:"name" jsonschema:"required,description=Source identifier stored with every record"`
	Kind       string   `yaml:"kind" json:"kind" jsonschema:"required,enum=bigpara,enum=kap,enum=anadolu,enum=rss,enum=mynet,enum=bloomberght,description=Adapter kind"`
	URL        string   `yaml:"url" json:"url" jsonschema:"description=Base URL (adapter default if empty)"`
	Enabled    *bool    `yaml:"enabled" json:"enabled" jsonschema:"default=true,description=Scrape this source"`
	StockCodes []string `yaml:"stock_codes" json:"stock_codes" jsonschema:"description=Stock codes KAP disclosures are filtered by and BloombergHT is searched for"`
	Extract    bool     `yaml:"extract" json:"extract" jsonschema:"default=false,description=Extract full article text for feed items"`

	BackfillOnly bool `yaml:"backfill_only" json:"backfill_only" jsonschema:"default=false,description=Skip on scheduler ticks and run only by backfill or on demand"`
}

// IsEnabled returns true unless the source is explicitly disabled
func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Default returns configuration with all defaults applied
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.LogFilePath == "" {
		cfg.LogFilePath = "logs/news_scraper.log"
	}
	if cfg.DBFilePath == "" {
		cfg.DBFilePath = "data/sql_news.db"
	}
	if cfg.ScrapePeriodSeconds == 0 {
		cfg.ScrapePeriodSeconds = 10
	}

	// set defaults for server
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":5005"
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = 30 * time.Second
	}

	// set defaults for redis
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.Queue == "" {
		cfg.Redis.Queue = "news_queue"
	}

	// set defaults for fetch
	if cfg.Fetch.Timeout == 0 {
		cfg.Fetch.Timeout = 30 * time.Second
	}
	if cfg.Fetch.Workers == 0 {
		cfg.Fetch.Workers = 10
	}
	if cfg.Fetch.EnrichWorkers == 0 {
		cfg.Fetch.EnrichWorkers = 5
	}
	if cfg.Fetch.RetryAttempts == 0 {
		cfg.Fetch.RetryAttempts = 5
	}
	if cfg.Fetch.RetryDelay == 0 {
		cfg.Fetch.RetryDelay = 500 * time.Millisecond
	}
	if cfg.Fetch.MaxRetryDelay == 0 {
		cfg.Fetch.MaxRetryDelay = 30 * time.Second
	}
	if cfg.Fetch.Burst == 0 {
		cfg.Fetch.Burst = 1
	}
	if cfg.Fetch.MaxPages == 0 {
		cfg.Fetch.MaxPages = 50
	}

	// nil means the key is absent, an explicit empty list disables all sources
	if cfg.Sources == nil {
		cfg.Sources = []SourceConfig{
			{Name: "BIGPARA", Kind: "bigpara"},
			{Name: "KAP", Kind: "kap"},
		}
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if cfg.ScrapePeriodSeconds < 1 {
		return errors.New("scrape_period_seconds must be at least 1")
	}
	if cfg.LookbackDays < 0 {
		return errors.New("lookback_days must be non-negative")
	}

	// validate server config
	if cfg.Server.Timeout < time.Second {
		return errors.New("server timeout must be at least 1 second")
	}

	// validate fetch config
	if cfg.Fetch.Workers < 1 || cfg.Fetch.EnrichWorkers < 1 {
		return errors.New("fetch workers and enrich_workers must be at least 1")
	}
	if cfg.Fetch.RetryAttempts < 1 {
		return errors.New("fetch retry_attempts must be at least 1")
	}
	if cfg.Fetch.RateLimit < 0 {
		return errors.New("fetch rate_limit must be non-negative")
	}

	seen := map[string]bool{}
	for i, src := range cfg.Sources {
		if strings.TrimSpace(src.Name) == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		if src.Kind == "" {
			return fmt.Errorf("source %s: kind is required", src.Name)
		}
		if src.Kind == "rss" && src.URL == "" {
			return fmt.Errorf("source %s: url is required for rss", src.Name)
		}
		if seen[src.Name] {
			return fmt.Errorf("source %s: duplicate name", src.Name)
		}
		seen[src.Name] = true
	}

	return nil
}

// ScrapePeriod returns the scheduler period
func (c *Config) ScrapePeriod() time.Duration {
	return time.Duration(c.ScrapePeriodSeconds) * time.Second
}

// Source returns source config by name
func (c *Config) Source(name string) (SourceConfig, bool) {
	for _, s := range c.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return SourceConfig{}, false
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}

// Loader re-reads the config file on demand and keeps the last good snapshot
type Loader struct {
	path string

	mu   sync.Mutex
	last *Config
}

// NewLoader makes a loader and reads the initial snapshot.
// A missing file is not an error, defaults are used until it appears.
func NewLoader(path string) (*Loader, error) {
	l := &Loader{path: path}
	cfg, err := Load(path)
	switch {
	case err == nil:
		l.last = cfg
	case errors.Is(err, os.ErrNotExist):
		lgr.Printf("[WARN] config %s not found, using defaults", path)
		l.last = Default()
	default:
		return nil, err
	}
	return l, nil
}

// Snapshot re-reads the file and returns a fresh config.
// On failure the previous snapshot is returned.
func (l *Loader) Snapshot() *Config {
	l.mu.Lock()
	defer l.mu.Unlock()

	cfg, err := Load(l.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			lgr.Printf("[WARN] can't reload config %s, keep previous: %v", l.path, err)
		}
		return l.last
	}
	l.last = cfg
	return cfg
}

// GetServerConfig returns server configuration of the last snapshot
func (l *Loader) GetServerConfig() (listen string, timeout time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last.GetServerConfig()
}
