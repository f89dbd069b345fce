package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	configPath := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o600))
	return configPath
}

func TestLoad(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		configContent := `
log_file_path: /tmp/borsawire.log
db_file_path: /tmp/news.db
scrape_period_seconds: 60
lookback_days: 2
server:
  listen: ":9090"
  timeout: 45s
redis:
  addr: redis:6379
  queue: q1
fetch:
  workers: 3
  retry_attempts: 2
  rate_limit: 2.5
sources:
  - name: KAP
    kind: kap
    stock_codes: [THYAO, ASELS]
  - name: AA
    kind: anadolu
    enabled: false
    backfill_only: true
  - name: blog
    kind: rss
    url: https://example.com/feed.xml
    extract: true
`
		cfg, err := Load(writeConfig(t, t.TempDir(), configContent))
		require.NoError(t, err)

		assert.Equal(t, "/tmp/borsawire.log", cfg.LogFilePath)
		assert.Equal(t, "/tmp/news.db", cfg.DBFilePath)
		assert.Equal(t, time.Minute, cfg.ScrapePeriod())
		assert.Equal(t, 2, cfg.LookbackDays)
		assert.Equal(t, ":9090", cfg.Server.Listen)
		assert.Equal(t, 45*time.Second, cfg.Server.Timeout)
		assert.Equal(t, "redis:6379", cfg.Redis.Addr)
		assert.Equal(t, "q1", cfg.Redis.Queue)
		assert.Equal(t, 3, cfg.Fetch.Workers)
		assert.Equal(t, 2, cfg.Fetch.RetryAttempts)
		assert.InDelta(t, 2.5, cfg.Fetch.RateLimit, 0.001)
		assert.Equal(t, 5, cfg.Fetch.EnrichWorkers, "default kept for absent key")

		require.Len(t, cfg.Sources, 3)
		assert.Equal(t, []string{"THYAO", "ASELS"}, cfg.Sources[0].StockCodes)
		assert.True(t, cfg.Sources[0].IsEnabled())
		assert.False(t, cfg.Sources[1].IsEnabled())
		assert.True(t, cfg.Sources[1].BackfillOnly)
		assert.False(t, cfg.Sources[0].BackfillOnly)
		assert.True(t, cfg.Sources[2].Extract)

		src, ok := cfg.Source("AA")
		assert.True(t, ok)
		assert.Equal(t, "anadolu", src.Kind)
		_, ok = cfg.Source("nope")
		assert.False(t, ok)
	})

	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, t.TempDir(), "scrape_period_seconds: 5\n"))
		require.NoError(t, err)

		assert.Equal(t, "logs/news_scraper.log", cfg.LogFilePath)
		assert.Equal(t, "data/sql_news.db", cfg.DBFilePath)
		assert.Equal(t, 5*time.Second, cfg.ScrapePeriod())
		assert.Equal(t, ":5005", cfg.Server.Listen)
		assert.Equal(t, "news_queue", cfg.Redis.Queue)
		assert.Equal(t, 10, cfg.Fetch.Workers)
		assert.Equal(t, 5, cfg.Fetch.RetryAttempts)
		assert.Equal(t, 500*time.Millisecond, cfg.Fetch.RetryDelay)
		require.Len(t, cfg.Sources, 2)
		assert.Equal(t, "BIGPARA", cfg.Sources[0].Name)
		assert.Equal(t, "KAP", cfg.Sources[1].Name)
	})

	t.Run("redis empty addr gets default", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, t.TempDir(), "redis:\n  addr: \"\"\n"))
		require.NoError(t, err)
		assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
		assert.False(t, cfg.Redis.Disabled, "empty addr does not turn publishing off")
	})

	t.Run("redis disabled", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, t.TempDir(), "redis:\n  disabled: true\n"))
		require.NoError(t, err)
		assert.True(t, cfg.Redis.Disabled)
		assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	})

	t.Run("explicit empty sources", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, t.TempDir(), "sources: []\n"))
		require.NoError(t, err)
		assert.Empty(t, cfg.Sources)
	})

	t.Run("env expansion", func(t *testing.T) {
		t.Setenv("BW_DB", "/var/lib/news.db")
		cfg, err := Load(writeConfig(t, t.TempDir(), "db_file_path: ${BW_DB}\n"))
		require.NoError(t, err)
		assert.Equal(t, "/var/lib/news.db", cfg.DBFilePath)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load("/nonexistent/config.yml")
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, t.TempDir(), "sources: [\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse config")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{name: "negative period", content: "scrape_period_seconds: -1", errMsg: "scrape_period_seconds"},
		{name: "negative lookback", content: "lookback_days: -2", errMsg: "lookback_days"},
		{name: "short server timeout", content: "server:\n  timeout: 10ms", errMsg: "server timeout"},
		{name: "no retry", content: "fetch:\n  retry_attempts: -1", errMsg: "retry_attempts"},
		{name: "rss without url", content: "sources:\n  - name: x\n    kind: rss", errMsg: "url is required"},
		{name: "no kind", content: "sources:\n  - name: x", errMsg: "kind is required"},
		{name: "no name", content: "sources:\n  - kind: kap", errMsg: "name is required"},
		{name: "duplicate", content: "sources:\n  - {name: x, kind: kap}\n  - {name: x, kind: bigpara}", errMsg: "duplicate name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, t.TempDir(), tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoader(t *testing.T) {
	t.Run("reload picks up changes", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfig(t, dir, "scrape_period_seconds: 10\n")
		l, err := NewLoader(path)
		require.NoError(t, err)
		assert.Equal(t, 10*time.Second, l.Snapshot().ScrapePeriod())

		writeConfig(t, dir, "scrape_period_seconds: 30\n")
		assert.Equal(t, 30*time.Second, l.Snapshot().ScrapePeriod())
	})

	t.Run("broken file keeps previous snapshot", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfig(t, dir, "scrape_period_seconds: 7\n")
		l, err := NewLoader(path)
		require.NoError(t, err)

		writeConfig(t, dir, "scrape_period_seconds: [oops\n")
		assert.Equal(t, 7*time.Second, l.Snapshot().ScrapePeriod())
		listen, _ := l.GetServerConfig()
		assert.Equal(t, ":5005", listen)
	})

	t.Run("missing file uses defaults", func(t *testing.T) {
		l, err := NewLoader(filepath.Join(t.TempDir(), "absent.yml"))
		require.NoError(t, err)
		assert.Equal(t, 10*time.Second, l.Snapshot().ScrapePeriod())
	})

	t.Run("invalid initial file is an error", func(t *testing.T) {
		_, err := NewLoader(writeConfig(t, t.TempDir(), "scrape_period_seconds: -5\n"))
		require.Error(t, err)
	})
}
