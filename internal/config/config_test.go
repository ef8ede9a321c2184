package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/surugaya-watcher/internal/watch"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadWithFileOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  enabled: true
  port: 9090
logging:
  development: false
watch:
  interval_minutes: 5
  run_on_start: false
  topics:
    - keyword: figure
    - keyword: nendoroid
      category: "5"
crawler:
  command: /usr/bin/crawler
  args: ["--url", "{url}"]
  env: ["SCRAPY_SETTINGS_MODULE=scraper.settings"]
  timeout_seconds: 120
webhook:
  url: https://discord.com/api/webhooks/1/abc
  batch_size: 5
state:
  backend: memory
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.True(t, cfg.Server.Enabled)
	require.Equal(t, 9090, cfg.Server.Port)
	require.False(t, cfg.Logging.Development)
	require.Equal(t, 5*time.Minute, cfg.Interval())
	require.False(t, cfg.Watch.RunOnStart)
	require.Equal(t, []watch.Topic{
		{Keyword: "figure"},
		{Keyword: "nendoroid", Category: "5"},
	}, cfg.Watch.Topics)
	require.Equal(t, "/usr/bin/crawler", cfg.Crawler.Command)
	require.Equal(t, []string{"--url", "{url}"}, cfg.Crawler.Args)
	require.Equal(t, []string{"SCRAPY_SETTINGS_MODULE=scraper.settings"}, cfg.Crawler.Env)
	require.Equal(t, 5, cfg.Webhook.BatchSize)
	require.Equal(t, "memory", cfg.State.Backend)
	// Untouched defaults survive.
	require.Equal(t, "https://www.suruga-ya.com", cfg.Catalog.Origin)
	require.Equal(t, "/en/products", cfg.Catalog.SearchPath)
	require.Equal(t, 15, cfg.Webhook.TimeoutSeconds)
}

func TestLoadLegacyEnvironment(t *testing.T) {
	t.Setenv("NOTIFY_KEYWORD", "figure")
	t.Setenv("NOTIFY_CATEGORY", "")
	t.Setenv("NOTIFY_WEBHOOK_URL", "https://discord.com/api/webhooks/2/def")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, []watch.Topic{{Keyword: "figure", Key: LegacyStateKey}}, cfg.Watch.Topics)
	require.Equal(t, "https://discord.com/api/webhooks/2/def", cfg.Webhook.URL)
	require.Equal(t, "local", cfg.State.Backend)
	require.Equal(t, "./state", cfg.State.Dir)
}

func TestLoadPrefixedEnvironmentWins(t *testing.T) {
	t.Setenv("NOTIFY_KEYWORD", "figure")
	t.Setenv("NOTIFY_WEBHOOK_URL", "https://discord.com/api/webhooks/2/legacy")
	t.Setenv("WATCHER_WEBHOOK_URL", "https://discord.com/api/webhooks/3/modern")
	t.Setenv("WATCHER_WATCH_INTERVAL_MINUTES", "30")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "https://discord.com/api/webhooks/3/modern", cfg.Webhook.URL)
	require.Equal(t, 30, cfg.Watch.IntervalMinutes)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, watch.ErrInvalidConfig)
}

func TestLoadWithoutTopicsFails(t *testing.T) {
	path := writeConfig(t, `
webhook:
  url: https://discord.com/api/webhooks/1/abc
`)
	_, err := Load(path)
	require.ErrorIs(t, err, watch.ErrInvalidConfig)
	require.Contains(t, err.Error(), "watch.topics")
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Watch:   WatchConfig{IntervalMinutes: 15, Topics: []watch.Topic{{Keyword: "figure"}}},
		Catalog: CatalogConfig{Origin: "https://www.suruga-ya.com"},
		Crawler: CrawlerConfig{Command: "python", TimeoutSeconds: 60},
		Webhook: WebhookConfig{URL: "https://discord.com/api/webhooks/1/abc", BatchSize: 10, TimeoutSeconds: 5},
		State:   StateConfig{Backend: "local", Dir: "./state"},
	}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{name: "no topics", mutate: func(c *Config) { c.Watch.Topics = nil }, want: "watch.topics"},
		{name: "zero interval", mutate: func(c *Config) { c.Watch.IntervalMinutes = 0 }, want: "watch.interval_minutes"},
		{name: "missing webhook", mutate: func(c *Config) { c.Webhook.URL = "" }, want: "webhook.url"},
		{name: "relative webhook", mutate: func(c *Config) { c.Webhook.URL = "/hook" }, want: "webhook.url"},
		{name: "batch too large", mutate: func(c *Config) { c.Webhook.BatchSize = 11 }, want: "webhook.batch_size"},
		{name: "batch zero", mutate: func(c *Config) { c.Webhook.BatchSize = 0 }, want: "webhook.batch_size"},
		{name: "webhook timeout", mutate: func(c *Config) { c.Webhook.TimeoutSeconds = 0 }, want: "webhook.timeout_seconds"},
		{name: "bad origin", mutate: func(c *Config) { c.Catalog.Origin = "suruga-ya" }, want: "catalog.origin"},
		{name: "no command", mutate: func(c *Config) { c.Crawler.Command = " " }, want: "crawler.command"},
		{name: "bad env", mutate: func(c *Config) { c.Crawler.Env = []string{"NOVALUE"} }, want: "crawler.env"},
		{name: "crawler timeout", mutate: func(c *Config) { c.Crawler.TimeoutSeconds = 0 }, want: "crawler.timeout_seconds"},
		{name: "server port", mutate: func(c *Config) { c.Server = ServerConfig{Enabled: true} }, want: "server.port"},
		{name: "local dir", mutate: func(c *Config) { c.State.Dir = "" }, want: "state.dir"},
		{name: "gcs bucket", mutate: func(c *Config) { c.State.Backend = "gcs" }, want: "state.gcs.bucket"},
		{name: "postgres dsn", mutate: func(c *Config) { c.State.Backend = "postgres" }, want: "state.postgres.dsn"},
		{name: "unknown backend", mutate: func(c *Config) { c.State.Backend = "redis" }, want: "state.backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			cfg.Watch.Topics = append([]watch.Topic(nil), base.Watch.Topics...)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
			require.ErrorIs(t, err, watch.ErrInvalidConfig)
		})
	}
}
