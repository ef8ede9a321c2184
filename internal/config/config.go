// Package config loads and validates watcher configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/surugaya-watcher/internal/watch"
)

// MaxWebhookBatch is the embed limit the webhook accepts per message.
const MaxWebhookBatch = 10

// LegacyStateKey names the state file of the single-watch NOTIFY_* setup.
const LegacyStateKey = "last"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Watch   WatchConfig   `mapstructure:"watch"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Webhook WebhookConfig `mapstructure:"webhook"`
	State   StateConfig   `mapstructure:"state"`
	Legacy  LegacyConfig  `mapstructure:"legacy"`
}

// ServerConfig controls the optional ops HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// WatchConfig holds the watchlist and poll cadence.
type WatchConfig struct {
	IntervalMinutes int           `mapstructure:"interval_minutes"`
	RunOnStart      bool          `mapstructure:"run_on_start"`
	Topics          []watch.Topic `mapstructure:"topics"`
}

// CatalogConfig describes the remote catalog and the branding shown on cards.
type CatalogConfig struct {
	Origin     string `mapstructure:"origin"`
	SearchPath string `mapstructure:"search_path"`
	SiteName   string `mapstructure:"site_name"`
	SiteURL    string `mapstructure:"site_url"`
	SiteIcon   string `mapstructure:"site_icon"`
}

// CrawlerConfig controls the external crawler subprocess.
type CrawlerConfig struct {
	Command          string   `mapstructure:"command"`
	Args             []string `mapstructure:"args"`
	WorkDir          string   `mapstructure:"work_dir"`
	VirtualEnv       string   `mapstructure:"virtual_env"`
	Env              []string `mapstructure:"env"`
	TimeoutSeconds   int      `mapstructure:"timeout_seconds"`
	MinIntervalMs    int      `mapstructure:"min_interval_ms"`
	StderrTailBytes  int      `mapstructure:"stderr_tail_bytes"`
	InheritParentEnv bool     `mapstructure:"inherit_parent_env"`
}

// WebhookConfig controls notification delivery.
type WebhookConfig struct {
	URL            string  `mapstructure:"url"`
	BatchSize      int     `mapstructure:"batch_size"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	PostsPerSecond float64 `mapstructure:"posts_per_second"`
}

// StateConfig selects and configures the topic state backend.
type StateConfig struct {
	Backend  string         `mapstructure:"backend"`
	Dir      string         `mapstructure:"dir"`
	GCS      GCSConfig      `mapstructure:"gcs"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// GCSConfig locates state objects in Cloud Storage.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// PostgresConfig controls the Postgres state table.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// LegacyConfig mirrors the single-watch NOTIFY_* environment variables.
type LegacyConfig struct {
	Keyword    string `mapstructure:"keyword"`
	Category   string `mapstructure:"category"`
	WebhookURL string `mapstructure:"webhook_url"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("%w: read config: %w", watch.ErrInvalidConfig, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: unmarshal config: %w", watch.ErrInvalidConfig, err)
	}
	cfg.applyLegacy()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("watch.interval_minutes", 15)
	v.SetDefault("watch.run_on_start", true)
	v.SetDefault("catalog.origin", "https://www.suruga-ya.com")
	v.SetDefault("catalog.search_path", "/en/products")
	v.SetDefault("catalog.site_name", "Suruga-ya.com")
	v.SetDefault("catalog.site_url", "https://www.suruga-ya.com/en/")
	v.SetDefault("catalog.site_icon",
		"https://www.suruga-ya.com/sites/default/files_light/pwa/images/icons/favicon-32x32.png.webp?v=1")
	v.SetDefault("crawler.command", "python")
	v.SetDefault("crawler.args", []string{
		"-m", "scrapy.cmdline", "crawl", "--output=-:json", "-a", "url={url}", "suruga-ya",
	})
	v.SetDefault("crawler.work_dir", "./scraper")
	v.SetDefault("crawler.virtual_env", "./venv")
	v.SetDefault("crawler.timeout_seconds", 600)
	v.SetDefault("crawler.min_interval_ms", 2000)
	v.SetDefault("crawler.stderr_tail_bytes", 2048)
	v.SetDefault("crawler.inherit_parent_env", false)
	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.batch_size", MaxWebhookBatch)
	v.SetDefault("webhook.timeout_seconds", 15)
	v.SetDefault("webhook.posts_per_second", 1.0)
	v.SetDefault("state.backend", "local")
	v.SetDefault("state.dir", "./state")
	v.SetDefault("state.gcs.bucket", "")
	v.SetDefault("state.gcs.prefix", "state")
	v.SetDefault("state.postgres.dsn", "")
	v.SetDefault("state.postgres.table", "topic_state")
}

func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"legacy.keyword":     "NOTIFY_KEYWORD",
		"legacy.category":    "NOTIFY_CATEGORY",
		"legacy.webhook_url": "NOTIFY_WEBHOOK_URL",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s: %w", env, err)
		}
	}
	return nil
}

// applyLegacy folds the NOTIFY_* variables in when the modern keys are unset.
func (c *Config) applyLegacy() {
	if c.Webhook.URL == "" {
		c.Webhook.URL = c.Legacy.WebhookURL
	}
	if len(c.Watch.Topics) == 0 && (c.Legacy.Keyword != "" || c.Legacy.Category != "") {
		c.Watch.Topics = []watch.Topic{{
			Keyword:  c.Legacy.Keyword,
			Category: c.Legacy.Category,
			Key:      LegacyStateKey,
		}}
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %w", watch.ErrInvalidConfig, err)
	}
	return nil
}

func (c Config) validate() error {
	if len(c.Watch.Topics) == 0 {
		return fmt.Errorf("watch.topics must list at least one topic")
	}
	if c.Watch.IntervalMinutes <= 0 {
		return fmt.Errorf("watch.interval_minutes must be > 0")
	}
	if err := validateURL("webhook.url", c.Webhook.URL); err != nil {
		return err
	}
	if c.Webhook.BatchSize <= 0 || c.Webhook.BatchSize > MaxWebhookBatch {
		return fmt.Errorf("webhook.batch_size must be between 1 and %d", MaxWebhookBatch)
	}
	if c.Webhook.TimeoutSeconds <= 0 {
		return fmt.Errorf("webhook.timeout_seconds must be > 0")
	}
	if err := validateURL("catalog.origin", c.Catalog.Origin); err != nil {
		return err
	}
	if strings.TrimSpace(c.Crawler.Command) == "" {
		return fmt.Errorf("crawler.command is required")
	}
	for _, kv := range c.Crawler.Env {
		if !strings.Contains(kv, "=") {
			return fmt.Errorf("crawler.env entry %q must be KEY=VALUE", kv)
		}
	}
	if c.Crawler.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.timeout_seconds must be > 0")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when the server is enabled")
	}
	switch c.State.Backend {
	case "local":
		if strings.TrimSpace(c.State.Dir) == "" {
			return fmt.Errorf("state.dir is required for the local backend")
		}
	case "gcs":
		if c.State.GCS.Bucket == "" {
			return fmt.Errorf("state.gcs.bucket is required for the gcs backend")
		}
	case "postgres":
		if c.State.Postgres.DSN == "" {
			return fmt.Errorf("state.postgres.dsn is required for the postgres backend")
		}
	case "memory":
	default:
		return fmt.Errorf("state.backend %q is not one of local, gcs, postgres, memory", c.State.Backend)
	}
	return nil
}

func validateURL(field, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%s must be an absolute http(s) URL", field)
	}
	return nil
}

// Interval returns the poll interval.
func (c Config) Interval() time.Duration {
	return time.Duration(c.Watch.IntervalMinutes) * time.Minute
}
