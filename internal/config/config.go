package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kevinzhu/skillpulse/pkg/feed"
	"github.com/kevinzhu/skillpulse/pkg/skill"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig     `yaml:"database"`
	Server   ServerConfig       `yaml:"server"`
	Cache    CacheConfig        `yaml:"cache"`
	History  HistoryConfig      `yaml:"history"`
	Sources  SourcesConfig      `yaml:"sources"`
	Feeds    FeedsConfig        `yaml:"feeds"`
	Alerts   AlertsConfig       `yaml:"alerts"`
	Schedule ScheduleConfig     `yaml:"schedule"`
	Skills   []skill.Definition `yaml:"skills"`
	Logging  LoggingConfig      `yaml:"logging"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// CacheConfig tunes the two cache tiers.
type CacheConfig struct {
	TTL             string  `yaml:"ttl"`
	FreshnessWindow string  `yaml:"freshness_window"`
	MinFreshRatio   float64 `yaml:"min_fresh_ratio"`
}

// ParseTTL returns the fast-tier TTL as a duration.
func (c CacheConfig) ParseTTL() time.Duration {
	return parseDuration(c.TTL, 24*time.Hour)
}

// ParseFreshnessWindow returns the durable-tier freshness window.
func (c CacheConfig) ParseFreshnessWindow() time.Duration {
	return parseDuration(c.FreshnessWindow, 24*time.Hour)
}

// HistoryConfig tunes trend history retention.
type HistoryConfig struct {
	Window int `yaml:"window"`
}

// SourcesConfig holds credentials for the signal sources.
type SourcesConfig struct {
	GitHub  GitHubConfig  `yaml:"github"`
	YouTube YouTubeConfig `yaml:"youtube"`
}

// GitHubConfig for the GitHub signal fetcher.
type GitHubConfig struct {
	Token string `yaml:"token"`
}

// YouTubeConfig for the YouTube signal fetcher.
type YouTubeConfig struct {
	APIKey string `yaml:"api_key"`
}

// FeedsConfig configures the learning-article collector.
type FeedsConfig struct {
	Enabled bool        `yaml:"enabled"`
	MaxAge  string      `yaml:"max_age"`
	Feeds   []feed.Feed `yaml:"feeds"`
}

// ParseMaxAge returns how old a feed entry may be to be kept.
func (f FeedsConfig) ParseMaxAge() time.Duration {
	return parseDuration(f.MaxAge, 7*24*time.Hour)
}

// AlertsConfig configures spike alert destinations.
type AlertsConfig struct {
	SpikeThreshold int           `yaml:"spike_threshold"`
	Slack          SlackConfig   `yaml:"slack"`
	Discord        DiscordConfig `yaml:"discord"`
	Webhook        WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ScheduleConfig configures the optional background refresh. An empty
// interval disables it; the service stays purely request-triggered.
type ScheduleConfig struct {
	RefreshInterval string `yaml:"refresh_interval"`
	CollectInterval string `yaml:"collect_interval"`
}

// ParseRefreshInterval returns the refresh interval, zero when disabled.
func (s ScheduleConfig) ParseRefreshInterval() time.Duration {
	return parseDuration(s.RefreshInterval, 0)
}

// ParseCollectInterval returns the article-collect interval, zero when disabled.
func (s ScheduleConfig) ParseCollectInterval() time.Duration {
	return parseDuration(s.CollectInterval, 0)
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Development bool `yaml:"development"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./skillpulse.db"},
		Server:   ServerConfig{Port: 8080},
		Cache: CacheConfig{
			TTL:             "24h",
			FreshnessWindow: "24h",
			MinFreshRatio:   0.80,
		},
		History: HistoryConfig{Window: 30},
		Feeds: FeedsConfig{
			Enabled: true,
			MaxAge:  "168h",
			Feeds: []feed.Feed{
				{Name: "Dev.to", URL: "https://dev.to/feed"},
				{Name: "freeCodeCamp", URL: "https://www.freecodecamp.org/news/rss/"},
				{Name: "Smashing Magazine", URL: "https://www.smashingmagazine.com/feed/"},
			},
		},
		Alerts: AlertsConfig{SpikeThreshold: 15},
		Skills: skill.DefaultDefinitions(),
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// Catalog builds the skill catalog from the configured definitions.
func (c *Config) Catalog() (*skill.Catalog, error) {
	defs := c.Skills
	if len(defs) == 0 {
		defs = skill.DefaultDefinitions()
	}
	return skill.NewCatalog(defs)
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SKILLPULSE_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		cfg.Sources.GitHub.Token = v
	}
	if v := os.Getenv("YOUTUBE_API_KEY"); v != "" {
		cfg.Sources.YouTube.APIKey = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
