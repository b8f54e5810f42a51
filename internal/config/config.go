// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Reddit  RedditConfig  `mapstructure:"reddit"`
	Model   ModelConfig   `mapstructure:"model"`
	DB      DBConfig      `mapstructure:"db"`
	Scraper ScraperConfig `mapstructure:"scraper"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// RedditConfig holds credentials and client behavior for the discussion API.
type RedditConfig struct {
	ClientID       string `mapstructure:"client_id"`
	ClientSecret   string `mapstructure:"client_secret"`
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// ModelConfig configures the language-model service used for extraction.
type ModelConfig struct {
	APIKey         string `mapstructure:"api_key"`
	Name           string `mapstructure:"name"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// DBConfig controls access to the local sqlite database.
type DBConfig struct {
	Path string `mapstructure:"path"`
}

// ScraperConfig governs which communities are scraped and how much.
type ScraperConfig struct {
	Subreddits   []string `mapstructure:"subreddits"`
	DefaultLimit int      `mapstructure:"default_limit"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TOMT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	// Credentials default to empty so Unmarshal picks up the TOMT_* env
	// variables; viper only walks keys it already knows about.
	v.SetDefault("reddit.client_id", "")
	v.SetDefault("reddit.client_secret", "")
	v.SetDefault("model.api_key", "")
	v.SetDefault("reddit.user_agent", "earworm-tomt/0.1 (song discovery bot)")
	v.SetDefault("reddit.timeout_seconds", 15)
	v.SetDefault("model.name", "gemini-2.5-flash")
	v.SetDefault("model.timeout_seconds", 60)
	v.SetDefault("db.path", "tomt.db")
	v.SetDefault("scraper.subreddits", []string{
		"tipofmytongue",
		"WhatsThisSong",
		"NameThatSong",
	})
	v.SetDefault("scraper.default_limit", 100)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Reddit.TimeoutSeconds <= 0 {
		return fmt.Errorf("reddit.timeout_seconds must be > 0")
	}
	if c.Model.TimeoutSeconds <= 0 {
		return fmt.Errorf("model.timeout_seconds must be > 0")
	}
	if c.DB.Path == "" {
		return fmt.Errorf("db.path must be set")
	}
	if len(c.Scraper.Subreddits) == 0 {
		return fmt.Errorf("scraper.subreddits must not be empty")
	}
	if c.Scraper.DefaultLimit <= 0 {
		return fmt.Errorf("scraper.default_limit must be > 0")
	}
	return nil
}

// RedditTimeout converts the configured scraper timeout into a duration.
func (c Config) RedditTimeout() time.Duration {
	return time.Duration(c.Reddit.TimeoutSeconds) * time.Second
}

// ModelTimeout converts the configured model call timeout into a duration.
func (c Config) ModelTimeout() time.Duration {
	return time.Duration(c.Model.TimeoutSeconds) * time.Second
}
