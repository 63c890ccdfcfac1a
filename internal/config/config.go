// /internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the runtime configuration. Values come from an optional TOML
// file first, then from the environment (and .env), which wins.
type Config struct {
	DiscordToken          string   `toml:"discord_token" env:"DISCORD_TOKEN"`
	DiscordGuildBlacklist []string `toml:"discord_guild_blacklist" env:"DISCORD_GUILD_BLACKLIST" envSeparator:","`
	InitSlashCommands     bool     `toml:"init_slash_commands" env:"INIT_SLASH_COMMANDS"`
	YouTubeAPIKey         string   `toml:"youtube_api_key" env:"YOUTUBE_API_KEY"`
	ProxyURL              string   `toml:"proxy_url" env:"PROXY_URL"`
	StoragePath           string   `toml:"storage_path" env:"STORAGE_PATH"`
	HealthAddr            string   `toml:"health_addr" env:"HEALTH_ADDR"`
	LogLevel              string   `toml:"log_level" env:"LOG_LEVEL"`
	LogFile               string   `toml:"log_file" env:"LOG_FILE"`
	LogConsole            bool     `toml:"log_console" env:"LOG_CONSOLE"`
	DefaultVolume         int      `toml:"default_volume" env:"DEFAULT_VOLUME"`
	// ResolveTimeout bounds each provider attempt, not the whole lookup.
	ResolveTimeout    time.Duration `toml:"resolve_timeout" env:"RESOLVE_TIMEOUT"`
	VoiceReadyTimeout time.Duration `toml:"voice_ready_timeout" env:"VOICE_READY_TIMEOUT"`
}

var ErrMissingToken = errors.New("DISCORD_TOKEN is not set")

// Defaults returns the configuration used when nothing overrides a field.
func Defaults() Config {
	return Config{
		InitSlashCommands: true,
		StoragePath:       "datastore.json",
		HealthAddr:        ":3000",
		LogLevel:          "info",
		LogConsole:        true,
		DefaultVolume:     50,
		ResolveTimeout:    15 * time.Second,
		VoiceReadyTimeout: 30 * time.Second,
	}
}

// Load reads .env (if present), the TOML file named by CONFIG_FILE (if any)
// and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFrom(os.Getenv("CONFIG_FILE"))
}

// LoadFrom is Load without the .env step; an empty path skips the file.
func LoadFrom(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and clamps ranges.
func (c *Config) Validate() error {
	if c.DiscordToken == "" {
		return ErrMissingToken
	}
	if c.DefaultVolume < 0 || c.DefaultVolume > 100 {
		return fmt.Errorf("DEFAULT_VOLUME must be within 0..100, got %d", c.DefaultVolume)
	}
	if c.ResolveTimeout <= 0 {
		c.ResolveTimeout = 15 * time.Second
	}
	if c.VoiceReadyTimeout <= 0 {
		c.VoiceReadyTimeout = 30 * time.Second
	}
	return nil
}
