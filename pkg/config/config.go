// Package config loads kanjireview settings from defaults, an optional YAML
// file and KANJIREVIEW_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix marks the environment variables Load reads.
	EnvPrefix = "KANJIREVIEW_"

	maxConfigFileSize = 1024 * 1024 // 1MB

	// Defaults applied to settings left empty.
	DefaultDatabasePath     = "kanjireview.db"
	DefaultServerAddr       = "127.0.0.1:8080"
	DefaultLogMode          = "production"
	DefaultRefreshInterval  = 30 * time.Minute
	DefaultTokenExpiryHours = 24
)

// ErrMissingJWTSecret is returned by Validate when no signing secret is set.
var ErrMissingJWTSecret = errors.New("auth.jwt_secret is required")

// Config is the full application configuration.
type Config struct {
	Database     DatabaseConfig     `koanf:"database"`
	Server       ServerConfig       `koanf:"server"`
	Log          LogConfig          `koanf:"log"`
	Notification NotificationConfig `koanf:"notification"`
	Auth         AuthConfig         `koanf:"auth"`
}

// DatabaseConfig locates the SQLite file.
type DatabaseConfig struct {
	Path string `koanf:"path"`
}

// ServerConfig is the HTTP listener and its allowed CORS origins.
type ServerConfig struct {
	Addr        string   `koanf:"addr"`
	CORSOrigins []string `koanf:"cors_origins"`
}

// LogConfig selects the logger.
type LogConfig struct {
	// Mode is "production" (JSON) or "development" (console).
	Mode string `koanf:"mode"`
}

// NotificationConfig controls the review reminder.
type NotificationConfig struct {
	RefreshInterval time.Duration  `koanf:"refresh_interval"`
	Telegram        TelegramConfig `koanf:"telegram"`
}

// TelegramConfig identifies the bot and its single user. ChatID doubles as
// the only Telegram id allowed to log in.
type TelegramConfig struct {
	BotToken string `koanf:"bot_token"`
	ChatID   int64  `koanf:"chat_id"`
}

// AuthConfig signs and expires session tokens.
type AuthConfig struct {
	JWTSecret        string `koanf:"jwt_secret"`
	TokenExpiryHours int    `koanf:"token_expiry_hours"`
}

// Load reads configPath (skipped when empty) and then the environment.
//
// Environment variables drop the KANJIREVIEW_ prefix and split on the first
// underscore into section and field:
//
//	KANJIREVIEW_AUTH_JWT_SECRET -> auth.jwt_secret
//	KANJIREVIEW_SERVER_CORS_ORIGINS -> server.cors_origins
//	KANJIREVIEW_NOTIFICATION_TELEGRAM_BOT_TOKEN -> notification.telegram.bot_token
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := readConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func readConfigFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config path %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	section, field := parts[0], parts[1]

	// The only nested section.
	if section == "notification" && strings.HasPrefix(field, "telegram_") {
		return "notification.telegram." + strings.TrimPrefix(field, "telegram_")
	}
	return section + "." + field
}

func applyDefaults(cfg *Config) {
	if cfg.Database.Path == "" {
		cfg.Database.Path = DefaultDatabasePath
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServerAddr
	}
	cfg.Server.CORSOrigins = splitList(cfg.Server.CORSOrigins)
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"http://localhost:5173"}
	}
	if cfg.Log.Mode == "" {
		cfg.Log.Mode = DefaultLogMode
	}
	if cfg.Notification.RefreshInterval <= 0 {
		cfg.Notification.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.Auth.TokenExpiryHours <= 0 {
		cfg.Auth.TokenExpiryHours = DefaultTokenExpiryHours
	}
}

// splitList flattens comma-separated entries; env values arrive as one string.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks the settings the HTTP server cannot run without.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	if c.Notification.Telegram.ChatID == 0 {
		return errors.New("notification.telegram.chat_id is required")
	}
	return nil
}
