// Package config handles configuration management for stockchat.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// EnvPrefix is the prefix of environment overrides, e.g. STOCKCHAT_SERVER_PORT.
const EnvPrefix = "STOCKCHAT"

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Auth      AuthConfig      `mapstructure:"auth" yaml:"auth"`
	Hubs      HubsConfig      `mapstructure:"hubs" yaml:"hubs"`
	Publisher PublisherConfig `mapstructure:"publisher" yaml:"publisher"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`

	// File is the config file that was read, empty when running on defaults.
	File string `mapstructure:"-" yaml:"-"`
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host                string   `mapstructure:"host" yaml:"host"`
	Port                int      `mapstructure:"port" yaml:"port"`
	ShutdownTimeoutSecs int      `mapstructure:"shutdown_timeout_secs" yaml:"shutdown_timeout_secs"`
	AllowedOrigins      []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	TrustProxy          bool     `mapstructure:"trust_proxy" yaml:"trust_proxy"`
}

// AuthConfig holds token and credential configuration.
type AuthConfig struct {
	// JWTKey signs tokens. Empty means a random per-process key.
	JWTKey          string       `mapstructure:"jwt_key" yaml:"jwt_key"`
	Issuer          string       `mapstructure:"issuer" yaml:"issuer"`
	Audience        string       `mapstructure:"audience" yaml:"audience"`
	TokenExpirySecs int          `mapstructure:"token_expiry_secs" yaml:"token_expiry_secs"`
	Users           []UserConfig `mapstructure:"users" yaml:"users"`
	BcryptCost      int          `mapstructure:"bcrypt_cost" yaml:"bcrypt_cost"`
	// LoginRateLimit is login attempts per minute per client IP; 0 disables.
	LoginRateLimit int `mapstructure:"login_rate_limit" yaml:"login_rate_limit"`
}

// UserConfig is one credential entry. Password is hashed at load and cleared.
type UserConfig struct {
	Username     string `mapstructure:"username" yaml:"username"`
	Password     string `mapstructure:"password" yaml:"password,omitempty"`
	PasswordHash string `mapstructure:"password_hash" yaml:"password_hash"`
}

// HubsConfig holds per-channel configuration.
type HubsConfig struct {
	Chat   ChatHubConfig   `mapstructure:"chat" yaml:"chat"`
	Prices PricesHubConfig `mapstructure:"prices" yaml:"prices"`
}

// ChatHubConfig configures the chat channel.
type ChatHubConfig struct {
	MaxMessageLength int `mapstructure:"max_message_length" yaml:"max_message_length"`
}

// PricesHubConfig configures the prices channel.
type PricesHubConfig struct {
	RequireAuth bool `mapstructure:"require_auth" yaml:"require_auth"`
}

// PublisherConfig configures the price feed.
type PublisherConfig struct {
	IntervalMS int    `mapstructure:"interval_ms" yaml:"interval_ms"`
	Label      string `mapstructure:"label" yaml:"label"`
	MinPrice   int    `mapstructure:"min_price" yaml:"min_price"`
	MaxPrice   int    `mapstructure:"max_price" yaml:"max_price"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Load loads configuration from files and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.stockchat")
		v.AddConfigPath("/etc/stockchat")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	if used := v.ConfigFileUsed(); used != "" {
		if abs, err := filepath.Abs(used); err == nil {
			used = abs
		}
		cfg.File = used
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	if err := postProcess(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.shutdown_timeout_secs", 10)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.trust_proxy", false)

	// Auth defaults; demo users match the bundled chat client
	v.SetDefault("auth.jwt_key", "")
	v.SetDefault("auth.issuer", "StockChatLive")
	v.SetDefault("auth.audience", "StockChatLiveUsers")
	v.SetDefault("auth.token_expiry_secs", 3600)
	v.SetDefault("auth.bcrypt_cost", bcrypt.DefaultCost)
	v.SetDefault("auth.login_rate_limit", 10)
	v.SetDefault("auth.users", []map[string]interface{}{
		{"username": "admin", "password": "admin123"},
		{"username": "user1", "password": "password1"},
		{"username": "trader", "password": "trade123"},
	})

	// Hub defaults
	v.SetDefault("hubs.chat.max_message_length", 500)
	v.SetDefault("hubs.prices.require_auth", true)

	// Publisher defaults
	v.SetDefault("publisher.interval_ms", 1000)
	v.SetDefault("publisher.label", "PostStocks")
	v.SetDefault("publisher.min_price", 101)
	v.SetDefault("publisher.max_price", 112)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// postProcess hashes plaintext passwords so they are not kept in memory.
func postProcess(cfg *Config) error {
	for i := range cfg.Auth.Users {
		u := &cfg.Auth.Users[i]
		if u.PasswordHash != "" {
			u.Password = ""
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), cfg.Auth.BcryptCost)
		if err != nil {
			return fmt.Errorf("failed to hash password for user %q: %w", u.Username, err)
		}
		u.PasswordHash = string(hash)
		u.Password = ""
	}
	return nil
}

// Redacted returns a copy with secrets masked, for display.
func (c Config) Redacted() Config {
	out := c
	if out.Auth.JWTKey != "" {
		out.Auth.JWTKey = "********"
	}
	out.Auth.Users = make([]UserConfig, len(c.Auth.Users))
	for i, u := range c.Auth.Users {
		out.Auth.Users[i] = UserConfig{Username: u.Username, PasswordHash: "********"}
	}
	return out
}

// GetConfigDir returns the user config directory for stockchat.
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".stockchat"), nil
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}
