package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// Validate validates the configuration.
func Validate(cfg *Config) error {
	if err := validateServer(&cfg.Server); err != nil {
		return err
	}
	if err := validateAuth(&cfg.Auth); err != nil {
		return err
	}
	if err := validateHubs(&cfg.Hubs); err != nil {
		return err
	}
	if err := validatePublisher(&cfg.Publisher); err != nil {
		return err
	}
	return validateLogging(&cfg.Logging)
}

func validateServer(cfg *ServerConfig) error {
	// 0 asks the OS for a free port
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535, got %d", cfg.Port)
	}

	if cfg.Host == "" {
		return fmt.Errorf("server.host cannot be empty")
	}
	if cfg.Host != "localhost" && net.ParseIP(cfg.Host) == nil {
		// Allow hostnames but reject obvious garbage
		if strings.ContainsAny(cfg.Host, " /:") {
			return fmt.Errorf("server.host %q is not a valid host", cfg.Host)
		}
	}

	if cfg.ShutdownTimeoutSecs <= 0 {
		return fmt.Errorf("server.shutdown_timeout_secs must be positive, got %d", cfg.ShutdownTimeoutSecs)
	}

	for _, origin := range cfg.AllowedOrigins {
		if origin == "*" || strings.HasPrefix(origin, "*.") {
			continue
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("server.allowed_origins entry %q must be a scheme://host origin, \"*\" or \"*.domain\"", origin)
		}
	}
	return nil
}

func validateAuth(cfg *AuthConfig) error {
	if cfg.JWTKey != "" && len(cfg.JWTKey) < 32 {
		return fmt.Errorf("auth.jwt_key must be at least 32 bytes, got %d", len(cfg.JWTKey))
	}
	if cfg.Issuer == "" {
		return fmt.Errorf("auth.issuer cannot be empty")
	}
	if cfg.Audience == "" {
		return fmt.Errorf("auth.audience cannot be empty")
	}
	if cfg.TokenExpirySecs <= 0 {
		return fmt.Errorf("auth.token_expiry_secs must be positive, got %d", cfg.TokenExpirySecs)
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("auth.bcrypt_cost must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, cfg.BcryptCost)
	}
	if cfg.LoginRateLimit < 0 {
		return fmt.Errorf("auth.login_rate_limit cannot be negative, got %d", cfg.LoginRateLimit)
	}
	return ValidateUsers(cfg.Users)
}

// ValidateUsers checks a credential table.
func ValidateUsers(users []UserConfig) error {
	seen := make(map[string]bool, len(users))
	for i, u := range users {
		if u.Username == "" {
			return fmt.Errorf("auth.users[%d].username cannot be empty", i)
		}
		if seen[u.Username] {
			return fmt.Errorf("auth.users[%d].username %q is duplicated", i, u.Username)
		}
		seen[u.Username] = true

		if u.Password == "" && u.PasswordHash == "" {
			return fmt.Errorf("auth.users[%d] (%s) needs password or password_hash", i, u.Username)
		}
		if u.PasswordHash != "" {
			if _, err := bcrypt.Cost([]byte(u.PasswordHash)); err != nil {
				return fmt.Errorf("auth.users[%d].password_hash is not a bcrypt hash: %w", i, err)
			}
		}
	}
	return nil
}

func validateHubs(cfg *HubsConfig) error {
	if cfg.Chat.MaxMessageLength < 1 || cfg.Chat.MaxMessageLength > 10000 {
		return fmt.Errorf("hubs.chat.max_message_length must be between 1 and 10000, got %d", cfg.Chat.MaxMessageLength)
	}
	return nil
}

func validatePublisher(cfg *PublisherConfig) error {
	if cfg.IntervalMS < 10 {
		return fmt.Errorf("publisher.interval_ms must be at least 10, got %d", cfg.IntervalMS)
	}
	if cfg.MinPrice < 0 {
		return fmt.Errorf("publisher.min_price cannot be negative, got %d", cfg.MinPrice)
	}
	if cfg.MinPrice > cfg.MaxPrice {
		return fmt.Errorf("publisher.min_price (%d) cannot exceed publisher.max_price (%d)", cfg.MinPrice, cfg.MaxPrice)
	}
	return nil
}

func validateLogging(cfg *LoggingConfig) error {
	if _, err := zerolog.ParseLevel(cfg.Level); err != nil {
		return fmt.Errorf("logging.level %q is invalid: %w", cfg.Level, err)
	}
	switch cfg.Format {
	case "console", "json":
		return nil
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", cfg.Format)
	}
}
