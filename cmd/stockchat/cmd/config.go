package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/brianly1003/stockchat/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	configInitLocal bool
	configInitForce bool
)

// configCmd displays or manages configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Display and manage configuration",
	Long: `Display and manage stockchat configuration.

Without subcommands, shows the current effective configuration.

Examples:
  stockchat config              # Show current config
  stockchat config init         # Create config file with defaults
  stockchat config path         # Show config file location`,
	RunE: runConfigShow,
}

// configShowCmd prints the effective configuration.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration with secrets masked",
	RunE:  runConfigShow,
}

// configInitCmd creates a config file with defaults.
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file with default settings",
	Long: `Create a config file with default settings and documentation.

By default, creates ~/.stockchat/config.yaml.
Use --local to create ./config.yaml in the current directory.

Examples:
  stockchat config init          # Create ~/.stockchat/config.yaml
  stockchat config init --local  # Create ./config.yaml
  stockchat config init --force  # Overwrite existing file`,
	RunE: runConfigInit,
}

// configPathCmd shows config file location.
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file location",
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)

	configInitCmd.Flags().BoolVar(&configInitLocal, "local", false, "create config in current directory instead of ~/.stockchat/")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite existing config file")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	out := cmd.OutOrStdout()
	if cfg.File != "" {
		fmt.Fprintf(out, "# loaded from %s\n", cfg.File)
	} else {
		fmt.Fprintln(out, "# no config file found, showing defaults")
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(cfg.Redacted()); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	var configPath string

	if configInitLocal {
		configPath = "config.yaml"
	} else {
		configDir, err := config.EnsureConfigDir()
		if err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		configPath = filepath.Join(configDir, "config.yaml")
	}

	if _, err := os.Stat(configPath); err == nil && !configInitForce {
		return fmt.Errorf("config file already exists: %s\nUse --force to overwrite", configPath)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfigTemplate), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", configPath)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	configDir, err := config.GetConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config dir: %w", err)
	}

	locations := []string{
		"./config.yaml",
		filepath.Join(configDir, "config.yaml"),
		"/etc/stockchat/config.yaml",
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Config search paths (in order):")
	for i, loc := range locations {
		exists := "not found"
		if _, err := os.Stat(loc); err == nil {
			exists = "exists"
		}
		fmt.Fprintf(out, "  %d. %s (%s)\n", i+1, loc, exists)
	}
	return nil
}

const defaultConfigTemplate = `# stockchat configuration
# Every key can be overridden by STOCKCHAT_<SECTION>_<KEY>, e.g. STOCKCHAT_SERVER_PORT.

server:
  host: "127.0.0.1"
  port: 5000
  shutdown_timeout_secs: 10
  # Origins allowed to open WebSockets and call the API from a browser.
  # Empty allows every origin. Supports "*" and "*.example.com".
  allowed_origins: []
  # Use X-Forwarded-For / X-Real-IP for login rate limiting.
  trust_proxy: false

auth:
  # HMAC key for tokens, at least 32 bytes. Empty uses a random key per run.
  jwt_key: ""
  issuer: "StockChatLive"
  audience: "StockChatLiveUsers"
  token_expiry_secs: 3600
  # Login attempts per minute per client IP. 0 disables the limit.
  login_rate_limit: 10
  bcrypt_cost: 10
  # Plaintext passwords are hashed at load. Prefer password_hash,
  # generated with: stockchat auth hash-password
  users:
    - username: admin
      password: admin123
    - username: user1
      password: password1
    - username: trader
      password: trade123

hubs:
  chat:
    max_message_length: 500
  prices:
    require_auth: true

publisher:
  interval_ms: 1000
  label: "PostStocks"
  min_price: 101
  max_price: 112

logging:
  level: info     # trace, debug, info, warn, error
  format: console # console or json
`
