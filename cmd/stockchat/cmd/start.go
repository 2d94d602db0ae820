package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/brianly1003/stockchat/internal/app"
	"github.com/brianly1003/stockchat/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	host string
	port int
)

// startCmd represents the start command.
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the stockchat server",
	Long: `Start the HTTP server, both WebSocket hubs and the price publisher.

The server runs until it receives SIGINT or SIGTERM, then stops the
publisher, closes every connection and exits.

Example:
  stockchat start
  stockchat start --port 8080
  stockchat start --host 0.0.0.0 --config ./config.yaml`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&host, "host", "", "listen host (default: 127.0.0.1)")
	startCmd.Flags().IntVar(&port, "port", 0, "listen port (default: 5000)")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override config with flags
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}

	// Re-validate after overrides
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogging(cfg)

	log.Info().
		Str("version", version).
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("config", cfg.File).
		Msg("starting stockchat")

	application, err := app.New(cfg, version)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("application error: %w", err)
	}

	log.Info().Msg("stockchat stopped")
	return nil
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Logging.Format == "console" || verbose {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}
