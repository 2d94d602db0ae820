// Package cmd contains the CLI commands for stockchat.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Version info (set from main)
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"

	// Global flags
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "stockchat",
	Short: "Live chat and stock price feed over WebSocket",
	Long: `stockchat runs a small real-time service with two channels:

  /livechat      authenticated users exchange chat messages
  /stocklisting  every client receives a periodic stock price tick

Clients log in at /api/auth/login and present the returned token as the
access_token query parameter when opening a WebSocket.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets version information from the main package.
func SetVersionInfo(v, bt, gc string) {
	version = v
	buildTime = bt
	gitCommit = gc
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.stockchat/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(authCmd)
}

// versionCmd displays version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "stockchat %s\n", version)
		fmt.Fprintf(out, "  Build time: %s\n", buildTime)
		fmt.Fprintf(out, "  Git commit: %s\n", gitCommit)
	},
}
