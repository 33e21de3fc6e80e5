package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ironsheep/wall-texture-mcp/internal/config"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	configPath string

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "wall-texture-mcp",
	Short: "MCP server that textures the walls of room photographs",
	Long: `wall-texture-mcp detects walls in a room photograph and composites a
texture onto them. Run "serve" to speak MCP over stdin/stdout, or use the
apply, detect and estimate commands directly.

Environment variables:
  WALL_MCP_LOG_LEVEL=debug    Override the configured log level`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	// Without a subcommand the binary behaves as an MCP server, which is how
	// MCP clients launch it.
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.AddCommand(versionCmd, serveCmd, applyCmd, detectCmd, estimateCmd, configCmd)
}

// setup loads configuration and configures logging to stderr (stdout is for
// MCP protocol).
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if configPath == "" {
		cfg = config.Default()
	} else if cfg, err = config.Load(configPath); err != nil {
		return err
	}
	cfg.ApplyEnv()

	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Debug("starting", "version", Version, "built", BuildTime, "commit", GitCommit)
	return nil
}

var versionCmd = &cobra.Command{
	Use:               "version",
	Short:             "Print version information",
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "wall-texture-mcp %s\n", Version)
		fmt.Fprintf(out, "  Build time: %s\n", BuildTime)
		fmt.Fprintf(out, "  Git commit: %s\n", GitCommit)
	},
}

func main() {
	rootCmd.Version = Version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
