// Package main is the entry point for the streamavatar CLI.
// streamavatar runs the avatar animation controller headless, takes triggers
// from a server-sent event feed and streams frames to browser renderers.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/normanking/streamavatar/internal/config"
	"github.com/normanking/streamavatar/internal/logging"
)

var (
	version = "0.1.0"
	cfgPath string
	verbose bool
	log     *logging.Logger
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "streamavatar",
		Short: "Headless stream avatar driver",
		Long: `streamavatar animates a glyph-faced 3D avatar and streams its frames
to browser renderers over WebSocket.

Run the driver:        streamavatar serve
Inspect a gesture:     streamavatar gesture show nod
List emotes:           streamavatar emotes`,
		SilenceUsage: true,
	}

	// Global flags
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.streamavatar/config.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "streamavatar v%s\n", version)
		},
	})

	root.AddCommand(serveCmd())
	root.AddCommand(gestureCmd())
	root.AddCommand(emotesCmd())
	root.AddCommand(configCmd())

	return root
}

// ═══════════════════════════════════════════════════════════════════════════════
// SHARED SETUP
// ═══════════════════════════════════════════════════════════════════════════════

func loadConfig() (*config.Config, error) {
	cfg, _, err := config.Load(cfgPath)
	return cfg, err
}

// initLogging builds the process logger from the logging section.
func initLogging(cfg config.LoggingConfig, console bool) error {
	lc := logging.DefaultConfig()
	if cfg.Dir != "" {
		lc.Dir = cfg.Dir
	}
	lc.Level = logging.LogLevel(cfg.Level)
	if verbose {
		lc.Level = logging.LevelDebug
	}
	lc.Console = console && cfg.Console
	lc.MaxSizeMB = cfg.MaxSizeMB
	lc.MaxBackups = cfg.MaxBackups

	l, err := logging.New(lc)
	if err != nil {
		return err
	}
	log = l
	return nil
}

func getConfigPath() string {
	if cfgPath != "" {
		return cfgPath
	}
	dir, err := config.GetConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "config.yaml")
}

// ═══════════════════════════════════════════════════════════════════════════════
// CONFIG COMMAND
// ═══════════════════════════════════════════════════════════════════════════════

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "streamavatar configuration:")
			fmt.Fprintln(out, "───────────────────────────")
			fmt.Fprintf(out, "Gesture Source:  %s\n", cfg.Gesture.Source)
			fmt.Fprintf(out, "Feed:            %s (enabled: %t)\n", cfg.Feed.URL, cfg.Feed.Enabled)
			fmt.Fprintf(out, "Server Addr:     %s\n", cfg.Server.Addr)
			fmt.Fprintf(out, "Render FPS:      %d\n", cfg.Render.FPS)
			fmt.Fprintf(out, "Broadcast FPS:   %g\n", cfg.Server.BroadcastFPS)
			fmt.Fprintf(out, "Log Level:       %s\n", cfg.Logging.Level)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := getConfigPath()
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := config.Save(config.DefaultConfig(), path); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), getConfigPath())
		},
	})

	return cmd
}
