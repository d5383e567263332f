package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/waypoint/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "waypoint",
	Short: "Waypoint inspects flow definitions and their persisted snapshots",
	Long: `Waypoint validates step-flow definitions, manages the snapshots flows
leave in a store and can serve both over HTTP.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("store", "file", "Snapshot backend: file, sqlite, redis or nats")
	rootCmd.PersistentFlags().String("dir", "", "Snapshot directory of the file store (default .waypoint/snapshots)")
	rootCmd.PersistentFlags().String("dsn", "", "Backend address: sqlite path, redis host:port or nats url")
	rootCmd.PersistentFlags().String("format", "json", "Snapshot encoding: json or yaml")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text or json")
}

// loggerFor builds the logger configured by the persistent flags.
func loggerFor(cmd *cobra.Command) (*slog.Logger, error) {
	rawLevel, _ := cmd.Flags().GetString("log-level")
	rawFormat, _ := cmd.Flags().GetString("log-format")

	level, err := logging.ParseLevel(rawLevel)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(rawFormat)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Options{Level: level, Format: format, Output: cmd.ErrOrStderr()}), nil
}
