// Package cli provides the command-line interface for LeapORM tooling:
// table inspection and raw queries against configured connections.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaporm/internal/config"
	"github.com/leapstack-labs/leaporm/pkg/driver"

	// Register bundled drivers.
	_ "github.com/leapstack-labs/leaporm/pkg/drivers/postgres"
	_ "github.com/leapstack-labs/leaporm/pkg/drivers/sqlite"
)

var (
	cfgFile  string
	connFlag string
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "leaporm",
		Short: "LeapORM - query execution and relationship hydration engine",
		Long: `LeapORM turns declarative, storage-agnostic query descriptions into
concrete model instances through pluggable storage drivers.

This tool operates on the connections declared in leaporm.yaml: inspect
table structure and run ad hoc queries.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default leaporm.yaml in the working directory)")
	rootCmd.PersistentFlags().StringVar(&connFlag, "connection", "", "named connection to use (default from config)")

	rootCmd.AddCommand(newInspectCmd())
	rootCmd.AddCommand(newQueryCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openManager loads the configuration and opens every configured
// connection. The caller owns the returned manager and must close it.
func openManager(ctx context.Context) (*driver.Manager, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if len(cfg.Connections) == 0 {
		return nil, nil, fmt.Errorf("no connections configured; add a connections section to %s", config.ConfigFileName)
	}

	logger := newLogger(cfg.LogLevel)
	m := driver.NewManager(logger)
	for name, c := range cfg.Connections {
		if err := m.Open(ctx, name, c); err != nil {
			_ = m.Close()
			return nil, nil, err
		}
	}
	if cfg.Default != "" {
		m.SetDefault(cfg.Default)
	}
	return m, logger, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
