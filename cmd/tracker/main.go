package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tracker/internal/auth"
	"tracker/internal/config"
	"tracker/internal/storage/sqlite"
)

var (
	configPath string
	dbPath     string
	listenAddr string
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "tracker",
		Short:         "Shared task boards with role-based access and a full audit trail",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	root.PersistentFlags().StringVar(&dbPath, "db", "", "Path to sqlite database file (overrides DATABASE_PATH)")
	root.PersistentFlags().StringVar(&listenAddr, "addr", "", "HTTP listen address (overrides TRACKER_ADDR)")

	root.AddCommand(newServeCommand())
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newUserCommand())
	return root
}

// loadConfig reads the configuration and applies command line overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if listenAddr != "" {
		cfg.Addr = listenAddr
	}
	return cfg, nil
}

// newLogger builds the process logger and installs it globally.
func newLogger(cfg config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if cfg.LogFormat == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// openStore opens the database with the configured gate timeout.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...sqlite.Option) (*sqlite.Store, error) {
	opts = append([]sqlite.Option{
		sqlite.WithLogger(logger),
		sqlite.WithMutexTimeout(cfg.MutexTimeout),
	}, opts...)
	store, err := sqlite.Open(ctx, cfg.DatabasePath, opts...)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.DatabasePath, err)
	}
	return store, nil
}

func newUsers(store *sqlite.Store, cfg config.Config) *auth.Service {
	return auth.NewService(store, auth.NewScryptHasher(cfg.PasswordSalt), cfg.AllowNewAccounts)
}
