// Package cli implements termbasectl, the operator tool for migrating the
// database, minting tokens and inspecting or repairing sequenced lists.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"termbase/api/internal/config"
	"termbase/api/internal/scopelock"
	"termbase/api/internal/sequencing"
	"termbase/api/internal/store"
)

// RootOptions holds global flags for all commands. Config starts from the
// environment and is overridden by flags.
type RootOptions struct {
	Config  config.Config
	Format  string
	Verbose bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command with cfg as flag defaults.
func NewRootCommand(cfg config.Config) *cobra.Command {
	opts := &RootOptions{Config: cfg}

	cmd := &cobra.Command{
		Use:   "termbasectl",
		Short: "Operate a termbase database",
		Long:  "Apply migrations, mint access tokens, and inspect, reorder or repair sequenced lists.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.Config.DatabaseDriver, "driver", cfg.DatabaseDriver, "database driver (postgres|sqlite)")
	flags.StringVar(&opts.Config.DatabaseURL, "database-url", cfg.DatabaseURL, "postgres connection URL")
	flags.StringVar(&opts.Config.SQLitePath, "sqlite-path", cfg.SQLitePath, "sqlite database file")
	flags.StringVar(&opts.Config.MigrationsDir, "migrations-dir", cfg.MigrationsDir, "read migrations from this directory instead of the embedded set")
	flags.StringVar(&opts.Config.RedisURL, "redis-url", cfg.RedisURL, "redis URL for reorder locks shared with the API")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewReorderCommand(opts))
	cmd.AddCommand(NewRepairCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	cfg := o.Config
	cfg.LogFormat = "text"
	if o.Verbose {
		cfg.LogLevel = "debug"
	} else {
		cfg.LogLevel = "warn"
	}
	return cfg.NewLogger(w)
}

// openStore connects to the configured database; callers close the store.
func (o *RootOptions) openStore(ctx context.Context) (*store.Store, error) {
	db, dialect, err := store.Connect(ctx, strings.ToLower(o.Config.DatabaseDriver), o.Config.DatabaseURL, o.Config.SQLitePath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open database", err)
	}
	return store.New(db, dialect), nil
}

func (o *RootOptions) coordinator(s *store.Store, kindName string, logger *slog.Logger) (*sequencing.Coordinator, store.Kind, error) {
	kind, err := store.ParseKind(kindName)
	if err != nil {
		return nil, "", WrapExitError(ExitCommandError, "invalid --kind", err)
	}
	seq, err := s.Sequences(kind)
	if err != nil {
		return nil, "", err
	}
	return sequencing.NewCoordinator(seq, sequencing.WithLogger(logger)), kind, nil
}

// locker returns the shared Redis lock when configured so the CLI and the
// API refuse each other's concurrent reorders.
func (o *RootOptions) locker() (scopelock.Locker, func(), error) {
	if strings.TrimSpace(o.Config.RedisURL) == "" {
		return scopelock.NewMemory(), func() {}, nil
	}
	redisLock, err := scopelock.NewRedis(o.Config.RedisURL, o.Config.LockTTL)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "connect to redis", err)
	}
	return redisLock, func() { _ = redisLock.Close() }, nil
}
