package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"termbase/api/internal/store"
)

func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := opts.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := store.ApplyMigrations(ctx, s.DB(), s.Dialect(), store.MigrationSource(opts.Config.MigrationsDir)); err != nil {
				return WrapExitError(ExitFailure, "apply migrations", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", s.Dialect())
			return nil
		},
	}
}
