package cli

import (
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"clevertap-sync/internal/migrations"
	"clevertap-sync/pkg/utils"
)

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply database migrations",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if dsn == "" {
				dsn = os.Getenv("DATABASE_URL")
			}
			if dsn == "" {
				return NewExitError(ExitCommandError, "--dsn or DATABASE_URL is required")
			}
			ctx := cmd.Context()
			db, err := utils.OpenPostgres(ctx, "pgx", dsn, utils.PostgresPoolConfig{})
			if err != nil {
				return WrapExitError(ExitCommandError, "connect", err)
			}
			defer db.Close()

			if err := migrations.Up(ctx, db); err != nil {
				return WrapExitError(ExitFailure, "migrate", err)
			}
			v, err := migrations.Version(ctx, db)
			if err != nil {
				return WrapExitError(ExitFailure, "migrate", err)
			}
			if f.json() {
				return f.writeJSON(map[string]int64{"version": v})
			}
			f.printf("schema at version %d\n", v)
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "Postgres DSN (default $DATABASE_URL)")
	return cmd
}
