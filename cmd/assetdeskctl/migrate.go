package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/assetdesk/assetdesk/internal/platform/db"
)

func newMigrateCmd() *cobra.Command {
	var dsn string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.PersistentFlags().StringVar(&dsn, "dsn", envOr("PG_DSN", ""), "Postgres DSN (defaults to $PG_DSN)")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dsn == "" {
				return fmt.Errorf("dsn required: pass --dsn or set PG_DSN")
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
			return db.Migrate(dsn, logger)
		},
	})
	return cmd
}
