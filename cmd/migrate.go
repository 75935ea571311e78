package cmd

import (
	"io"

	"github.com/fatih/color"
	"github.com/nonsonwune/censo_db/config"
	"github.com/nonsonwune/censo_db/migrations"
	"github.com/spf13/cobra"
)

func newMigrateCommand(cfg *config.Config, stdout, stderr io.Writer) *cobra.Command {
	var drop bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the tables and indexes.",
		Long: `migrate creates every missing table and index. With --drop all
tables are dropped first, which deletes all loaded data.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, logger, err := openDB(ctx, cfg, stderr)
			if err != nil {
				return err
			}
			defer db.Close()

			if drop {
				logger.Warn("dropping all tables")
				if err := migrations.DropSchema(ctx, db); err != nil {
					return err
				}
			}
			if err := migrations.InitSchema(ctx, db); err != nil {
				return err
			}
			if err := migrations.VerifySchema(ctx, db); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintln(stdout, "Schema is up to date.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&drop, "drop", false, "Drop all tables before creating them.")
	return cmd
}
