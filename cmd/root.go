// Package cmd holds the censo command line: the HTTP server, schema
// migrations and the ingestion runs.
package cmd

import (
	"context"
	"io"
	"log/slog"

	"github.com/nonsonwune/censo_db/config"
	"github.com/nonsonwune/censo_db/database"
	"github.com/nonsonwune/censo_db/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	cfg := &config.Config{}
	rc := &cobra.Command{
		Use:   "censo",
		Short: "Censo Escolar ingestion and instituicoes API.",
		Long: `censo loads the yearly Censo Escolar microdata and the IBGE
localidades reference tables into a relational store, and serves the
instituicoes resource over HTTP.

Every flag can also be set from the environment: --db-host is read from
DB_HOST, --batch-size from BATCH_SIZE, and so on. A .env file in the
working directory is loaded first when present.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			envFile, err := cmd.Flags().GetString("env-file")
			if err != nil {
				return err
			}
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			if err := config.Resolve(viper.New(), cmd.Flags()); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return schema.Validate()
		},
	}
	rc.PersistentFlags().String("env-file", ".env", "Optional dotenv file read before the environment.")
	cfg.Flags(rc.PersistentFlags())

	rc.AddCommand(newServeCommand(cfg, stdout, stderr))
	rc.AddCommand(newMigrateCommand(cfg, stdout, stderr))
	rc.AddCommand(newIngestCommand(cfg, stdout, stderr))

	rc.SetIn(stdin)
	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

// openDB builds the logger and opens the configured store.
func openDB(ctx context.Context, cfg *config.Config, stderr io.Writer) (*database.DB, *slog.Logger, error) {
	logger, err := cfg.Logger(stderr)
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(ctx, cfg.Database())
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("database opened", "driver", cfg.DBDriver)
	return db, logger, nil
}
