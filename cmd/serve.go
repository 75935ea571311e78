package cmd

import (
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/nonsonwune/censo_db/api"
	"github.com/nonsonwune/censo_db/config"
	"github.com/nonsonwune/censo_db/errors"
	"github.com/nonsonwune/censo_db/migrations"
	"github.com/nonsonwune/censo_db/store"
	"github.com/spf13/cobra"
)

func newServeCommand(cfg *config.Config, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the instituicoes REST API.",
		Long: `serve creates any missing table and answers the /instituicoes
routes, /healthz and /metrics on --http-addr until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			db, logger, err := openDB(ctx, cfg, stderr)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := migrations.InitSchema(ctx, db); err != nil {
				return err
			}

			ln, err := net.Listen("tcp", cfg.HTTPAddr)
			if err != nil {
				return errors.Wrapf(err, "listening on %s", cfg.HTTPAddr)
			}
			h, err := api.NewHandler(
				api.OptHandlerStore(store.NewInstituicoes(db)),
				api.OptHandlerLogger(logger),
				api.OptHandlerAllowedOrigins(cfg.CORSOrigins),
				api.OptHandlerListener(ln),
			)
			if err != nil {
				ln.Close()
				return err
			}

			errc := make(chan error, 1)
			go func() { errc <- h.Serve() }()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
				logger.Info("shutting down")
				return h.Close()
			}
		},
	}
}
