package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/nonsonwune/censo_db/config"
	"github.com/nonsonwune/censo_db/errors"
	"github.com/nonsonwune/censo_db/importer"
	"github.com/nonsonwune/censo_db/migrations"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newIngestCommand(cfg *config.Config, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load every source listed in the sources manifest.",
		Long: `ingest runs one job per census CSV file and one per IBGE
localidades collection. The sources come from --sources-file, a YAML
manifest; without one the 2023 and 2024 microdata files in the working
directory and all four collections are loaded.

A failing job does not stop the others. The command exits non-zero when
any job failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m := importer.DefaultManifest()
			if cfg.SourcesFile != "" {
				var err error
				if m, err = importer.LoadManifest(cfg.SourcesFile); err != nil {
					return err
				}
			}
			return runIngest(cmd.Context(), cfg, stdout, stderr, m)
		},
	}
	cmd.AddCommand(newIngestCensusCommand(cfg, stdout, stderr))
	cmd.AddCommand(newIngestLocalidadesCommand(cfg, stdout, stderr))
	return cmd
}

func newIngestCensusCommand(cfg *config.Config, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "census <file>...",
		Short: "Append yearly census CSV files to the instituicoes table.",
		Long: `census loads each file into instituicoes, stamping its rows with
the four-digit year found in the file name. --duplicate-year-policy
decides what happens to a year that is already loaded.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), cfg, stdout, stderr, importer.Manifest{Census: args})
		},
	}
}

func newIngestLocalidadesCommand(cfg *config.Config, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "localidades [collection]...",
		Short: "Replace the IBGE reference tables.",
		Long: `localidades downloads the named collections (estados, municipios,
mesorregioes, microrregioes; table names work too) and replaces their
tables. Without arguments all four are loaded.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m := importer.Manifest{References: args}
			if len(args) == 0 {
				m.References = importer.ReferenceNames()
			}
			if err := m.Validate(); err != nil {
				return err
			}
			return runIngest(cmd.Context(), cfg, stdout, stderr, m)
		},
	}
}

// runIngest runs the jobs of m and prints their summary.
func runIngest(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer, m importer.Manifest) error {
	db, logger, err := openDB(ctx, cfg, stderr)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.InitSchema(ctx, db); err != nil {
		return err
	}

	jobs, err := buildJobs(cfg, m, importer.NewLoader(db, cfg.BatchSize, logger), logger)
	if err != nil {
		return err
	}

	summary := importer.NewOrchestrator(cfg.IngestParallelism, logger).Run(ctx, jobs)
	renderSummary(stdout, summary)
	if n := summary.Count(importer.StatusFailed); n > 0 {
		return errors.Errorf("%d of %d ingestion jobs failed", n, len(summary.Results))
	}
	return nil
}

// buildJobs turns a manifest into jobs: reference tables first, then the
// census files in manifest order.
func buildJobs(cfg *config.Config, m importer.Manifest, loader *importer.Loader, logger *slog.Logger) ([]importer.Job, error) {
	policy, err := importer.ParseDuplicatePolicy(cfg.DuplicateYearPolicy)
	if err != nil {
		return nil, err
	}

	var jobs []importer.Job
	if len(m.References) > 0 {
		client, err := importer.NewIBGEClient(cfg.IBGEOptions(logger))
		if err != nil {
			return nil, err
		}
		for _, name := range m.References {
			ref, err := importer.LookupReference(name)
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, &importer.ReferenceJob{
				Endpoint: ref.Endpoint,
				Table:    ref.Table,
				Fetcher:  client,
				Loader:   loader,
			})
		}
	}

	opts := m.CSVOptions(cfg.CSVOptions())
	for _, path := range m.Census {
		jobs = append(jobs, &importer.CensusJob{
			Path:    path,
			Options: opts,
			Policy:  policy,
			Loader:  loader,
			Logger:  logger,
		})
	}
	return jobs, nil
}

var statusColors = map[importer.Status]*color.Color{
	importer.StatusSuccess: color.New(color.FgGreen),
	importer.StatusSkipped: color.New(color.FgYellow),
	importer.StatusFailed:  color.New(color.FgRed, color.Bold),
}

// renderSummary prints one table row per job followed by the totals.
func renderSummary(w io.Writer, s importer.Summary) {
	color.New(color.FgCyan).Fprintf(w, "\nIngestion run %s\n", s.RunID)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Job", "Status", "Rows", "Duration", "Detail"})
	table.SetAutoWrapText(false)
	for _, r := range s.Results {
		table.Append([]string{
			r.Job,
			statusColors[r.Status].Sprint(string(r.Status)),
			strconv.Itoa(r.Rows),
			r.Duration.Round(time.Millisecond).String(),
			r.Reason,
		})
	}
	table.Render()

	fmt.Fprintf(w, "%d succeeded, %d skipped, %d failed, %d rows loaded\n",
		s.Count(importer.StatusSuccess),
		s.Count(importer.StatusSkipped),
		s.Count(importer.StatusFailed),
		s.Rows())
}
