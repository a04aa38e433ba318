package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newIngestCmd(flags *globalFlags) *cobra.Command {
	var (
		catalogPath string
		namespace   string
		recreate    bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Embed the product catalog and write it into the index",
		Long: `Load the catalog CSV, embed every product and upsert it into the
namespace index, creating the index first when it does not exist.
Re-running ingest overwrites products in place. Pass --recreate after
changing the embedding model, dimensions or index parameters.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := flags.bootstrap()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			cat, err := a.loadCatalog(catalogPath, true)
			if err != nil {
				return err
			}

			if namespace == "" {
				namespace = cfg.Retrieval.DefaultNamespace
			}
			svc := a.ingest()
			run := svc.Ingest
			if recreate {
				run = svc.Reindex
			}
			report, err := run(cmd.Context(), namespace, cat.Products())
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			logger.Info("Catalog ingested",
				zap.String("namespace", namespace),
				zap.Int("products", report.Products),
				zap.Int("upserted", report.Upserted),
				zap.Int("tokens", report.Tokens),
				zap.Duration("duration", report.Duration),
			)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d products into %q (%d tokens, %s)\n",
				report.Upserted, namespace, report.Tokens, report.Duration.Round(time.Millisecond))
			return err //nolint:wrapcheck // terminal output
		},
	}
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "product catalog CSV (default from config)")
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "index namespace (default from config)")
	cmd.Flags().BoolVar(&recreate, "recreate", false, "drop the namespace index before ingesting")
	return cmd
}
