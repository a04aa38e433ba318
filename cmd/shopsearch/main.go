package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsearch/internal/config"
	logpkg "github.com/kailas-cloud/shopsearch/internal/logger"
	"github.com/kailas-cloud/shopsearch/internal/version"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	env        string
	configPath string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "shopsearch",
		Short: "Semantic product search over a Redis vector index",
		Long: `shopsearch embeds shopper queries, turns extracted filters into
pre-filters on a Redis Search KNN query and falls back to an unfiltered
query when the filters match nothing.

Example usage:
  shopsearch ingest --catalog data/products.csv   # embed and index the catalog
  shopsearch search "digital piano under 300"     # run one query
  shopsearch serve                                # start the HTTP API`,
		Version:      version.String(),
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.env, "env", "",
		"environment name selecting config/<env>.yaml (default from ENV or local)")
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "explicit config file path")

	root.AddCommand(newServeCmd(flags), newSearchCmd(flags), newIngestCmd(flags))
	return root
}

// bootstrap loads configuration and builds the logger.
func (f *globalFlags) bootstrap() (config.Config, *zap.Logger, error) {
	env := f.env
	if env == "" {
		env = config.GetEnv()
	}

	var (
		cfg config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.LoadFile(f.configPath)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, logger, nil
}
