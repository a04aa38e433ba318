package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/shopsearch/internal/domain"
	"github.com/kailas-cloud/shopsearch/internal/domain/catalog"
	"github.com/kailas-cloud/shopsearch/internal/domain/search/result"
)

func newSearchCmd(flags *globalFlags) *cobra.Command {
	var (
		namespace   string
		filtersJSON string
		catalogPath string
		extract     bool
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run one query against the index",
		Long: `Run one query against the index and print the ranked hits.

Examples:
  shopsearch search "acoustic guitar strings"
  shopsearch search "drum pad" --filters '{"price":{"max":100}}' --json
  shopsearch search "highly rated ukulele under 80" --extract`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			var raw map[string]any
			if filtersJSON != "" {
				dec := json.NewDecoder(strings.NewReader(filtersJSON))
				dec.UseNumber()
				if err := dec.Decode(&raw); err != nil {
					return fmt.Errorf("%w: --filters must be a JSON object: %w", domain.ErrInvalidRequest, err)
				}
			}

			cfg, logger, err := flags.bootstrap()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if raw == nil && extract {
				a.cfg.Extractor.Enabled = true
				raw = a.extractor().Extract(cmd.Context(), query)
			}

			cat, err := a.loadCatalog(catalogPath, false)
			if err != nil {
				return err
			}

			results, err := a.retrieval.Search(cmd.Context(), query, namespace, raw)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), raw, results, cat)
			}
			return printTable(cmd.OutOrStdout(), results, cat)
		},
	}
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "index namespace (default from config)")
	cmd.Flags().StringVarP(&filtersJSON, "filters", "f", "", "raw filters as a JSON object")
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "product catalog CSV used to print titles")
	cmd.Flags().BoolVar(&extract, "extract", false, "derive filters from the query with the chat model")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

type hitOutput struct {
	ID       string         `json:"id"`
	Rank     int            `json:"rank"`
	Score    float64        `json:"score"`
	Title    string         `json:"title,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func toOutput(results []result.Result, cat *catalog.Catalog) []hitOutput {
	out := make([]hitOutput, len(results))
	for i := range results {
		r := &results[i]
		out[i] = hitOutput{ID: r.ID(), Rank: r.Rank(), Score: r.Score(), Metadata: r.Metadata()}
		if p, ok := cat.Get(r.ID()); ok {
			out[i].Title = p.Title
		}
	}
	return out
}

func printJSON(w io.Writer, filters map[string]any, results []result.Result, cat *catalog.Catalog) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{ //nolint:wrapcheck // terminal output
		"filters": filters,
		"items":   toOutput(results, cat),
		"total":   len(results),
	})
}

func printTable(w io.Writer, results []result.Result, cat *catalog.Catalog) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No results.")
		return err //nolint:wrapcheck // terminal output
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tID\tSCORE\tTITLE")
	for _, h := range toOutput(results, cat) {
		fmt.Fprintf(tw, "%d\t%s\t%.4f\t%s\n", h.Rank, h.ID, h.Score, h.Title)
	}
	return tw.Flush() //nolint:wrapcheck // terminal output
}
