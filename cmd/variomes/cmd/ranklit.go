package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/variomes/internal/batch"
	"github.com/Aman-CERP/variomes/internal/output"
)

func newRankLitCmd() *cobra.Command {
	var (
		q        queryFlags
		genvars  string
		uniqueID string
		format   string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "ranklit",
		Short: "Rank the literature of one query",
		Long: `Rank MEDLINE, PMC and clinical trial documents for one query.

The query combines genes and variants (--genvars), a disease and the
demographics of a patient. Every collection is ranked independently.`,
		Example: `  # BRAF V600E in melanoma
  variomes ranklit --genvars "BRAF (V600E)" --disease melanoma

  # Two collections, raw JSON
  variomes ranklit --genvars "EGFR" --collections medline,pmc --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runRankLit(ctx, cmd, q, genvars, uniqueID, format, limit)
		},
	}

	q.register(cmd)
	cmd.Flags().StringVar(&genvars, "genvars", "", "Genes and variants, e.g. \"BRAF (V600E)\"")
	cmd.Flags().StringVar(&uniqueID, "unique-id", "", "Name of the run (generated when empty)")
	cmd.Flags().StringVar(&format, "format", formatTable, "Output format: table or json")
	cmd.Flags().IntVar(&limit, "limit", 10, "Documents shown per collection in table output")

	return cmd
}

func runRankLit(ctx context.Context, cmd *cobra.Command, q queryFlags, genvars, uniqueID, format string, limit int) error {
	if err := checkFormat(format); err != nil {
		return err
	}
	if limit <= 0 {
		return fmt.Errorf("--limit must be positive")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	params := q.values()
	if genvars != "" {
		params.Set("genvars", genvars)
	}
	if uniqueID != "" {
		params.Set("uniqueId", uniqueID)
	}
	settings, err := requestSettings(cfg, params)
	if err != nil {
		return err
	}

	rt, err := newRuntime(cfg, runtimeOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	resp, err := rt.service.RankLit(ctx, settings, batch.RequestFromParams(params))
	if err != nil {
		return err
	}
	if resp.Status != http.StatusOK {
		return failedResponse(resp)
	}

	out := output.New(cmd.OutOrStdout())
	if format == formatJSON {
		return out.JSON(resp.Body)
	}
	return printLiterature(out, resp.Body, limit)
}
