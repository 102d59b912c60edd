package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/variomes/internal/batch"
	verrors "github.com/Aman-CERP/variomes/internal/errors"
	"github.com/Aman-CERP/variomes/internal/output"
)

func newFetchCmd() *cobra.Command {
	var (
		q          queryFlags
		collection string
		genvars    string
		format     string
	)

	cmd := &cobra.Command{
		Use:   "fetch <id>...",
		Short: "Fetch documents with highlighted query entities",
		Long: `Fetch stored documents by id and highlight the entities of a query
(disease, gene, variant) in their title and abstract.`,
		Example: `  variomes fetch 25741868 --genvars "BRAF (V600E)" --disease melanoma
  variomes fetch NCT02034110 --collection ct --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runFetch(ctx, cmd, q, args, collection, genvars, format)
		},
	}

	q.register(cmd)
	cmd.Flags().StringVar(&collection, "collection", "", "Collection of the documents (default medline)")
	cmd.Flags().StringVar(&genvars, "genvars", "", "Variants to highlight, e.g. \"BRAF (V600E)\"")
	cmd.Flags().StringVar(&format, "format", formatTable, "Output format: table or json")

	return cmd
}

func runFetch(ctx context.Context, cmd *cobra.Command, q queryFlags, ids []string, collection, genvars, format string) error {
	if err := checkFormat(format); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	params := q.values()
	params.Set("ids", strings.Join(ids, ";"))
	if collection != "" {
		params.Set("collection", collection)
	}
	if genvars != "" {
		params.Set("genvars", genvars)
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

	resp, err := rt.service.FetchDoc(ctx, settings, batch.RequestFromParams(params))
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
	return printFetched(out, resp.Body, len(ids))
}

// printFetched lists fetched documents and notes the ids not found.
func printFetched(out *output.Writer, body []byte, requested int) error {
	var raw struct {
		Publications []documentRow   `json:"publications"`
		Errors       verrors.Reports `json:"errors"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return fmt.Errorf("decode fetch body: %w", err)
	}

	out.Statusf("📄", "%d of %d documents found", len(raw.Publications), requested)
	if len(raw.Publications) > 0 {
		out.Newline()
		rows := make([][]string, 0, len(raw.Publications))
		for _, d := range raw.Publications {
			cells := d.cells()
			rows = append(rows, []string{cells[1], cells[3], cells[4]})
		}
		out.Table([]string{"ID", "YEAR", "TITLE"}, rows)
	}
	if len(raw.Errors) > 0 {
		out.Newline()
		out.Reports(raw.Errors.Dedup())
	}
	return nil
}
