package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/variomes/internal/batch"
	"github.com/Aman-CERP/variomes/internal/config"
	"github.com/Aman-CERP/variomes/internal/output"
	"github.com/Aman-CERP/variomes/internal/ui"
)

func newRankVarCmd() *cobra.Command {
	var (
		q        queryFlags
		file     string
		uniqueID string
		format   string
		light    bool
		noTUI    bool
	)

	cmd := &cobra.Command{
		Use:   "rankvar [topic...]",
		Short: "Rank a list of variants by literature coverage",
		Long: `Rank a batch of variants (topics) by how many documents discuss them.

Topics are given as arguments, e.g. "BRAF (V600E)", or as a file of
"gene<TAB>variant" lines. Each topic is ranked in every collection and the
batch is sorted by the number of distinct documents found.

A run is cached under its unique id: running the same id again returns the
stored result, and 'variomes status <id>' reports its progress.`,
		Example: `  # Two topics in a melanoma context
  variomes rankvar "BRAF (V600E)" "NRAS (Q61K)" --disease melanoma

  # Variant list from a file, without publications
  variomes rankvar --file variants.tsv --light`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runRankVar(ctx, cmd, q, args, file, uniqueID, format, light, noTUI)
		},
	}

	q.register(cmd)
	cmd.Flags().StringVar(&file, "file", "", "File of gene<TAB>variant lines")
	cmd.Flags().StringVar(&uniqueID, "unique-id", "", "Name of the run (generated when empty)")
	cmd.Flags().StringVar(&format, "format", formatTable, "Output format: table or json")
	cmd.Flags().BoolVar(&light, "light", false, "Omit publications from the result")
	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "Disable TUI mode, use plain text progress")

	return cmd
}

func runRankVar(ctx context.Context, cmd *cobra.Command, q queryFlags, topics []string, file, uniqueID, format string, light, noTUI bool) error {
	if err := checkFormat(format); err != nil {
		return err
	}
	if len(topics) == 0 && file == "" {
		return fmt.Errorf("give topics as arguments or a --file")
	}
	if len(topics) > 0 && file != "" {
		return fmt.Errorf("topics and --file are mutually exclusive")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	params := q.values()
	if len(topics) > 0 {
		params.Set("genvars", strings.Join(topics, ";"))
	}
	if uniqueID != "" {
		params.Set("uniqueId", uniqueID)
	}
	if light {
		params.Set("light", "")
	}
	if file != "" {
		if err := cfg.EnsureDirs(); err != nil {
			return err
		}
		name, err := stageVariantFile(cfg, file)
		if err != nil {
			return err
		}
		params.Set("file", name)
	}
	settings, err := requestSettings(cfg, params)
	if err != nil {
		return err
	}

	// Progress goes to stderr so the result can be piped.
	renderer := ui.NewRenderer(ui.NewConfig(cmd.ErrOrStderr(),
		ui.WithForcePlain(noTUI),
		ui.WithTitle("variomes rankvar"),
		ui.WithCollections(settings.User.Collections...)))
	if err := renderer.Start(ctx); err != nil {
		renderer = ui.NewRenderer(ui.NewConfig(cmd.ErrOrStderr(), ui.WithForcePlain(true)))
	}
	defer func() { _ = renderer.Stop() }()

	clock := &stageClock{}
	rt, err := newRuntime(cfg, runtimeOptions{
		Progress: clock.wrap(ui.BatchProgress(renderer)),
		Owner:    processOwner("cli"),
	})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	start := time.Now()
	resp, err := rt.service.RankVar(ctx, settings, batch.RequestFromParams(params))
	if err != nil {
		return err
	}
	if resp.Status != http.StatusOK {
		return failedResponse(resp)
	}

	summary, err := decodeVariants(resp.Body)
	if err != nil {
		return err
	}
	errs, warns := ui.ReportErrors(renderer, summary.Errors.Dedup())
	counts := make(map[string]int, len(summary.Collections))
	for _, t := range summary.Topics {
		for coll, n := range t.Counts {
			counts[coll] += n
		}
	}
	renderer.Complete(ui.CompletionStats{
		UniqueID:    resp.UniqueID,
		Items:       len(summary.Topics),
		ItemLabel:   "topics",
		Collections: counts,
		Duration:    time.Since(start),
		Errors:      errs,
		Warnings:    warns,
		Stages:      clock.Timings(),
	})
	_ = renderer.Stop()

	out := output.New(cmd.OutOrStdout())
	if format == formatJSON {
		return out.JSON(resp.Body)
	}
	printVariants(out, summary)
	return nil
}

// stageVariantFile copies a local variant list into the API files
// directory and returns the name the batch service reads it under.
func stageVariantFile(cfg *config.Config, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read variant file: %w", err)
	}
	name := "cli-" + uuid.NewString()
	dst := filepath.Join(cfg.Paths.APIFilesDir(), name+".txt")
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to stage variant file: %w", err)
	}
	return name, nil
}
