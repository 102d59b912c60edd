package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/variomes/internal/config"
	"github.com/Aman-CERP/variomes/internal/index"
	"github.com/Aman-CERP/variomes/internal/search"
	"github.com/Aman-CERP/variomes/internal/store"
	"github.com/Aman-CERP/variomes/internal/ui"
)

func newIndexCmd() *cobra.Command {
	var (
		collection string
		batchSize  int
		noTUI      bool
	)

	cmd := &cobra.Command{
		Use:   "index <corpus.jsonl>",
		Short: "Load a document corpus into the local index",
		Long: `Load a JSONL corpus into the document store and the local search index.

Each line is one document: "_id" names it, "annotations" and "metadatas"
are stored separately, and every other field is a bibliographic field.
Annotated concept ids are indexed so that searches can match them.

Clinical trials are ranked by a remote service; loading the ct collection
only fills the document store.`,
		Example: `  variomes index --collection medline medline.jsonl
  variomes index --collection pmc --batch-size 100 pmc.jsonl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runIndex(ctx, cmd, args[0], collection, batchSize, noTUI)
		},
	}

	cmd.Flags().StringVar(&collection, "collection", config.CollectionMedline, "Collection to load (medline, pmc, ct)")
	cmd.Flags().IntVar(&batchSize, "batch-size", index.DefaultBatchSize, "Documents written per batch")
	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "Disable TUI mode, use plain text output")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, path, collection string, batchSize int, noTUI bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Search.Backend != "" && cfg.Search.Backend != backendBleve {
		return fmt.Errorf("'variomes index' loads the %s backend; search.backend is %q", backendBleve, cfg.Search.Backend)
	}
	if err := cfg.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to create data directories: %w", err)
	}

	// One load at a time; bleve indices are single-writer.
	lock := flock.New(filepath.Join(cfg.Paths.DataDir, "index.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock data directory: %w", err)
	}
	if !locked {
		return fmt.Errorf("another load is running in %s", cfg.Paths.DataDir)
	}
	defer func() { _ = lock.Unlock() }()

	docs, err := store.Open(cfg.StorePath())
	if err != nil {
		return fmt.Errorf("failed to open document store: %w", err)
	}
	defer func() { _ = docs.Close() }()

	idx := search.NewBleveBackend(cfg.IndexDir())
	defer func() { _ = idx.Close() }()

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(noTUI),
		ui.WithTitle("variomes index"),
		ui.WithStages(ui.LoadStages...),
		ui.WithCollections(collection)))
	if err := renderer.Start(ctx); err != nil {
		slog.Warn("tui_start_failed", slog.String("error", err.Error()))
		renderer = ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(), ui.WithForcePlain(true)))
	}
	defer func() { _ = renderer.Stop() }()

	runner, err := index.NewRunner(index.RunnerDependencies{
		Renderer: renderer,
		Config:   cfg,
		Index:    idx,
		Store:    docs,
	})
	if err != nil {
		return err
	}

	_, err = runner.Run(ctx, index.RunnerConfig{
		Collection: collection,
		Path:       path,
		BatchSize:  batchSize,
	})
	return err
}
