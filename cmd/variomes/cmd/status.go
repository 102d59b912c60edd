package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/variomes/internal/batch"
	"github.com/Aman-CERP/variomes/internal/config"
	"github.com/Aman-CERP/variomes/internal/index"
	"github.com/Aman-CERP/variomes/internal/output"
	"github.com/Aman-CERP/variomes/internal/search"
	"github.com/Aman-CERP/variomes/internal/store"
	"github.com/Aman-CERP/variomes/internal/ui"
)

// Batch states reported by 'variomes status <id>'.
const (
	stateUnknown  = "unknown"
	stateRunning  = "running"
	stateFinished = "finished"
)

func newStatusCmd() *cobra.Command {
	var (
		jsonOutput bool
		check      bool
		repair     bool
	)

	cmd := &cobra.Command{
		Use:   "status [unique-id]",
		Short: "Show data health or the status of a variant run",
		Long: `Without arguments, display the local data:
  - Documents indexed and stored per collection
  - Storage sizes (index, store, cache, telemetry)
  - Search backend and terminology status

With a unique id, report whether that variant run is unknown, running
or finished.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runBatchStatus(cmd.Context(), cmd, args[0], jsonOutput)
			}
			return runStatus(cmd.Context(), cmd, jsonOutput, check || repair, repair)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&check, "check", false, "Compare the search index with the document store")
	cmd.Flags().BoolVar(&repair, "repair", false, "Remove indexed documents that have no stored record")

	return cmd
}

func runBatchStatus(ctx context.Context, cmd *cobra.Command, uniqueID string, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rt, err := newRuntime(cfg, runtimeOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	msg, err := rt.service.Status(ctx, cfg.ForRequest(config.Overrides{}), uniqueID)
	if err != nil {
		return fmt.Errorf("failed to read status: %w", err)
	}
	state := batchState(msg)

	out := output.New(cmd.OutOrStdout())
	if jsonOutput {
		return out.JSONValue(map[string]string{"unique_id": uniqueID, "state": state, "message": msg})
	}
	switch state {
	case stateFinished:
		out.Successf("%s is finished", uniqueID)
	case stateRunning:
		out.Statusf("⏳", "%s: %s", uniqueID, msg)
	default:
		out.Warningf("no run named %s", uniqueID)
	}
	return nil
}

// batchState maps a status message onto a batch state.
func batchState(msg string) string {
	switch msg {
	case "":
		return stateUnknown
	case batch.FinishedMessage:
		return stateFinished
	default:
		return stateRunning
	}
}

func runStatus(ctx context.Context, cmd *cobra.Command, jsonOutput, check, repair bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !fileExists(cfg.StorePath()) {
		return fmt.Errorf("no documents found in %s\nRun 'variomes index' to load a corpus", cfg.Paths.DataDir)
	}

	docs, err := store.Open(cfg.StorePath())
	if err != nil {
		return fmt.Errorf("failed to open document store: %w", err)
	}
	defer func() { _ = docs.Close() }()

	var idx *search.BleveBackend
	if cfg.Search.Backend == backendBleve || cfg.Search.Backend == "" {
		idx = search.NewBleveBackend(cfg.IndexDir())
		defer func() { _ = idx.Close() }()
	}

	info, err := collectStatus(ctx, cfg, docs, idx)
	if err != nil {
		return fmt.Errorf("failed to collect status: %w", err)
	}

	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), ui.DetectNoColor())
	if jsonOutput {
		if err := renderer.RenderJSON(info); err != nil {
			return err
		}
	} else if err := renderer.Render(info); err != nil {
		return err
	}

	if !check {
		return nil
	}
	if idx == nil {
		return fmt.Errorf("consistency checks need the %s backend", backendBleve)
	}
	return checkConsistency(ctx, output.New(cmd.OutOrStdout()), cfg, index.NewConsistencyChecker(idx, docs), repair)
}

func collectStatus(ctx context.Context, cfg *config.Config, docs *store.SQLiteStore, idx *search.BleveBackend) (ui.StatusInfo, error) {
	info := ui.StatusInfo{
		DataDir:           cfg.Paths.DataDir,
		Backend:           cfg.Search.Backend,
		BackendStatus:     "ready",
		TerminologyStatus: terminologyStatus(cfg),
	}
	if info.Backend == "" {
		info.Backend = backendBleve
	}

	for _, coll := range cfg.Search.Available {
		stored, err := docs.Count(ctx, coll, store.KindBib)
		if err != nil {
			return info, err
		}
		cs := ui.CollectionStatus{Name: coll, Index: index.IndexName(cfg, coll), Stored: stored}
		if idx != nil && cs.Index != "" {
			// A collection that was never loaded has no index yet.
			if n, err := idx.Count(cs.Index); err == nil {
				cs.Indexed = n
			}
		}
		info.Collections = append(info.Collections, cs)
	}
	if idx == nil {
		info.BackendStatus = "remote"
	}

	if st, err := os.Stat(cfg.StorePath()); err == nil {
		info.LastUpdated = st.ModTime()
	}
	info.IndexSize = getDirSize(cfg.IndexDir())
	info.StoreSize = getFileSize(cfg.StorePath())
	info.CacheSize = getDirSize(cfg.Paths.CacheDir())
	info.TelemetrySize = getFileSize(cfg.TelemetryPath())
	info.TotalSize = info.IndexSize + info.StoreSize + info.CacheSize + info.TelemetrySize
	return info, nil
}

// terminologyStatus reports where concepts are looked up.
func terminologyStatus(cfg *config.Config) string {
	switch {
	case cfg.Terminology.DictionaryPath != "" && fileExists(cfg.Terminology.DictionaryPath):
		return "ready"
	case cfg.Terminology.DictionaryPath != "":
		return "error"
	case cfg.Terminology.URL != "":
		return "remote"
	default:
		return "offline"
	}
}

// checkConsistency compares every indexed collection with the store.
func checkConsistency(ctx context.Context, out *output.Writer, cfg *config.Config, checker *index.ConsistencyChecker, repair bool) error {
	out.Newline()
	start := time.Now()
	total := 0
	for _, coll := range cfg.Search.Available {
		name := index.IndexName(cfg, coll)
		if name == "" {
			continue
		}
		result, err := checker.Check(ctx, coll, name)
		if err != nil {
			out.Warningf("%s: cannot check %s: %v", coll, name, err)
			continue
		}
		if result.Consistent() {
			out.Successf("%s: %d records consistent", coll, result.Checked)
			continue
		}
		total += len(result.Inconsistencies)
		counts := map[string]int{}
		for _, issue := range result.Inconsistencies {
			counts[issue.Type.String()]++
		}
		out.Warningf("%s: %d orphan, %d missing", coll, counts["orphan_index"], counts["missing_index"])

		if repair {
			removed, err := checker.Repair(ctx, name, result.Inconsistencies)
			if err != nil {
				return fmt.Errorf("failed to repair %s: %w", name, err)
			}
			out.Successf("%s: removed %d orphans", coll, removed)
		}
	}
	if total > 0 && !repair {
		out.Status("💡", "Run 'variomes status --repair' to remove orphans, 'variomes index' to reload missing records")
	}
	out.Statusf("⏱️ ", "Checked in %s", time.Since(start).Round(time.Millisecond))
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// getFileSize returns the size of a file in bytes.
func getFileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// getDirSize returns the total size of all files in a directory.
func getDirSize(path string) int64 {
	var size int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			if info, err := d.Info(); err == nil {
				size += info.Size()
			}
		}
		return nil
	})
	return size
}
