package ui

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// PlainRenderer outputs plain text progress (for CI/pipes).
type PlainRenderer struct {
	mu      sync.Mutex
	out     io.Writer
	noColor bool
	stage   Stage
	errors  []ErrorEvent
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{
		out:     cfg.Output,
		noColor: cfg.NoColor,
	}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// UpdateProgress implements Renderer.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stage = event.Stage

	// Format: [STAGE] collection current/total - item or message
	msg := event.Item
	if event.Message != "" {
		msg = event.Message
	}
	label := event.Stage.Icon()
	if event.Collection != "" {
		label += " " + event.Collection
	}

	switch {
	case event.Total > 0 && event.Current == 0:
		_, _ = fmt.Fprintf(r.out, "[%s] %d to process\n", label, event.Total)
	case event.Total > 0 && event.Stage == StageSearch:
		_, _ = fmt.Fprintf(r.out, "[%s] %d/%d - %s (%d documents)\n", label, event.Current, event.Total, msg, event.Found)
	case event.Total > 0:
		_, _ = fmt.Fprintf(r.out, "[%s] %d/%d - %s\n", label, event.Current, event.Total, msg)
	case msg != "":
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", label, msg)
	}
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors = append(r.errors, event)

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}

	if event.Item != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, event.Item, event.Err)
	} else {
		_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	label := stats.ItemLabel
	if label == "" {
		label = "topics"
	}
	_, _ = fmt.Fprintf(r.out, "Complete: %d %s in %s", stats.Items, label, stats.Duration.Round(100*time.Millisecond))
	if stats.UniqueID != "" {
		_, _ = fmt.Fprintf(r.out, " [%s]", stats.UniqueID)
	}
	if stats.Errors > 0 || stats.Warnings > 0 {
		_, _ = fmt.Fprintf(r.out, " (%d errors, %d warnings)", stats.Errors, stats.Warnings)
	}
	_, _ = fmt.Fprintln(r.out)

	if len(stats.Collections) > 0 {
		names := make([]string, 0, len(stats.Collections))
		for name := range stats.Collections {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			_, _ = fmt.Fprintf(r.out, "  %-8s %d\n", name+":", stats.Collections[name])
		}
	}

	st := stats.Stages
	if st.Normalize > 0 || st.Search > 0 || st.Prepare > 0 {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintln(r.out, "Stage Breakdown:")
		_, _ = fmt.Fprintf(r.out, "  Normalize: %s\n", st.Normalize.Round(100*time.Millisecond))
		_, _ = fmt.Fprintf(r.out, "  Search:    %s\n", st.Search.Round(100*time.Millisecond))
		_, _ = fmt.Fprintf(r.out, "  Prepare:   %s\n", st.Prepare.Round(100*time.Millisecond))
	}
	if st.Load > 0 && stats.Items > 0 {
		perSec := float64(stats.Items) / st.Load.Seconds()
		_, _ = fmt.Fprintf(r.out, "  Load:      %s (%.1f %s/sec)\n", st.Load.Round(100*time.Millisecond), perSec, label)
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}

var _ Renderer = (*PlainRenderer)(nil)
