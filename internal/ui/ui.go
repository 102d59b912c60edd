// Package ui provides terminal progress and status display for batch
// rankings and corpus loading.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/Aman-CERP/variomes/internal/batch"
	verrors "github.com/Aman-CERP/variomes/internal/errors"
)

// Stage represents a step of a displayed run.
type Stage int

const (
	// StageNormalize resolves the concepts of every topic.
	StageNormalize Stage = iota
	// StageSearch ranks topics against each collection.
	StageSearch
	// StagePrepare assembles topic tables and scores.
	StagePrepare
	// StageLoad writes corpus documents to the index and store.
	StageLoad
	// StageComplete indicates the run is complete.
	StageComplete
)

// BatchStages are the stages of a variant batch, in order.
var BatchStages = []Stage{StageNormalize, StageSearch, StagePrepare}

// LoadStages are the stages of a corpus load.
var LoadStages = []Stage{StageLoad}

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageNormalize:
		return "Normalize"
	case StageSearch:
		return "Search"
	case StagePrepare:
		return "Prepare"
	case StageLoad:
		return "Load"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage icon for plain text output.
func (s Stage) Icon() string {
	switch s {
	case StageNormalize:
		return "NORM"
	case StageSearch:
		return "SEARCH"
	case StagePrepare:
		return "PREP"
	case StageLoad:
		return "LOAD"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// ProgressEvent represents a progress update.
type ProgressEvent struct {
	Stage   Stage
	Current int
	Total   int
	// Collection is set for search and load events.
	Collection string
	// Item is the topic or document being processed.
	Item    string
	Message string
	// Found is the number of documents a search event ranked.
	Found int
}

// ErrorEvent represents a problem reported during a run.
type ErrorEvent struct {
	Item   string
	Err    error
	IsWarn bool
}

// StageTimings tracks duration for each stage.
type StageTimings struct {
	Normalize time.Duration
	Search    time.Duration
	Prepare   time.Duration
	Load      time.Duration
}

// CompletionStats contains the final statistics of a run.
type CompletionStats struct {
	UniqueID string
	// Items counts topics of a batch or documents of a load.
	Items     int
	ItemLabel string
	// Collections holds result counts per collection.
	Collections map[string]int
	Duration    time.Duration
	Errors      int
	Warnings    int
	Stages      StageTimings
}

// Renderer defines the interface for progress display.
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// UpdateProgress updates progress display.
	UpdateProgress(event ProgressEvent)

	// AddError adds an error to display.
	AddError(event ErrorEvent)

	// Complete marks rendering as complete with summary.
	Complete(stats CompletionStats)

	// Stop stops the renderer and cleans up.
	Stop() error
}

// Config configures the UI renderer.
type Config struct {
	Output       io.Writer
	ForcePlain   bool
	NoColor      bool
	SpinnerStyle string
	// Title is shown in the TUI header.
	Title string
	// Stages lists the pipeline shown by the TUI, BatchStages by default.
	Stages []Stage
	// Collections searched per topic; the search stage spans all of them.
	Collections []string
}

// ConfigOption is a function that modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithSpinnerStyle sets the spinner style.
func WithSpinnerStyle(style string) ConfigOption {
	return func(c *Config) {
		c.SpinnerStyle = style
	}
}

// WithTitle sets the header title.
func WithTitle(title string) ConfigOption {
	return func(c *Config) {
		c.Title = title
	}
}

// WithStages sets the displayed pipeline.
func WithStages(stages ...Stage) ConfigOption {
	return func(c *Config) {
		c.Stages = stages
	}
}

// WithCollections sets the collections searched per topic.
func WithCollections(collections ...string) ConfigOption {
	return func(c *Config) {
		c.Collections = collections
	}
}

// NewConfig creates a new Config with the given output and options.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{
		Output:       output,
		SpinnerStyle: "dots",
		Title:        "variomes",
		Stages:       BatchStages,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return cfg
}

// NewRenderer creates an appropriate renderer based on config and environment.
// It returns a TUI renderer for interactive terminals, and a plain text
// renderer for CI environments, pipes, or when --no-tui is specified.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain {
		return NewPlainRenderer(cfg)
	}

	if !IsTTY(cfg.Output) {
		return NewPlainRenderer(cfg)
	}

	if DetectCI() {
		return NewPlainRenderer(cfg)
	}

	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}

	return tui
}

// BatchProgress adapts a renderer to batch progress events.
func BatchProgress(r Renderer) batch.ProgressFunc {
	return func(ev batch.Event) {
		r.UpdateProgress(fromBatch(ev))
	}
}

func fromBatch(ev batch.Event) ProgressEvent {
	out := ProgressEvent{
		Current:    ev.Current,
		Total:      ev.Total,
		Collection: ev.Collection,
		Item:       ev.Message,
		Found:      ev.Found,
	}
	switch ev.Stage {
	case batch.StageNormalize:
		out.Stage = StageNormalize
	case batch.StageSearch:
		out.Stage = StageSearch
	case batch.StagePrepare:
		out.Stage = StagePrepare
	default:
		out.Stage = StageComplete
	}
	return out
}

// ReportErrors forwards pipeline reports to the renderer. Warnings stay
// warnings; fatal reports are errors.
func ReportErrors(r Renderer, reports verrors.Reports) (errs, warns int) {
	for _, rep := range reports {
		isWarn := rep.Level != verrors.LevelFatal
		if isWarn {
			warns++
		} else {
			errs++
		}
		r.AddError(ErrorEvent{
			Item:   rep.Details,
			Err:    reportError{rep},
			IsWarn: isWarn,
		})
	}
	return errs, warns
}

type reportError struct {
	rep verrors.Report
}

func (e reportError) Error() string {
	return "[" + e.rep.Service + "] " + e.rep.Description
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}

	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	return false
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
