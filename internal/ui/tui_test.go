package ui

import (
	"bytes"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestNewTUIRenderer_ErrorsForNonTTY(t *testing.T) {
	r, err := NewTUIRenderer(NewConfig(&bytes.Buffer{}))

	assert.Error(t, err)
	assert.Nil(t, r)
}

func TestRunModel_StageIndicators(t *testing.T) {
	tests := []struct {
		name    string
		stages  []Stage
		want    []string
		notWant string
	}{
		{"batch", BatchStages, []string{"Normalize", "Search", "Prepare"}, "Load"},
		{"load", LoadStages, []string{"Load"}, "Normalize"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewProgressTracker()
			tracker.SetStage(tt.stages[0], 0)
			model := newRunModel(tracker, "", tt.stages)

			view := model.View()

			for _, w := range tt.want {
				assert.Contains(t, view, w)
			}
			assert.NotContains(t, view, tt.notWant)
		})
	}
}

func TestRunModel_SearchProgress(t *testing.T) {
	// Given: a batch searching two collections
	tracker := NewProgressTracker("medline", "pmc")
	tracker.Apply(ProgressEvent{Stage: StageSearch, Current: 1, Total: 4, Collection: "medline", Item: "KRAS (G12C)", Found: 0})
	tracker.Apply(ProgressEvent{Stage: StageSearch, Current: 2, Total: 4, Collection: "medline", Item: "BRAF (V600E)", Found: 30})
	model := newRunModel(tracker, "batch run-1", nil)

	// When: rendering
	view := model.View()

	// Then: counts, collections and the current topic are shown
	assert.Contains(t, view, "batch run-1")
	assert.Contains(t, view, "2 / 8 searches")
	assert.Contains(t, view, "medline 2")
	assert.Contains(t, view, "BRAF (V600E)")
	assert.Contains(t, view, "30 documents in 2 searches, 1 empty")
	assert.Contains(t, view, "·█")
}

func TestRunModel_Complete(t *testing.T) {
	// Given: a model receiving the completion message
	model := newRunModel(NewProgressTracker(), "", nil)

	_, cmd := model.Update(completeMsg(CompletionStats{
		UniqueID:    "run-9",
		Items:       3,
		Collections: map[string]int{"medline": 7},
		Duration:    90 * time.Second,
		Errors:      1,
	}))

	// Then: the program quits and the summary is rendered
	assert.NotNil(t, cmd)
	view := model.View()
	assert.Contains(t, view, "Complete")
	assert.Contains(t, view, "run-9")
	assert.Contains(t, view, "Topics:")
	assert.Contains(t, view, "1m 30s")
	assert.Contains(t, view, "1 errors")
}

func TestRunModel_QuitKey(t *testing.T) {
	model := newRunModel(NewProgressTracker(), "", nil)

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})

	assert.NotNil(t, cmd)
	assert.Equal(t, "Cancelled.\n", model.View())
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{45 * time.Second, "45s"},
		{2 * time.Minute, "2m"},
		{2*time.Minute + 5*time.Second, "2m 5s"},
		{3*time.Hour + 20*time.Minute, "3h 20m"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatDuration(tt.in))
		})
	}
}

func TestTruncateItem(t *testing.T) {
	assert.Equal(t, "BRAF", truncateItem("BRAF", 10))
	assert.Equal(t, "BRAF (V...", truncateItem("BRAF (V600E)", 10))
	assert.Equal(t, "...", truncateItem("BRAF (V600E)", 2))
}
