package ui

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProgressTracker(t *testing.T) {
	tracker := NewProgressTracker()

	stats := tracker.Stats()
	assert.Equal(t, StageNormalize, stats.Stage)
	assert.Zero(t, stats.Current)
	assert.Zero(t, stats.Progress)
}

func TestProgressTracker_Progress_Percentage(t *testing.T) {
	tests := []struct {
		name    string
		current int
		total   int
		want    float64
	}{
		{"empty total", 5, 0, 0},
		{"half", 5, 10, 0.5},
		{"done", 10, 10, 1},
		{"overshoot is capped", 12, 10, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewProgressTracker()
			tracker.SetStage(StageNormalize, tt.total)
			tracker.Update(tt.current, "")

			assert.InDelta(t, tt.want, tracker.Progress(), 0.001)
		})
	}
}

func TestProgressTracker_Apply_SwitchesStage(t *testing.T) {
	// Given: a tracker normalizing topics
	tracker := NewProgressTracker()
	tracker.Apply(ProgressEvent{Stage: StageNormalize, Current: 3, Total: 3, Item: "KRAS (G12D)"})

	// When: the prepare stage starts
	tracker.Apply(ProgressEvent{Stage: StagePrepare, Total: 3})

	// Then: counters restart for the new stage
	stats := tracker.Stats()
	assert.Equal(t, StagePrepare, stats.Stage)
	assert.Zero(t, stats.Current)
	assert.Equal(t, 3, stats.Total)
	assert.Empty(t, stats.CurrentItem)
}

func TestProgressTracker_Apply_SearchSpansCollections(t *testing.T) {
	// Given: two topics searched in two collections
	tracker := NewProgressTracker("medline", "pmc")

	// When: medline finished both topics and pmc one
	tracker.Apply(ProgressEvent{Stage: StageSearch, Current: 1, Total: 2, Collection: "medline"})
	tracker.Apply(ProgressEvent{Stage: StageSearch, Current: 2, Total: 2, Collection: "medline"})
	tracker.Apply(ProgressEvent{Stage: StageSearch, Current: 1, Total: 2, Collection: "pmc", Item: "BRAF (V600E)"})

	// Then: three of four searches are done
	stats := tracker.Stats()
	assert.Equal(t, 3, stats.Current)
	assert.Equal(t, 4, stats.Total)
	assert.InDelta(t, 0.75, stats.Progress, 0.001)
	assert.Equal(t, map[string]int{"medline": 2, "pmc": 1}, stats.Searched)
	assert.Equal(t, "BRAF (V600E)", stats.CurrentItem)
}

func TestProgressTracker_Apply_OutOfOrderSearchEvents(t *testing.T) {
	tracker := NewProgressTracker("medline")

	tracker.Apply(ProgressEvent{Stage: StageSearch, Current: 2, Total: 2, Collection: "medline"})
	tracker.Apply(ProgressEvent{Stage: StageSearch, Current: 1, Total: 2, Collection: "medline"})

	assert.Equal(t, 2, tracker.Stats().Current)
}

func TestProgressTracker_AddError(t *testing.T) {
	tracker := NewProgressTracker()

	tracker.AddError(ErrorEvent{Item: "FOO (X1Y)", Err: assert.AnError})
	tracker.AddError(ErrorEvent{Item: "BAR", Err: assert.AnError, IsWarn: true})
	tracker.AddError(ErrorEvent{Item: "BAZ", Err: assert.AnError, IsWarn: true})

	stats := tracker.Stats()
	assert.Equal(t, 1, stats.ErrorCount)
	assert.Equal(t, 2, stats.WarnCount)
	assert.Len(t, tracker.Errors(), 1)
	assert.Len(t, tracker.Warnings(), 2)
}

func TestProgressTracker_ETA(t *testing.T) {
	// Given: a tracker without progress
	tracker := NewProgressTracker()
	tracker.SetStage(StageSearch, 100)
	assert.Zero(t, tracker.ETA())

	// When: half the work is done
	time.Sleep(20 * time.Millisecond)
	tracker.Update(50, "")

	// Then: the estimate is positive and bounded
	eta := tracker.ETA()
	assert.Greater(t, eta, time.Duration(0))
	assert.Less(t, eta, 500*time.Millisecond)
}

func TestProgressTracker_Timings(t *testing.T) {
	// Given: a run that spent time normalizing
	tracker := NewProgressTracker()
	time.Sleep(10 * time.Millisecond)

	// When: it moves on to the search stage
	tracker.SetStage(StageSearch, 1)

	// Then: the normalize time is kept
	timings := tracker.Timings()
	assert.GreaterOrEqual(t, timings.Normalize, 10*time.Millisecond)
	assert.Zero(t, timings.Load)
}

func TestProgressTracker_ThreadSafety(t *testing.T) {
	tracker := NewProgressTracker("medline", "pmc", "ct")

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			coll := []string{"medline", "pmc", "ct"}[n%3]
			tracker.Apply(ProgressEvent{Stage: StageSearch, Current: n, Total: 100, Collection: coll})
			tracker.Progress()
			tracker.Stats()
		}(i)
	}
	wg.Wait()

	stats := tracker.Stats()
	require.Len(t, stats.Searched, 3)
	assert.Equal(t, 300, stats.Total)
}

func TestProgressTracker_ElapsedTime(t *testing.T) {
	tracker := NewProgressTracker()

	time.Sleep(10 * time.Millisecond)

	assert.GreaterOrEqual(t, tracker.Elapsed(), 10*time.Millisecond)
}
