package ui

import (
	"maps"
	"sync"
	"time"
)

// ProgressTracker manages progress state across stages.
// It is safe for concurrent use.
type ProgressTracker struct {
	mu          sync.RWMutex
	stage       Stage
	current     int
	total       int
	currentItem string
	startTime   time.Time
	stageStart  time.Time
	timings     map[Stage]time.Duration
	errors      []ErrorEvent
	warnings    []ErrorEvent

	// Search progress per collection; the search stage spans every
	// expected collection.
	expected []string
	searched map[string]int

	// ETA smoothing to prevent wild fluctuations
	lastETA time.Duration

	// Speed tracking
	lastCurrent   int
	lastSpeedCalc time.Time
	currentSpeed  float64
	avgSpeed      float64
	peakSpeed     float64
	speedSamples  int

	yield *YieldChart
}

// SpeedStats contains speed metrics for display, in items per second.
type SpeedStats struct {
	Current float64
	Avg     float64
	Peak    float64
}

// ProgressStats contains a snapshot of current progress.
type ProgressStats struct {
	Stage       Stage
	Current     int
	Total       int
	Progress    float64
	ETA         time.Duration
	CurrentItem string
	ErrorCount  int
	WarnCount   int
	Speed       SpeedStats
	// Searched holds topics searched per collection.
	Searched map[string]int
}

// NewProgressTracker creates a new progress tracker. collections are the
// collections each topic is searched in, possibly none.
func NewProgressTracker(collections ...string) *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{
		stage:         StageNormalize,
		startTime:     now,
		stageStart:    now,
		lastSpeedCalc: now,
		timings:       map[Stage]time.Duration{},
		expected:      collections,
		searched:      map[string]int{},
		yield:         NewYieldChart(120),
	}
}

// SetStage transitions to a new stage.
func (p *ProgressTracker) SetStage(stage Stage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.setStage(stage, total)
}

func (p *ProgressTracker) setStage(stage Stage, total int) {
	now := time.Now()
	p.timings[p.stage] += now.Sub(p.stageStart)

	p.stage = stage
	p.total = total
	p.current = 0
	p.currentItem = ""
	p.stageStart = now
	p.lastETA = 0
	clear(p.searched)

	p.lastCurrent = 0
	p.lastSpeedCalc = now
	p.currentSpeed = 0
	p.avgSpeed = 0
	p.peakSpeed = 0
	p.speedSamples = 0
}

// Apply records a progress event, switching stage when it changes.
// Search events count per collection; the stage total is the topic total
// times the number of collections.
func (p *ProgressTracker) Apply(event ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.Stage != p.stage {
		p.setStage(event.Stage, event.Total)
	}
	if event.Total > 0 {
		p.total = event.Total
	}

	current := event.Current
	if event.Stage == StageSearch && event.Collection != "" {
		if event.Current > p.searched[event.Collection] {
			p.searched[event.Collection] = event.Current
		}
		current = 0
		for _, n := range p.searched {
			current += n
		}
		p.total = event.Total * max(len(p.expected), len(p.searched), 1)
		p.yield.Add(event.Found)
	}
	p.update(current, event.Item)
}

// Update updates progress within current stage.
func (p *ProgressTracker) Update(current int, item string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.update(current, item)
}

func (p *ProgressTracker) update(current int, item string) {
	p.current = current
	if item != "" {
		p.currentItem = item
	}

	// Calculate speed every 500ms to avoid noise
	now := time.Now()
	elapsed := now.Sub(p.lastSpeedCalc)
	if elapsed >= 500*time.Millisecond {
		delta := current - p.lastCurrent
		if delta > 0 && elapsed > 0 {
			speed := float64(delta) / elapsed.Seconds()
			p.currentSpeed = speed

			p.speedSamples++
			if p.speedSamples == 1 {
				p.avgSpeed = speed
			} else {
				p.avgSpeed = 0.2*speed + 0.8*p.avgSpeed
			}

			if speed > p.peakSpeed {
				p.peakSpeed = speed
			}
		}

		p.lastCurrent = current
		p.lastSpeedCalc = now
	}
}

// Timings returns the time spent in each finished stage, plus the
// current one.
func (p *ProgressTracker) Timings() StageTimings {
	p.mu.RLock()
	defer p.mu.RUnlock()

	d := func(s Stage) time.Duration {
		t := p.timings[s]
		if s == p.stage {
			t += time.Since(p.stageStart)
		}
		return t
	}
	return StageTimings{
		Normalize: d(StageNormalize),
		Search:    d(StageSearch),
		Prepare:   d(StagePrepare),
		Load:      d(StageLoad),
	}
}

// AddError records an error or warning.
func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.IsWarn {
		p.warnings = append(p.warnings, event)
	} else {
		p.errors = append(p.errors, event)
	}
}

// Progress returns current progress percentage (0.0-1.0).
func (p *ProgressTracker) Progress() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.total == 0 {
		return 0.0
	}

	progress := float64(p.current) / float64(p.total)
	if progress > 1.0 {
		return 1.0
	}
	return progress
}

// ETA estimates remaining time based on current progress.
// Uses write lock because calculateETA modifies lastETA for smoothing.
func (p *ProgressTracker) ETA() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.calculateETA()
}

// Elapsed returns time since tracker creation.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return time.Since(p.startTime)
}

// Stats returns current statistics snapshot.
// Uses write lock because calculateETA modifies lastETA for smoothing.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	progress := 0.0
	if p.total > 0 {
		progress = float64(p.current) / float64(p.total)
		if progress > 1.0 {
			progress = 1.0
		}
	}

	return ProgressStats{
		Stage:       p.stage,
		Current:     p.current,
		Total:       p.total,
		Progress:    progress,
		ETA:         p.calculateETA(),
		CurrentItem: p.currentItem,
		ErrorCount:  len(p.errors),
		WarnCount:   len(p.warnings),
		Speed: SpeedStats{
			Current: p.currentSpeed,
			Avg:     p.avgSpeed,
			Peak:    p.peakSpeed,
		},
		Searched: maps.Clone(p.searched),
	}
}

// etaSmoothingFactor controls how much weight is given to new ETA values.
// 0.3 means 30% new value + 70% previous value, providing smooth updates.
const etaSmoothingFactor = 0.3

// calculateETA calculates ETA with exponential smoothing (must be called with lock held).
func (p *ProgressTracker) calculateETA() time.Duration {
	if p.current == 0 || p.total == 0 {
		return 0
	}

	elapsed := time.Since(p.stageStart)
	progress := float64(p.current) / float64(p.total)

	if progress <= 0 || progress >= 1.0 {
		return 0
	}

	// Calculate raw ETA
	totalEstimate := time.Duration(float64(elapsed) / progress)
	rawRemaining := totalEstimate - elapsed

	if rawRemaining < 0 {
		return 0
	}

	// smoothed = α * new + (1-α) * old
	if p.lastETA == 0 {
		p.lastETA = rawRemaining
		return rawRemaining
	}

	smoothed := time.Duration(
		etaSmoothingFactor*float64(rawRemaining) +
			(1-etaSmoothingFactor)*float64(p.lastETA),
	)
	p.lastETA = smoothed

	return smoothed
}

// Errors returns the list of recorded errors.
func (p *ProgressTracker) Errors() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]ErrorEvent, len(p.errors))
	copy(result, p.errors)
	return result
}

// Warnings returns the list of recorded warnings.
func (p *ProgressTracker) Warnings() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]ErrorEvent, len(p.warnings))
	copy(result, p.warnings)
	return result
}

// RenderYield draws the documents ranked per search and their totals.
func (p *ProgressTracker) RenderYield(width int) (chart, summary string) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.yield.Render(width), p.yield.Summary()
}

// SpeedStats returns current speed statistics.
func (p *ProgressTracker) SpeedStats() SpeedStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return SpeedStats{
		Current: p.currentSpeed,
		Avg:     p.avgSpeed,
		Peak:    p.peakSpeed,
	}
}
