package telemetry

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// LatencyBucket is one bucket of the search latency histogram.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// SearchEvent is one executed search.
type SearchEvent struct {
	Collection string        `json:"collection"`
	Cached     bool          `json:"cached"`
	Hits       int           `json:"hits"`
	Latency    time.Duration `json:"latency"`
	Failed     bool          `json:"failed"`
	Timestamp  time.Time     `json:"timestamp"`
}

// IsZeroResult reports whether a successful search returned nothing.
func (e SearchEvent) IsZeroResult() bool {
	return !e.Failed && e.Hits == 0
}

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	items    []T
	head     int
	size     int
	capacity int
	mu       sync.RWMutex
}

// NewCircularBuffer creates a buffer holding at most capacity items.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add appends item, evicting the oldest one when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns the buffered items, oldest first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		copy(result, b.items[b.head:])
		copy(result[b.capacity-b.head:], b.items[:b.head])
	}
	return result
}

// Size returns the number of buffered items.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// CollectionCounts aggregates searches of one collection.
type CollectionCounts struct {
	Searches  int64 `json:"searches"`
	CacheHits int64 `json:"cache_hits"`
	ZeroHits  int64 `json:"zero_hits"`
	Failures  int64 `json:"failures"`
}

func (c *CollectionCounts) add(o CollectionCounts) {
	c.Searches += o.Searches
	c.CacheHits += o.CacheHits
	c.ZeroHits += o.ZeroHits
	c.Failures += o.Failures
}

// StatsSnapshot is a point-in-time copy of the search statistics.
type StatsSnapshot struct {
	Collections         map[string]CollectionCounts `json:"collections"`
	LatencyDistribution map[LatencyBucket]int64     `json:"latency_distribution"`
	RecentMisses        []SearchEvent               `json:"recent_misses"`
	TotalSearches       int64                       `json:"total_searches"`
	Since               time.Time                   `json:"since"`
}

// CacheHitRate returns the share of searches answered from the cache.
func (s *StatsSnapshot) CacheHitRate() float64 {
	if s.TotalSearches == 0 {
		return 0
	}
	var hits int64
	for _, c := range s.Collections {
		hits += c.CacheHits
	}
	return float64(hits) / float64(s.TotalSearches)
}

// SortedCollections returns collection names in lexical order.
func (s *StatsSnapshot) SortedCollections() []string {
	names := make([]string, 0, len(s.Collections))
	for name := range s.Collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StatsStore persists daily search statistics.
type StatsStore interface {
	// AddCollectionCounts adds counts to the totals of date.
	AddCollectionCounts(date string, counts map[string]CollectionCounts) error

	// GetCollectionCounts sums counts over an inclusive date range.
	GetCollectionCounts(from, to string) (map[string]CollectionCounts, error)

	// AddLatencyCounts adds histogram counts to the totals of date.
	AddLatencyCounts(date string, counts map[LatencyBucket]int64) error

	// GetLatencyCounts sums histogram counts over an inclusive date range.
	GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error)

	Close() error
}

// StatsConfig configures a SearchStats collector.
type StatsConfig struct {
	MissesCapacity int           // recent zero-hit and failed searches kept
	FlushInterval  time.Duration // 0 disables background flushing
}

// DefaultStatsConfig returns the collector defaults.
func DefaultStatsConfig() StatsConfig {
	return StatsConfig{
		MissesCapacity: 100,
		FlushInterval:  60 * time.Second,
	}
}

// SearchStats aggregates search events in memory and periodically adds
// the increments since the last flush to a StatsStore.
// Safe for concurrent use.
type SearchStats struct {
	mu sync.Mutex

	collections map[string]CollectionCounts
	latencies   map[LatencyBucket]int64
	misses      *CircularBuffer[SearchEvent]
	total       int64
	startTime   time.Time

	// Increments not yet flushed.
	pendingCollections map[string]CollectionCounts
	pendingLatencies   map[LatencyBucket]int64

	store  StatsStore
	ticker *time.Ticker
	stopCh chan struct{}
	closed bool
	now    func() time.Time
}

// NewSearchStats creates a collector. store may be nil for memory-only use.
func NewSearchStats(store StatsStore, cfg StatsConfig) *SearchStats {
	if cfg.MissesCapacity <= 0 {
		cfg.MissesCapacity = 100
	}
	s := &SearchStats{
		collections:        make(map[string]CollectionCounts),
		latencies:          make(map[LatencyBucket]int64),
		misses:             NewCircularBuffer[SearchEvent](cfg.MissesCapacity),
		startTime:          time.Now(),
		pendingCollections: make(map[string]CollectionCounts),
		pendingLatencies:   make(map[LatencyBucket]int64),
		store:              store,
		stopCh:             make(chan struct{}),
		now:                time.Now,
	}
	if cfg.FlushInterval > 0 && store != nil {
		s.ticker = time.NewTicker(cfg.FlushInterval)
		go s.flushLoop()
	}
	return s
}

func (s *SearchStats) flushLoop() {
	for {
		select {
		case <-s.ticker.C:
			if err := s.Flush(); err != nil {
				slog.Warn("telemetry_flush_failed", slog.String("error", err.Error()))
			}
		case <-s.stopCh:
			return
		}
	}
}

// Record adds one search event.
func (s *SearchStats) Record(event SearchEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	delta := CollectionCounts{Searches: 1}
	if event.Cached {
		delta.CacheHits = 1
	}
	if event.Failed {
		delta.Failures = 1
	}
	if event.IsZeroResult() {
		delta.ZeroHits = 1
	}
	bucket := LatencyToBucket(event.Latency)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	c := s.collections[event.Collection]
	c.add(delta)
	s.collections[event.Collection] = c
	p := s.pendingCollections[event.Collection]
	p.add(delta)
	s.pendingCollections[event.Collection] = p

	s.latencies[bucket]++
	s.pendingLatencies[bucket]++
	s.total++

	if event.Failed || event.IsZeroResult() {
		s.misses.Add(event)
	}
}

// Snapshot returns the totals recorded since the collector started.
func (s *SearchStats) Snapshot() *StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	collections := make(map[string]CollectionCounts, len(s.collections))
	for k, v := range s.collections {
		collections[k] = v
	}
	latencies := make(map[LatencyBucket]int64, len(s.latencies))
	for k, v := range s.latencies {
		latencies[k] = v
	}
	return &StatsSnapshot{
		Collections:         collections,
		LatencyDistribution: latencies,
		RecentMisses:        s.misses.Items(),
		TotalSearches:       s.total,
		Since:               s.startTime,
	}
}

// Flush adds pending increments to the store under today's date.
// Increments are kept for the next flush when the store fails.
func (s *SearchStats) Flush() error {
	if s.store == nil {
		return nil
	}

	s.mu.Lock()
	collections := s.pendingCollections
	latencies := s.pendingLatencies
	s.pendingCollections = make(map[string]CollectionCounts)
	s.pendingLatencies = make(map[LatencyBucket]int64)
	today := s.now().Format("2006-01-02")
	s.mu.Unlock()

	if len(collections) == 0 && len(latencies) == 0 {
		return nil
	}

	err := s.store.AddCollectionCounts(today, collections)
	if err == nil {
		collections = nil
		err = s.store.AddLatencyCounts(today, latencies)
		if err == nil {
			return nil
		}
	}
	s.restore(collections, latencies)
	return err
}

func (s *SearchStats) restore(collections map[string]CollectionCounts, latencies map[LatencyBucket]int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range collections {
		p := s.pendingCollections[k]
		p.add(v)
		s.pendingCollections[k] = p
	}
	for k, v := range latencies {
		s.pendingLatencies[k] += v
	}
}

// Close stops background flushing, flushes and closes the store.
func (s *SearchStats) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stopCh)
	}
	if err := s.Flush(); err != nil {
		return err
	}
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
