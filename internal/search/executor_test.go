package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/variomes/internal/cache"
	"github.com/Aman-CERP/variomes/internal/config"
)

type fakeBackend struct {
	mu    sync.Mutex
	calls int
	sizes []int
	resp  *Response
	err   error
}

func (f *fakeBackend) Search(_ context.Context, _ string, _ Request, size int) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.sizes = append(f.sizes, size)
	return f.resp, f.err
}

func (f *fakeBackend) Close() error { return nil }

type recordingObserver struct {
	cached []bool
	errs   int
}

func (o *recordingObserver) ObserveSearch(_ string, cached bool, _ int, _ time.Duration, err error) {
	o.cached = append(o.cached, cached)
	if err != nil {
		o.errs++
	}
}

func newCachedSettings(t *testing.T) (config.Settings, *cache.Store) {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Paths.DataDir = t.TempDir()
	settings := cfg.ForRequest(config.Overrides{})
	return settings, cache.New(settings.Paths.CacheDir(), cache.Options{ReadAttempts: 1})
}

func TestExecute_CachesResponses(t *testing.T) {
	// Given: a backend returning one hit
	settings, store := newCachedSettings(t)
	backend := &fakeBackend{resp: &Response{Hits: HitList{Hits: []Hit{{ID: "1", Score: 2}}}}}
	obs := &recordingObserver{}
	e := NewExecutor(backend, store, obs)
	req := NewBuilder(settings, config.CollectionMedline).Build(Triplet{Variant: v600e()}, true)

	// When: executing the same request twice
	first, reports := e.Execute(context.Background(), settings, config.CollectionMedline, req)
	require.Empty(t, reports)
	second, reports := e.Execute(context.Background(), settings, config.CollectionMedline, req)
	require.Empty(t, reports)

	// Then: the backend is hit once and both answers agree
	assert.Equal(t, 1, backend.calls)
	assert.Equal(t, []int{settings.User.ResultsNb}, backend.sizes)
	assert.Equal(t, first.Hits.Hits[0].ID, second.Hits.Hits[0].ID)
	assert.Equal(t, []bool{false, true}, obs.cached)
}

func TestExecute_CacheDisabledByRequest(t *testing.T) {
	settings, store := newCachedSettings(t)
	settings.User.UseCache = false
	backend := &fakeBackend{resp: &Response{}}
	e := NewExecutor(backend, store, nil)
	req := NewBuilder(settings, config.CollectionMedline).Build(Triplet{Variant: v600e()}, true)

	e.Execute(context.Background(), settings, config.CollectionMedline, req)
	e.Execute(context.Background(), settings, config.CollectionMedline, req)

	assert.Equal(t, 2, backend.calls)
}

func TestExecute_FailureIsAWarning(t *testing.T) {
	// Given: a failing backend
	settings, store := newCachedSettings(t)
	obs := &recordingObserver{}
	e := NewExecutor(&fakeBackend{err: errors.New("connection refused")}, store, obs)
	req := NewBuilder(settings, config.CollectionMedline).Build(Triplet{Variant: v600e()}, true)

	// When: executing
	resp, reports := e.Execute(context.Background(), settings, config.CollectionMedline, req)

	// Then: an empty response and one warning
	require.NotNil(t, resp)
	assert.True(t, resp.Empty())
	require.Len(t, reports, 1)
	assert.Equal(t, config.ServiceES, reports[0].Service)
	assert.Equal(t, "Elasticsearch failed", reports[0].Description)
	assert.False(t, reports.HasFatal())
	assert.Equal(t, 1, obs.errs)
}
