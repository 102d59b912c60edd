package search

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Aman-CERP/variomes/internal/cache"
	"github.com/Aman-CERP/variomes/internal/config"
	verrors "github.com/Aman-CERP/variomes/internal/errors"
)

// Observer receives one call per executed search.
type Observer interface {
	ObserveSearch(collection string, cached bool, hits int, elapsed time.Duration, err error)
}

// Executor runs requests against a Backend behind the "es" cache.
type Executor struct {
	backend  Backend
	cache    *cache.Store
	observer Observer
}

// NewExecutor creates an Executor. store and observer may be nil.
func NewExecutor(backend Backend, store *cache.Store, observer Observer) *Executor {
	return &Executor{backend: backend, cache: store, observer: observer}
}

// Execute runs req on the index of collection. It never fails: a backend
// error yields an empty response and a warning. Callers retry once without
// highlight when the response is empty.
func (e *Executor) Execute(ctx context.Context, settings config.Settings, collection string, req Request) (*Response, verrors.Reports) {
	var reports verrors.Reports
	start := time.Now()

	key, err := req.Key()
	if err != nil {
		reports.Warn(config.ServiceES, "Elasticsearch failed", err.Error())
		return &Response{}, reports
	}

	var svc *cache.Service
	if e.cache != nil {
		svc = e.cache.Service(settings, config.ServiceES, "json")
		data, ok, rep := svc.Get(ctx, key, true)
		reports.Extend(rep)
		if ok {
			var resp Response
			if err := json.Unmarshal(data, &resp); err == nil {
				e.observe(collection, true, &resp, start, nil)
				return &resp, reports
			}
			slog.Warn("es_cache_unreadable", slog.String("path", svc.Path(key)))
		}
	}

	index := settings.Indices[collection]
	if index == "" {
		index = collection
	}

	resp, err := e.backend.Search(ctx, index, req, settings.User.ResultsNb)
	if err != nil {
		slog.Warn("search_failed",
			slog.String("collection", collection),
			slog.String("index", index),
			slog.String("error", err.Error()))
		reports.Warn(config.ServiceES, "Elasticsearch failed", err.Error())
		e.observe(collection, false, nil, start, err)
		return &Response{}, reports
	}

	if svc != nil {
		if data, err := json.Marshal(resp); err == nil {
			reports.Extend(svc.Put(key, data))
		}
	}

	e.observe(collection, false, resp, start, nil)
	slog.Debug("search_executed",
		slog.String("collection", collection),
		slog.String("index", index),
		slog.Int("hits", len(resp.Hits.Hits)),
		slog.Bool("highlight", req.Highlight != nil),
		slog.Duration("elapsed", time.Since(start)))
	return resp, reports
}

func (e *Executor) observe(collection string, cached bool, resp *Response, start time.Time, err error) {
	if e.observer == nil {
		return
	}
	hits := 0
	if resp != nil {
		hits = len(resp.Hits.Hits)
	}
	e.observer.ObserveSearch(collection, cached, hits, time.Since(start), err)
}
