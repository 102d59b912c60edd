package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/Aman-CERP/variomes/internal/batch"
	"github.com/Aman-CERP/variomes/internal/cache"
	"github.com/Aman-CERP/variomes/internal/config"
	"github.com/Aman-CERP/variomes/internal/document"
	"github.com/Aman-CERP/variomes/internal/logging"
	"github.com/Aman-CERP/variomes/internal/query"
	"github.com/Aman-CERP/variomes/internal/rank"
	"github.com/Aman-CERP/variomes/internal/search"
	"github.com/Aman-CERP/variomes/internal/store"
	"github.com/Aman-CERP/variomes/internal/telemetry"
	"github.com/Aman-CERP/variomes/internal/terminology"
	"github.com/Aman-CERP/variomes/internal/variant"
)

// Search backend names accepted in search.backend.
const (
	backendBleve         = "bleve"
	backendElasticsearch = "elasticsearch"
)

// runtimeOptions tunes the components built by newRuntime.
type runtimeOptions struct {
	// Progress receives batch progress events. May be nil.
	Progress batch.ProgressFunc
	// Metrics observes searches and requests. May be nil.
	Metrics *telemetry.Metrics
	// Owner names this process in work claims.
	Owner string
}

// runtime holds the wired ranking pipeline of one command.
type runtime struct {
	cfg      *config.Config
	store    *store.SQLiteStore
	backend  search.Backend
	bleve    *search.BleveBackend
	cache    *cache.Store
	service  *batch.Service
	enricher *document.Enricher
}

// newRuntime wires the pipeline from cfg. Callers must Close it.
func newRuntime(cfg *config.Config, opts runtimeOptions) (*runtime, error) {
	if err := cfg.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("failed to create data directories: %w", err)
	}

	docs, err := store.Open(cfg.StorePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open document store: %w", err)
	}

	rt := &runtime{cfg: cfg, store: docs}
	switch cfg.Search.Backend {
	case backendElasticsearch:
		es, err := search.NewElasticBackend(cfg.Search.Elasticsearch)
		if err != nil {
			_ = docs.Close()
			return nil, err
		}
		rt.backend = es
	case backendBleve, "":
		rt.bleve = search.NewBleveBackend(cfg.IndexDir())
		rt.backend = rt.bleve
	default:
		_ = docs.Close()
		return nil, fmt.Errorf("unknown search backend %q", cfg.Search.Backend)
	}

	terms, err := terminology.New(cfg.Terminology, cfg.Cache.MemoryEntries)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("failed to load terminology: %w", err)
	}

	rt.cache = cache.New(cfg.Paths.CacheDir(), cache.OptionsFromConfig(cfg.Cache))
	rt.enricher = document.NewEnricher(docs)

	var synvar variant.Fetcher
	if cfg.URLs.SynVar != "" {
		synvar = variant.NewSynVarClient(cfg.URLs.SynVar, cfg.Terminology.Timeout, cfg.Terminology.RequestsPerSecond)
	}
	resolver := variant.NewResolver(synvar, terms, rt.cache)

	var (
		searchObserver search.Observer
		batchObserver  batch.Observer
	)
	if opts.Metrics != nil {
		searchObserver = opts.Metrics
		batchObserver = opts.Metrics
	}
	executor := search.NewExecutor(rt.backend, rt.cache, searchObserver)
	ct := rank.NewCTSearcher(cfg.Terminology.Timeout, rt.cache, rt.enricher)

	batchOpts := batch.Options{
		Normalizer:  query.NewNormalizer(terms, resolver, query.DefaultAgeTable()),
		Ranker:      rank.NewTopicRanker(executor, rt.enricher, ct),
		Cache:       rt.cache,
		Status:      cache.NewStatusLog(cfg.Paths.StatusDir()),
		Errors:      logging.NewErrorLog(cfg.Paths.ErrorsDir()),
		Batch:       cfg.Batch,
		APIFilesDir: cfg.Paths.APIFilesDir(),
		Progress:    opts.Progress,
		Observer:    batchObserver,
	}
	if opts.Owner != "" {
		batchOpts.Claims = cache.NewClaimStore(cfg.Paths.StatusDir(), opts.Owner, cfg.Batch.ClaimTTL)
	}
	rt.service = batch.New(batchOpts)

	slog.Debug("runtime_ready",
		slog.String("backend", rt.backendName()),
		slog.String("store", cfg.StorePath()),
		slog.String("cache", cfg.Paths.CacheDir()))
	return rt, nil
}

func (rt *runtime) backendName() string {
	if rt.bleve != nil {
		return backendBleve
	}
	return backendElasticsearch
}

// Close releases the backend and the store.
func (rt *runtime) Close() error {
	var errs []error
	if rt.backend != nil {
		errs = append(errs, rt.backend.Close())
	}
	if rt.store != nil {
		errs = append(errs, rt.store.Close())
	}
	return errors.Join(errs...)
}

// processOwner names this process in work claims.
func processOwner(role string) string {
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	return fmt.Sprintf("%s-%s-%d", role, host, os.Getpid())
}
