package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/variomes/internal/cache"
	"github.com/Aman-CERP/variomes/internal/config"
	"github.com/Aman-CERP/variomes/internal/document"
	verrors "github.com/Aman-CERP/variomes/internal/errors"
	"github.com/Aman-CERP/variomes/internal/logging"
	"github.com/Aman-CERP/variomes/internal/query"
	"github.com/Aman-CERP/variomes/internal/rank"
)

// Source tells where a response body came from.
type Source string

const (
	SourceComputed Source = "computed"
	SourceCacheID  Source = "cache_id"
	SourceCacheKey Source = "cache_key"
	SourceWaited   Source = "waited"
)

// FinishedMessage is the status of a run whose result is cached.
const FinishedMessage = "Processing is finished, results will be displayed in a few seconds."

// ServiceVCF tags reports about uploaded variant files.
const ServiceVCF = "vcf"

// Response is a rendered service answer.
type Response struct {
	UniqueID string
	Body     []byte
	// Status is http.StatusOK, or http.StatusInternalServerError when Body
	// is an error envelope.
	Status int
	Source Source
}

// Observer receives one call per answered request.
type Observer interface {
	ObserveRequest(service string, source Source, topics int, elapsed time.Duration)
}

// Options wires a Service.
type Options struct {
	Normalizer *query.Normalizer
	Ranker     *rank.TopicRanker
	Cache      *cache.Store
	Status     *cache.StatusLog
	// Claims coordinates variant batches across processes. Nil disables
	// claiming and waiting.
	Claims      *cache.ClaimStore
	Errors      *logging.ErrorLog
	Batch       config.BatchConfig
	APIFilesDir string
	Progress    ProgressFunc
	Observer    Observer
}

// Service answers the ranking requests.
type Service struct {
	normalizer  *query.Normalizer
	ranker      *rank.TopicRanker
	cache       *cache.Store
	status      *cache.StatusLog
	claims      *cache.ClaimStore
	errors      *logging.ErrorLog
	batch       config.BatchConfig
	apiFilesDir string
	progress    ProgressFunc
	observer    Observer
	now         func() time.Time
	newID       func() string
}

// New creates a Service.
func New(opts Options) *Service {
	progress := opts.Progress
	if progress == nil {
		progress = func(Event) {}
	}
	return &Service{
		normalizer:  opts.Normalizer,
		ranker:      opts.Ranker,
		cache:       opts.Cache,
		status:      opts.Status,
		claims:      opts.Claims,
		errors:      opts.Errors,
		batch:       opts.Batch,
		apiFilesDir: opts.APIFilesDir,
		progress:    progress,
		observer:    opts.Observer,
		now:         time.Now,
		newID:       newUniqueID,
	}
}

// newUniqueID returns a time-based uuid, or a random one when the clock
// sequence is unavailable.
func newUniqueID() string {
	if id, err := uuid.NewUUID(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// RankVar ranks the topics of req by literature coverage.
//
// A finished run under req.UniqueID is returned as is, then a fresh run of
// the same request. When another process holds the run's claim, RankVar
// waits for its result up to the configured poll timeout and returns
// cache.ErrStillProcessing after that. Otherwise it computes the run,
// writing status lines, and caches the body under both keys.
func (s *Service) RankVar(ctx context.Context, settings config.Settings, req Request) (*Response, error) {
	start := s.now()
	uniqueID := req.UniqueID
	if uniqueID == "" {
		uniqueID = s.newID()
	}
	svc := s.cache.Service(settings, config.ServiceRankVar, "json")

	var reports verrors.Reports
	data, ok, rep := svc.Get(ctx, uniqueID, false)
	reports.Extend(rep)
	if ok {
		return s.cachedVariant(uniqueID, data, SourceCacheID, start)
	}
	if req.Key != "" {
		data, ok, rep := svc.Get(ctx, req.Key, true)
		reports.Extend(rep)
		if ok {
			return s.cachedVariant(uniqueID, data, SourceCacheKey, start)
		}
	}

	if s.claims != nil && svc.Enabled() {
		held, finished, err := s.claim(ctx, svc, uniqueID)
		switch {
		case err != nil:
			return nil, err
		case finished != nil:
			return s.cachedVariant(uniqueID, finished, SourceWaited, start)
		case held != nil:
			stop := s.claims.KeepAlive(context.WithoutCancel(ctx), *held, s.batch.Heartbeat)
			defer func() {
				stop()
				if err := s.claims.Release(*held); err != nil {
					slog.Warn("claim_release_failed", slog.String("unique_id", uniqueID), slog.String("error", err.Error()))
				}
			}()
		default:
			reports.Warn(config.ServiceRankVar, "Work claim failed", uniqueID)
		}
	}

	out, topics, rep := s.computeVariants(ctx, settings, req, uniqueID)
	reports.Extend(rep)
	resp := s.finish(config.ServiceRankVar, uniqueID, reports, func(r verrors.Reports) any {
		out.Errors = nonNilReports(r)
		return out
	}, svc, uniqueID, req.Key)
	s.observe(config.ServiceRankVar, resp.Source, topics, start)
	return resp, nil
}

// claim acquires the run and returns the held claim. When another request
// holds it, in this process or another, claim waits for the result and
// returns its body as finished; a dead holder is taken over and a timeout
// yields cache.ErrStillProcessing. Neither held nor finished means the
// claim store failed and the run goes on unclaimed.
func (s *Service) claim(ctx context.Context, svc *cache.Service, uniqueID string) (held *cache.Claim, finished []byte, err error) {
	current, acquired, err := s.claims.Acquire(uniqueID)
	if err != nil {
		slog.Warn("claim_failed", slog.String("unique_id", uniqueID), slog.String("error", err.Error()))
		return nil, nil, nil
	}
	if acquired {
		// A run finished between the cache lookup and the claim.
		if svc.Fresh(uniqueID, false) {
			if data, _ := svc.Load(ctx, uniqueID); data != nil {
				if err := s.claims.Release(current); err != nil {
					slog.Warn("claim_release_failed", slog.String("unique_id", uniqueID), slog.String("error", err.Error()))
				}
				return nil, data, nil
			}
		}
		return &current, nil, nil
	}

	slog.Info("batch_waiting",
		slog.String("unique_id", uniqueID),
		slog.String("owner", current.Owner),
		slog.Duration("timeout", s.batch.PollTimeout))
	err = cache.WaitForResult(ctx, cache.WaitOptions{
		Dir:      filepath.Dir(svc.Path(uniqueID)),
		Interval: s.batch.PollInterval,
		Timeout:  s.batch.PollTimeout,
		Abandoned: func() bool {
			c, ok, err := s.claims.Get(uniqueID)
			return err == nil && (!ok || !c.Live(s.now()))
		},
	}, func() bool { return svc.Fresh(uniqueID, false) })

	switch {
	case err == nil:
		data, rep := svc.Load(ctx, uniqueID)
		if data == nil {
			return nil, nil, fmt.Errorf("load finished run %s: %v", uniqueID, rep)
		}
		return nil, data, nil
	case errors.Is(err, cache.ErrAbandoned):
		// The holder may have finished between the last poll and now.
		if svc.Fresh(uniqueID, false) {
			if data, _ := svc.Load(ctx, uniqueID); data != nil {
				return nil, data, nil
			}
		}
		taken, acquired, err := s.claims.Acquire(uniqueID)
		if err != nil {
			return nil, nil, nil
		}
		if !acquired {
			return nil, nil, cache.ErrStillProcessing
		}
		slog.Info("batch_taken_over", slog.String("unique_id", uniqueID), slog.String("previous_owner", current.Owner))
		return &taken, nil, nil
	default:
		return nil, nil, err
	}
}

func (s *Service) cachedVariant(uniqueID string, data []byte, source Source, start time.Time) (*Response, error) {
	body, err := withUniqueID(data, uniqueID)
	if err != nil {
		slog.Warn("cached_output_unreadable", slog.String("unique_id", uniqueID), slog.String("error", err.Error()))
		body = data
	}
	s.observe(config.ServiceRankVar, source, 0, start)
	return &Response{UniqueID: uniqueID, Body: body, Status: http.StatusOK, Source: source}, nil
}

// computeVariants runs every topic of req on every requested collection.
func (s *Service) computeVariants(ctx context.Context, settings config.Settings, req Request, uniqueID string) (*VariantOutput, int, verrors.Reports) {
	var reports verrors.Reports
	out := &VariantOutput{UniqueID: uniqueID, Settings: settings.AsJSON(), Data: []TopicJSON{}}

	texts := splitTopics(req.Input.GenVars)
	if req.File != "" {
		var (
			path string
			err  error
		)
		texts, path, err = ReadTopicFile(s.apiFilesDir, req.File)
		if err != nil {
			slog.Warn("variant_file_unreadable", slog.String("path", path), slog.String("error", err.Error()))
			reports.Fatal(ServiceVCF, "VCF file not found", path)
			return out, 0, reports
		}
	}

	s.statusLine(uniqueID, "Start normalizing lines")
	s.progress(Event{Stage: StageNormalize, Total: len(texts)})

	baseInput := req.Input
	baseInput.GenVars = ""
	base, rep := s.normalizer.Normalize(ctx, settings, baseInput)
	reports.Extend(rep)

	topics := make([]*query.Query, 0, len(texts))
	entities := make([]*document.Entities, 0, len(texts))
	for i, text := range texts {
		s.statusLine(uniqueID, fmt.Sprintf("Normalizing variant %d/%d", i+1, len(texts)))
		s.progress(Event{Stage: StageNormalize, Current: i + 1, Total: len(texts), Message: text})
		q, rep := s.normalizer.WithGenVars(ctx, settings, base, text)
		reports.Extend(rep)
		topics = append(topics, q)
		entities = append(entities, rank.Entities(settings, q))
	}

	collections := settings.User.Collections
	tables, rep := s.rankAll(ctx, settings, uniqueID, topics, entities, collections)
	reports.Extend(rep)

	s.statusLine(uniqueID, "Preparing json")
	s.progress(Event{Stage: StagePrepare, Total: len(topics)})

	for i, q := range topics {
		t := TopicJSON{
			Query:           q.Init(settings),
			NormalizedQuery: q.Normalized(),
			Collections:     collections,
			Scores:          make(map[string]CollectionScore, len(collections)),
		}
		ids := make(map[string]struct{})
		var pubs *Publications
		if !req.Light {
			pubs = &Publications{Collections: collections, Documents: make(map[string][]*document.Document, len(collections))}
		}
		for j, coll := range collections {
			tbl := tables[i][j]
			count, sum := tbl.Score()
			t.Scores[coll] = CollectionScore{Count: count, Score: sum}
			for _, id := range tbl.IDs() {
				ids[id] = struct{}{}
			}
			if pubs != nil {
				docs, rep := tbl.Documents(ctx, settings, s.ranker.Enricher(), entities[i])
				reports.Extend(rep)
				pubs.Documents[coll] = docs
			}
		}
		t.TotalScore = len(ids)
		t.Publications = pubs
		out.Data = append(out.Data, t)
	}

	sort.SliceStable(out.Data, func(a, b int) bool {
		return out.Data[a].TotalScore > out.Data[b].TotalScore
	})
	s.progress(Event{Stage: StageDone, Current: len(topics), Total: len(topics)})
	return out, len(topics), reports
}

// rankAll ranks every topic on every collection. Collections run
// concurrently up to the configured parallelism; the topics of one
// collection run in order. tables[topic][collection] follows the input
// orders. Status lines are written only for a non-empty uniqueID.
func (s *Service) rankAll(ctx context.Context, settings config.Settings, uniqueID string, topics []*query.Query, entities []*document.Entities, collections []string) ([][]*rank.Table, verrors.Reports) {
	tables := make([][]*rank.Table, len(topics))
	for i := range tables {
		tables[i] = make([]*rank.Table, len(collections))
	}

	var reports verrors.Reports
	perCollection := make([]verrors.Reports, len(collections))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.batch.Parallelism))
	for j, coll := range collections {
		g.Go(func() error {
			for i, q := range topics {
				if err := gctx.Err(); err != nil {
					return err
				}
				s.statusLine(uniqueID, fmt.Sprintf("Searching variant %d/%d in %s", i+1, len(topics), coll))

				tbl, rep := s.ranker.Rank(gctx, settings, q, coll, entities[i])
				tables[i][j] = tbl
				s.progress(Event{Stage: StageSearch, Current: i + 1, Total: len(topics), Collection: coll, Message: q.Input.GenVars, Found: tbl.Len()})
				perCollection[j] = append(perCollection[j], rep...)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		reports.Warn(config.ServiceRankVar, "Ranking cancelled", err.Error())
	}
	for _, rep := range perCollection {
		reports.Extend(rep)
	}
	for i := range tables {
		for j := range tables[i] {
			if tables[i][j] == nil {
				tables[i][j] = &rank.Table{}
			}
		}
	}
	return tables, reports
}

// RankLit ranks the literature for one query on every requested
// collection.
func (s *Service) RankLit(ctx context.Context, settings config.Settings, req Request) (*Response, error) {
	start := s.now()
	uniqueID := req.UniqueID
	if uniqueID == "" {
		uniqueID = s.newID()
	}
	svc := s.cache.Service(settings, config.ServiceRankLit, "json")

	var reports verrors.Reports
	if req.Key != "" {
		data, ok, rep := svc.Get(ctx, req.Key, true)
		reports.Extend(rep)
		if ok {
			s.observe(config.ServiceRankLit, SourceCacheKey, 0, start)
			return &Response{UniqueID: uniqueID, Body: data, Status: http.StatusOK, Source: SourceCacheKey}, nil
		}
	}

	input := req.Input
	input.IDs = nil
	q, rep := s.normalizer.Normalize(ctx, settings, input)
	reports.Extend(rep)
	entities := rank.Entities(settings, q)

	collections := settings.User.Collections
	tables, rep := s.rankAll(ctx, settings, "", []*query.Query{q}, []*document.Entities{entities}, collections)
	reports.Extend(rep)

	pubs := Publications{Collections: collections, Documents: make(map[string][]*document.Document, len(collections))}
	for j, coll := range collections {
		docs, rep := tables[0][j].Documents(ctx, settings, s.ranker.Enricher(), entities)
		reports.Extend(rep)
		pubs.Documents[coll] = docs
	}

	out := &LiteratureOutput{
		UniqueID:        uniqueID,
		Settings:        settings.AsJSON(),
		Query:           q.Init(settings),
		NormalizedQuery: q.Normalized(),
		Publications:    pubs,
	}
	resp := s.finish(config.ServiceRankLit, uniqueID, reports, func(r verrors.Reports) any {
		out.Errors = nonNilReports(r)
		return out
	}, svc, req.Key)
	s.observe(config.ServiceRankLit, resp.Source, 1, start)
	return resp, nil
}

// FetchDoc returns the documents req.Input.IDs of req.Input.Collection,
// highlighted with the query entities.
func (s *Service) FetchDoc(ctx context.Context, settings config.Settings, req Request) (*Response, error) {
	start := s.now()
	uniqueID := req.UniqueID
	if uniqueID == "" {
		uniqueID = s.newID()
	}
	svc := s.cache.Service(settings, config.ServiceFetchDoc, "json")

	var reports verrors.Reports
	if req.Key != "" {
		data, ok, rep := svc.Get(ctx, req.Key, true)
		reports.Extend(rep)
		if ok {
			s.observe(config.ServiceFetchDoc, SourceCacheKey, 0, start)
			return &Response{UniqueID: uniqueID, Body: data, Status: http.StatusOK, Source: SourceCacheKey}, nil
		}
	}

	input := req.Input
	if input.Collection == "" {
		input.Collection = config.CollectionMedline
	}
	q, rep := s.normalizer.Normalize(ctx, settings, input)
	reports.Extend(rep)
	entities := rank.Entities(settings, q)

	enricher := s.ranker.Enricher()
	docs := make([]*document.Document, 0, len(input.IDs))
	for _, id := range input.IDs {
		d, rep := enricher.Fetch(ctx, settings, id, input.Collection)
		reports.Extend(rep)
		if d == nil {
			continue
		}
		reports.Extend(enricher.Enrich(ctx, settings, d, entities))
		docs = append(docs, d)
	}

	out := &FetchOutput{
		UniqueID:        uniqueID,
		Query:           q.Init(settings),
		NormalizedQuery: q.Normalized(),
		Publications:    docs,
	}
	resp := s.finish(config.ServiceFetchDoc, uniqueID, reports, func(r verrors.Reports) any {
		out.Errors = nonNilReports(r)
		return out
	}, svc, req.Key)
	s.observe(config.ServiceFetchDoc, resp.Source, len(docs), start)
	return resp, nil
}

// Status returns the progress of the variant batch uniqueID: the finished
// message once its result is cached, else its last status line, else "".
func (s *Service) Status(ctx context.Context, settings config.Settings, uniqueID string) (string, error) {
	svc := s.cache.Service(settings, config.ServiceRankVar, "json")
	if svc.Fresh(uniqueID, false) {
		return FinishedMessage, nil
	}
	msg, _, err := s.status.Last(uniqueID)
	if err != nil {
		return "", err
	}
	return msg, nil
}

// finish renders a computed body. A fatal report yields the error
// envelope and nothing is cached. Otherwise the body is cached under every
// non-empty key, and cache write failures are added to its errors.
// Reports are appended to the error log of their service in both cases.
func (s *Service) finish(service, uniqueID string, reports verrors.Reports, build func(verrors.Reports) any, svc *cache.Service, keys ...string) *Response {
	reports = reports.Dedup()
	defer s.logReports(uniqueID, reports)

	if fatal, ok := reports.FirstFatal(); ok {
		slog.Warn("request_failed",
			slog.String("service", service),
			slog.String("unique_id", uniqueID),
			slog.String("report", fatal.String()))
		body, _ := encode(verrors.NewEnvelope(fatal, s.now()))
		return &Response{UniqueID: uniqueID, Body: body, Status: http.StatusInternalServerError, Source: SourceComputed}
	}

	body, err := encode(build(reports))
	if err != nil {
		rep := verrors.Report{Level: verrors.LevelFatal, Service: service, Description: "Output encoding failed", Details: err.Error()}
		body, _ = encode(verrors.NewEnvelope(rep, s.now()))
		return &Response{UniqueID: uniqueID, Body: body, Status: http.StatusInternalServerError, Source: SourceComputed}
	}

	var cacheReports verrors.Reports
	for _, key := range keys {
		if key != "" {
			cacheReports.Extend(svc.Put(key, body))
		}
	}
	if len(cacheReports) > 0 {
		reports = append(reports, cacheReports...).Dedup()
		if b, err := encode(build(reports)); err == nil {
			body = b
		}
	}

	slog.Debug("request_done",
		slog.String("service", service),
		slog.String("unique_id", uniqueID),
		slog.Int("bytes", len(body)),
		slog.Int("reports", len(reports)))
	return &Response{UniqueID: uniqueID, Body: body, Status: http.StatusOK, Source: SourceComputed}
}

// logReports appends reports to the error log of their own service.
func (s *Service) logReports(uniqueID string, reports verrors.Reports) {
	if s.errors == nil || len(reports) == 0 {
		return
	}
	byService := make(map[string]verrors.Reports)
	var order []string
	for _, r := range reports {
		if _, ok := byService[r.Service]; !ok {
			order = append(order, r.Service)
		}
		byService[r.Service] = append(byService[r.Service], r)
	}
	for _, service := range order {
		if err := s.errors.Append(service, uniqueID, byService[service]); err != nil {
			slog.Warn("error_log_failed", slog.String("service", service), slog.String("error", err.Error()))
		}
	}
}

func (s *Service) statusLine(uniqueID, message string) {
	if s.status == nil || uniqueID == "" {
		return
	}
	if err := s.status.Append(uniqueID, message); err != nil {
		slog.Warn("status_write_failed", slog.String("unique_id", uniqueID), slog.String("error", err.Error()))
	}
}

func (s *Service) observe(service string, source Source, topics int, start time.Time) {
	if s.observer != nil {
		s.observer.ObserveRequest(service, source, topics, s.now().Sub(start))
	}
}
