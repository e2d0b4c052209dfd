package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/scry/internal/config"
	serrors "github.com/Aman-CERP/scry/internal/errors"
	"github.com/Aman-CERP/scry/internal/oracle"
	"github.com/Aman-CERP/scry/internal/store"
	"github.com/Aman-CERP/scry/internal/telemetry"
)

// WhyLimit is how deep Why looks for a document.
const WhyLimit = 50

// QueryLogger stores served queries so a later usage record can name a
// query ID and a rank. *store.UsageStore satisfies it.
type QueryLogger interface {
	LogQuery(ctx context.Context, entry store.QueryLogEntry) error
}

// Orienter lists files by structural importance. *store.SignalStore
// satisfies it.
type Orienter interface {
	Orient(ctx context.Context, dir string, limit int) ([]store.OrientEntry, error)
}

var (
	_ QueryLogger = (*store.UsageStore)(nil)
	_ Orienter    = (*store.SignalStore)(nil)
)

// Engine runs queries against a fixed set of registered oracles and fuses
// their ranked lists.
type Engine struct {
	registry    *oracle.Registry
	config      config.SearchConfig
	fusion      *RRFFusion
	classifier  *IntentClassifier
	annotations AnnotationSource
	usage       UsageSource
	queryLog    QueryLogger
	orient      Orienter
	metrics     *telemetry.QueryMetrics // Optional query telemetry collector
	breakers    map[string]*serrors.CircuitBreaker
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithClassifier replaces the default intent classifier.
func WithClassifier(c *IntentClassifier) EngineOption {
	return func(e *Engine) {
		e.classifier = c
	}
}

// WithAnnotations sets the structural signal source. Without one, results
// carry no annotations.
func WithAnnotations(src AnnotationSource) EngineOption {
	return func(e *Engine) {
		e.annotations = src
	}
}

// WithUsage sets the usage source for the use-count boost.
func WithUsage(src UsageSource) EngineOption {
	return func(e *Engine) {
		e.usage = src
	}
}

// WithMetrics sets an optional query metrics collector for telemetry.
// When set, intent, latency, zero-result queries and per-source outcomes
// are tracked.
func WithMetrics(m *telemetry.QueryMetrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithQueryLog records every served query.
func WithQueryLog(l QueryLogger) EngineOption {
	return func(e *Engine) {
		e.queryLog = l
	}
}

// WithOrient sets the source of the orient listing.
func WithOrient(o Orienter) EngineOption {
	return func(e *Engine) {
		e.orient = o
	}
}

// WithConfig replaces the default search configuration.
func WithConfig(cfg config.SearchConfig) EngineOption {
	return func(e *Engine) {
		e.config = cfg
	}
}

// NewEngine creates an engine over registry. The engine owns the registry
// and closes it in Close.
func NewEngine(registry *oracle.Registry, opts ...EngineOption) (*Engine, error) {
	if registry == nil {
		return nil, serrors.InternalError("search engine needs a registry", nil)
	}

	e := &Engine{
		registry: registry,
		config:   config.NewConfig().Search,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.classifier == nil {
		e.classifier = NewIntentClassifier(DefaultClassifierCacheSize)
	}
	e.fusion = NewRRFFusionWithK(e.config.RRFConstant)

	e.breakers = make(map[string]*serrors.CircuitBreaker, registry.Len())
	for _, name := range registry.Names() {
		e.breakers[name] = serrors.NewCircuitBreaker(name,
			serrors.WithMaxFailures(e.config.CircuitFailures))
	}

	return e, nil
}

// Search answers q. It fails only for an empty query or an unknown mode;
// source failures omit the source, and when every source fails the result
// list is empty.
func (e *Engine) Search(ctx context.Context, q Query, opts SearchOptions) (*Response, error) {
	return e.search(ctx, q, e.clampLimit(q.Limit), opts)
}

func (e *Engine) search(ctx context.Context, q Query, limit int, opts SearchOptions) (*Response, error) {
	start := time.Now()

	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, serrors.New(serrors.ErrCodeQueryEmpty, "query is empty", nil).
			WithSuggestion("Pass a non-empty query")
	}
	mode, err := ParseMode(string(q.Mode))
	if err != nil {
		return nil, err
	}

	intent := IntentForMode(mode, func() Intent { return e.classifier.Classify(text) })
	plan := Plan(intent, e.registry.Names())
	slog.Debug("query classified",
		slog.String("query", text),
		slog.String("mode", string(mode)),
		slog.String("intent", string(intent)),
		slog.String("plan", strings.Join(plan, ",")))

	lists, reports := e.runOracles(ctx, plan, text, limit*max(e.config.OverFetch, 1))
	lists = e.checkGranularity(plan, lists, reports)

	fused := e.fusion.Fuse(lists)
	Annotate(ctx, e.annotations, fused)
	capped := CapPerFile(fused, e.config.MaxPerFile)
	boosted := boostByUsage(ctx, e.usage, capped, e.config.UsageBoost)

	results := boosted
	if len(results) > limit {
		results = results[:limit]
	}

	resp := &Response{
		QueryID: uuid.NewString(),
		Query:   text,
		Mode:    mode,
		Intent:  intent,
		Results: results,
		Latency: time.Since(start),
	}
	if opts.Explain {
		resp.Explain = &Explain{
			Intent:   intent,
			Plan:     plan,
			Sources:  reports,
			K:        e.fusion.K,
			Fused:    len(fused),
			Capped:   len(capped),
			Returned: len(results),

			UsageBoost: e.config.UsageBoost,
		}
	}

	e.recordMetrics(resp, reports)
	e.logQuery(ctx, resp)

	return resp, nil
}

// runOracles queries the planned oracles concurrently, each for fetch
// results. Every goroutine records its own outcome and returns nil, so one
// failing source never cancels the others. Reports follow plan order.
func (e *Engine) runOracles(ctx context.Context, plan []string, text string, fetch int) (map[string][]oracle.Result, []SourceReport) {
	reports := make([]SourceReport, len(plan))
	found := make([][]oracle.Result, len(plan))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range plan {
		reports[i].Name = name

		o, ok := e.registry.Get(name)
		if !ok || !o.Available() {
			reports[i].Status = StatusUnavailable
			slog.Debug("source omitted", slog.String("source", name), slog.String("reason", "unavailable"))
			continue
		}
		breaker := e.breakers[name]
		if breaker != nil && !breaker.Allow() {
			reports[i].Status = StatusCircuitOpen
			slog.Warn("source omitted", slog.String("source", name), slog.String("reason", "circuit open"))
			continue
		}

		g.Go(func() error {
			start := time.Now()
			results, err := o.Query(gctx, text, fetch)
			reports[i].Latency = time.Since(start)

			if err != nil {
				reports[i].Status = e.sourceFailed(gctx, name, breaker, err)
				reports[i].Error = err.Error()
				return nil
			}
			if breaker != nil {
				breaker.RecordSuccess()
			}

			found[i] = results
			reports[i].Results = len(results)
			reports[i].Status = StatusOK
			if len(results) == 0 {
				reports[i].Status = StatusEmpty
			}
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors

	lists := make(map[string][]oracle.Result, len(plan))
	for i, name := range plan {
		if reports[i].Status.Fused() {
			lists[name] = found[i]
		}
	}
	return lists, reports
}

// sourceFailed classifies a query error and logs it. Unavailable stores do
// not count against the circuit; runtime failures do, unless the caller's
// context ended.
func (e *Engine) sourceFailed(ctx context.Context, name string, breaker *serrors.CircuitBreaker, err error) SourceStatus {
	status := StatusFailed
	switch {
	case errors.Is(err, oracle.ErrUnavailable), serrors.IsCode(err, serrors.ErrCodeCorruptIndex),
		serrors.IsCode(err, serrors.ErrCodeStoreNotFound), serrors.IsCode(err, serrors.ErrCodeStoreClosed):
		status = StatusUnavailable
	case ctx.Err() != nil:
	default:
		if breaker != nil {
			breaker.RecordFailure()
		}
	}

	slog.Warn("source omitted",
		slog.String("source", name),
		slog.String("status", string(status)),
		slog.String("code", serrors.GetCode(err)),
		slog.String("error", err.Error()))
	return status
}

// checkGranularity keeps the lists that share the granularity of the
// first fused source in plan order and marks the rest as mismatched.
func (e *Engine) checkGranularity(plan []string, lists map[string][]oracle.Result, reports []SourceReport) map[string][]oracle.Result {
	var want oracle.Granularity
	for i, name := range plan {
		if !reports[i].Status.Fused() {
			continue
		}
		o, _ := e.registry.Get(name)
		if want == "" {
			want = o.Granularity()
			continue
		}
		if got := o.Granularity(); got != want {
			err := serrors.New(serrors.ErrCodeGranularityMismatch,
				fmt.Sprintf("source %s returns %s ids, fusing %s ids", name, got, want), nil).
				WithDetail("source", name)
			slog.Warn("source omitted",
				slog.String("source", name),
				slog.String("status", string(StatusGranularityMismatch)),
				slog.String("code", err.Code),
				slog.String("error", err.Error()))
			reports[i].Status = StatusGranularityMismatch
			reports[i].Error = err.Error()
			delete(lists, name)
		}
	}
	return lists
}

func (e *Engine) clampLimit(limit int) int {
	if limit <= 0 {
		limit = e.config.DefaultLimit
	}
	if limit <= 0 {
		limit = 10
	}
	if e.config.MaxLimit > 0 && limit > e.config.MaxLimit {
		limit = e.config.MaxLimit
	}
	return limit
}

// recordMetrics records query telemetry if metrics collector is configured.
func (e *Engine) recordMetrics(resp *Response, reports []SourceReport) {
	if e.metrics == nil {
		return
	}
	sources := make([]telemetry.SourceEvent, len(reports))
	for i, r := range reports {
		sources[i] = telemetry.SourceEvent{
			Name:    r.Name,
			Status:  string(r.Status),
			Results: r.Results,
			Latency: r.Latency,
		}
	}
	e.metrics.Record(telemetry.QueryEvent{
		Query:       resp.Query,
		QueryType:   telemetry.QueryType(resp.Intent),
		ResultCount: len(resp.Results),
		Latency:     resp.Latency,
		Timestamp:   time.Now(),
		Sources:     sources,
	})
}

func (e *Engine) logQuery(ctx context.Context, resp *Response) {
	if e.queryLog == nil {
		return
	}
	ids := make([]string, len(resp.Results))
	for i, r := range resp.Results {
		ids[i] = r.DocID
	}
	err := e.queryLog.LogQuery(ctx, store.QueryLogEntry{
		QueryID:   resp.QueryID,
		Query:     resp.Query,
		Mode:      string(resp.Mode),
		Intent:    string(resp.Intent),
		DocIDs:    ids,
		CreatedAt: time.Now(),
	})
	if err != nil {
		slog.Warn("query log write failed",
			slog.String("query_id", resp.QueryID),
			slog.String("error", err.Error()))
	}
}

// Why runs text with a wide limit and locates docID in the fused list.
func (e *Engine) Why(ctx context.Context, docID, text string) (*WhyResult, error) {
	if strings.TrimSpace(docID) == "" {
		return nil, serrors.ValidationError("document id is empty", nil)
	}
	resp, err := e.search(ctx, Query{Text: text, Mode: ModeWhy}, WhyLimit, SearchOptions{Explain: true})
	if err != nil {
		return nil, err
	}

	for i, r := range resp.Results {
		if r.DocID == docID {
			return &WhyResult{Rank: i + 1, Result: r, Response: resp}, nil
		}
	}

	top := make([]string, 0, 5)
	for _, r := range resp.Results {
		if len(top) == 5 {
			break
		}
		top = append(top, r.DocID)
	}
	return nil, serrors.New(serrors.ErrCodeResultNotFound,
		fmt.Sprintf("%s is not in the top %d results", docID, WhyLimit), nil).
		WithDetail("doc_id", docID).
		WithDetail("top", strings.Join(top, ", "))
}

// Orient lists files under dir by structural importance. The listing is
// separate from fusion and never affects search order.
func (e *Engine) Orient(ctx context.Context, dir string, limit int) ([]store.OrientEntry, error) {
	if e.orient == nil {
		return nil, serrors.SourceUnavailable("signals", errors.New("no signal store configured"))
	}
	return e.orient.Orient(ctx, dir, e.clampLimit(limit))
}

// Sources lists every registered oracle with its availability.
func (e *Engine) Sources() []SourceInfo {
	all := e.registry.All()
	infos := make([]SourceInfo, len(all))
	for i, o := range all {
		info := SourceInfo{
			Name:        o.Name(),
			Available:   o.Available(),
			Granularity: o.Granularity(),
			Circuit:     serrors.StateClosed.String(),
		}
		if b := e.breakers[o.Name()]; b != nil {
			info.Circuit = b.State().String()
		}
		infos[i] = info
	}
	return infos
}

// Close closes every oracle. Stores passed through options stay owned by
// the caller.
func (e *Engine) Close() error {
	return e.registry.Close()
}
