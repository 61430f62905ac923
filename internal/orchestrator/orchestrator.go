package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/stocklens/stocklens/internal/agent"
	"github.com/stocklens/stocklens/internal/cache"
	"github.com/stocklens/stocklens/internal/config"
	"github.com/stocklens/stocklens/internal/events"
	"github.com/stocklens/stocklens/internal/metrics"
	"github.com/stocklens/stocklens/internal/models"
	"github.com/stocklens/stocklens/internal/weights"
)

// reconcileThreshold is how far the model's claimed confidence may drift
// from the reweighted combination before we log it at warn level. The
// computed number always wins either way.
const reconcileThreshold = 0.25

// computeTimeout bounds one detached analysis computation.
const computeTimeout = 60 * time.Second

var tickerPattern = regexp.MustCompile(`^[A-Z0-9.\-]{1,10}$`)

// NormalizeTicker uppercases, trims, and validates a ticker symbol.
func NormalizeTicker(ticker string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(ticker))
	if !tickerPattern.MatchString(normalized) {
		return "", fmt.Errorf("%w: %q", models.ErrInvalidTicker, ticker)
	}
	return normalized, nil
}

// SeriesScorer scores the technical pillar from fetched price history.
type SeriesScorer interface {
	ScoreSeries(series *models.PriceSeries) models.PillarResult
}

// PillarScorer scores one pillar for a ticker, fetching its own data.
type PillarScorer interface {
	Score(ctx context.Context, ticker string) models.PillarResult
}

// VerdictAgent produces a signal and explanation given pre-computed pillar
// context.
type VerdictAgent interface {
	Run(ctx context.Context, ticker, pillarContext string) (*agent.Verdict, error)
}

// Config wires an Orchestrator.
type Config struct {
	Cache         cache.Store
	TTL           time.Duration
	PillarTimeout time.Duration
	Prices        models.PriceProvider
	Technical     SeriesScorer
	Fundamental   PillarScorer
	Sentiment     PillarScorer
	Agent         VerdictAgent
	Events        *events.Publisher
}

// Orchestrator runs the full analysis pipeline: cache lookup, concurrent
// pillar scoring, the reasoning agent, reweighted confidence, cache store.
// Concurrent requests for the same ticker share one computation.
type Orchestrator struct {
	cfg    Config
	group  singleflight.Group
	logger zerolog.Logger
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Minute
	}
	if cfg.PillarTimeout <= 0 {
		cfg.PillarTimeout = 10 * time.Second
	}
	return &Orchestrator{
		cfg:    cfg,
		logger: config.NewLogger("orchestrator"),
	}
}

// Analyze produces a recommendation for the ticker. Cache hits return
// immediately with Cached set; misses compute, cache, and return a fresh
// record. Every caller gets its own copy.
func (o *Orchestrator) Analyze(ctx context.Context, ticker string, flags models.PillarFlags) (*models.AnalysisRecord, error) {
	key, err := NormalizeTicker(ticker)
	if err != nil {
		return nil, err
	}
	if !flags.Any() {
		flags = models.AllPillars()
	}

	if record, ok := o.cfg.Cache.Get(ctx, key); ok {
		metrics.ObserveCache(true)
		record.Cached = true
		o.logger.Debug().Str("ticker", key).Msg("Cache hit")
		return record, nil
	}
	metrics.ObserveCache(false)

	// Concurrent misses for the same ticker share one computation; only
	// the winner hits the upstream providers and the model. The work runs
	// on a detached context with its own deadline: coalesced followers
	// must not fail because the winner's caller disconnected.
	result, err, shared := o.group.Do(key, func() (any, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), computeTimeout)
		defer cancel()
		return o.compute(cctx, key, flags)
	})
	if err != nil {
		return nil, err
	}
	record := result.(*models.AnalysisRecord).Clone()
	if shared {
		o.logger.Debug().Str("ticker", key).Msg("Joined in-flight analysis")
	}
	return record, nil
}

// IsCached reports whether a live entry exists for the ticker. The API
// layer uses this to charge rate limits only for uncached work.
func (o *Orchestrator) IsCached(ctx context.Context, ticker string) bool {
	key, err := NormalizeTicker(ticker)
	if err != nil {
		return false
	}
	_, ok := o.cfg.Cache.Get(ctx, key)
	return ok
}

// InvalidateCache drops the cached analysis for one ticker.
func (o *Orchestrator) InvalidateCache(ctx context.Context, ticker string) error {
	key, err := NormalizeTicker(ticker)
	if err != nil {
		return err
	}
	o.cfg.Cache.Invalidate(ctx, key)
	o.cfg.Events.PublishCacheInvalidated(key)
	o.logger.Info().Str("ticker", key).Msg("Cache invalidated")
	return nil
}

// ClearCache drops every cached analysis.
func (o *Orchestrator) ClearCache(ctx context.Context) {
	o.cfg.Cache.Clear(ctx)
	o.cfg.Events.PublishCacheInvalidated("*")
	o.logger.Info().Msg("Cache cleared")
}

func (o *Orchestrator) compute(ctx context.Context, ticker string, flags models.PillarFlags) (*models.AnalysisRecord, error) {
	start := time.Now()

	// Price history doubles as ticker validation: a symbol with no market
	// data at all is a caller error, not a degraded pillar.
	fetchCtx, cancel := context.WithTimeout(ctx, o.cfg.PillarTimeout)
	series, priceErr := o.cfg.Prices.FetchPriceSeries(fetchCtx, ticker)
	cancel()
	if errors.Is(priceErr, models.ErrTickerNotFound) {
		return nil, fmt.Errorf("%w: %s", models.ErrTickerNotFound, ticker)
	}

	results := o.scorePillars(ctx, ticker, flags, series, priceErr)
	for _, res := range results {
		metrics.ObservePillar(string(res.Kind), string(res.Status))
	}

	okSet := okSetOf(results)
	weightVector, err := weights.Reweight(okSet)
	if err != nil {
		o.logger.Error().Str("ticker", ticker).Msg("No pillar produced a score")
		return nil, fmt.Errorf("%w: %s", models.ErrAllPillarsFailed, ticker)
	}
	confidence := weights.Combine(results, weightVector)

	verdict := o.runAgent(ctx, ticker, results)
	if verdict == nil {
		// Rate limiting is the one agent failure that must surface.
		return nil, fmt.Errorf("%w: analysis for %s", models.ErrUpstreamRateLimit, ticker)
	}

	if diff := abs(verdict.Confidence - confidence); diff > reconcileThreshold {
		o.logger.Warn().
			Str("ticker", ticker).
			Float64("model_confidence", verdict.Confidence).
			Float64("computed_confidence", confidence).
			Msg("Model confidence diverges from pillar combination")
	} else {
		o.logger.Debug().
			Str("ticker", ticker).
			Float64("model_confidence", verdict.Confidence).
			Float64("computed_confidence", confidence).
			Msg("Confidence reconciled")
	}

	record := &models.AnalysisRecord{
		Ticker:      ticker,
		Signal:      verdict.Signal,
		Confidence:  confidence,
		Explanation: verdict.Explanation,
		Pillars:     results,
		GeneratedAt: time.Now().UTC(),
	}

	o.cfg.Cache.Put(ctx, ticker, record, o.cfg.TTL)
	o.cfg.Events.PublishAnalysisCompleted(record)
	metrics.ObserveAnalysis(string(record.Signal), time.Since(start))

	o.logger.Info().
		Str("ticker", ticker).
		Str("signal", string(record.Signal)).
		Float64("confidence", confidence).
		Dur("elapsed", time.Since(start)).
		Msg("Analysis completed")
	return record, nil
}

// scorePillars runs the requested pillars concurrently, each under its own
// timeout. A slow or failing pillar degrades to FAILED; it never blocks the
// others past the budget.
func (o *Orchestrator) scorePillars(ctx context.Context, ticker string, flags models.PillarFlags, series *models.PriceSeries, priceErr error) []models.PillarResult {
	var technical, fundamental, sentiment *models.PillarResult
	g, gctx := errgroup.WithContext(ctx)

	if flags.Technical {
		g.Go(func() error {
			var res models.PillarResult
			if priceErr != nil {
				res = models.PillarResult{
					Kind:   models.PillarTechnical,
					Status: models.PillarFailed,
					Error:  priceErr.Error(),
				}
			} else {
				res = o.cfg.Technical.ScoreSeries(series)
			}
			technical = &res
			return nil
		})
	}
	if flags.Fundamental {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(gctx, o.cfg.PillarTimeout)
			defer cancel()
			res := o.cfg.Fundamental.Score(pctx, ticker)
			fundamental = &res
			return nil
		})
	}
	if flags.Sentiment {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(gctx, o.cfg.PillarTimeout)
			defer cancel()
			res := o.cfg.Sentiment.Score(pctx, ticker)
			sentiment = &res
			return nil
		})
	}
	g.Wait()

	// Canonical order: technical, fundamental, sentiment.
	var results []models.PillarResult
	for _, res := range []*models.PillarResult{technical, fundamental, sentiment} {
		if res != nil {
			results = append(results, *res)
		}
	}
	return results
}

// runAgent asks the model for signal and explanation. Any failure other
// than upstream rate limiting degrades to a HOLD verdict so pillar data
// still reaches the caller. A nil return means rate limited.
func (o *Orchestrator) runAgent(ctx context.Context, ticker string, results []models.PillarResult) *agent.Verdict {
	verdict, err := o.cfg.Agent.Run(ctx, ticker, formatPillarContext(results))
	if err == nil {
		return verdict
	}
	if errors.Is(err, models.ErrUpstreamRateLimit) {
		return nil
	}
	o.logger.Error().Str("ticker", ticker).Err(err).Msg("Agent failed, falling back to HOLD")
	return &agent.Verdict{
		Signal:      models.SignalHold,
		Confidence:  0.5,
		Explanation: "Signal analysis temporarily unavailable. Technical and fundamental data are shown below.",
	}
}

// formatPillarContext renders pillar results as readable lines for the
// agent's first user turn.
func formatPillarContext(results []models.PillarResult) string {
	var b strings.Builder
	for _, res := range results {
		switch res.Status {
		case models.PillarOK:
			fmt.Fprintf(&b, "- %s: score %.2f", res.Kind, res.Score)
			if len(res.Detail) > 0 {
				b.WriteString(" (")
				b.WriteString(formatDetail(res.Detail))
				b.WriteString(")")
			}
		case models.PillarUnavailable:
			fmt.Fprintf(&b, "- %s: unavailable (%s)", res.Kind, res.Error)
		case models.PillarFailed:
			fmt.Fprintf(&b, "- %s: failed (%s)", res.Kind, res.Error)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatDetail(detail map[string]any) string {
	keys := make([]string, 0, len(detail))
	for k := range detail {
		if k == "insights" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, detail[k]))
	}
	return strings.Join(parts, ", ")
}

func okSetOf(results []models.PillarResult) map[models.PillarKind]bool {
	ok := make(map[models.PillarKind]bool)
	for _, res := range results {
		if res.Status == models.PillarOK {
			ok[res.Kind] = true
		}
	}
	return ok
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
