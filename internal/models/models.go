package models

import (
	"strings"
	"time"
)

// PillarKind identifies one of the three analysis dimensions.
type PillarKind string

const (
	PillarTechnical   PillarKind = "technical"
	PillarFundamental PillarKind = "fundamental"
	PillarSentiment   PillarKind = "sentiment"
)

// Kinds lists all pillar kinds in canonical order.
func Kinds() []PillarKind {
	return []PillarKind{PillarTechnical, PillarFundamental, PillarSentiment}
}

// PillarStatus is the outcome of a single pillar attempt.
type PillarStatus string

const (
	// PillarOK means the pillar produced a usable score.
	PillarOK PillarStatus = "OK"
	// PillarUnavailable means the underlying data does not exist for this
	// ticker (e.g. ETFs have no fundamentals). Expected, not an error.
	PillarUnavailable PillarStatus = "UNAVAILABLE"
	// PillarFailed means an upstream fault or timeout prevented scoring.
	PillarFailed PillarStatus = "FAILED"
)

// PillarResult is one pillar attempt. Score is only meaningful when
// Status == PillarOK. Immutable once produced.
type PillarResult struct {
	Kind   PillarKind     `json:"kind"`
	Status PillarStatus   `json:"status"`
	Score  float64        `json:"score,omitempty"`
	Detail map[string]any `json:"detail,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// WeightVector maps pillar kinds to weights. Weights over the OK set of a
// request sum to 1.
type WeightVector map[PillarKind]float64

// Signal is the directional recommendation.
type Signal string

const (
	SignalStrongBuy  Signal = "STRONG_BUY"
	SignalBuy        Signal = "BUY"
	SignalHold       Signal = "HOLD"
	SignalSell       Signal = "SELL"
	SignalStrongSell Signal = "STRONG_SELL"
)

// ParseSignal normalizes a model-emitted signal string. Unknown values
// report ok=false so callers can fall back to HOLD.
func ParseSignal(s string) (Signal, bool) {
	switch Signal(strings.ToUpper(strings.TrimSpace(s))) {
	case SignalStrongBuy:
		return SignalStrongBuy, true
	case SignalBuy:
		return SignalBuy, true
	case SignalHold:
		return SignalHold, true
	case SignalSell:
		return SignalSell, true
	case SignalStrongSell:
		return SignalStrongSell, true
	}
	return SignalHold, false
}

// AnalysisRecord is the cached unit of work: one complete analysis for one
// ticker. Confidence is always the orchestrator's reweighted number, never
// the model's own claim. Records are never mutated after creation; the
// cache hands out copies.
type AnalysisRecord struct {
	Ticker      string         `json:"ticker"`
	Signal      Signal         `json:"signal"`
	Confidence  float64        `json:"confidence"`
	Explanation string         `json:"explanation"`
	Pillars     []PillarResult `json:"pillar_results"`
	GeneratedAt time.Time      `json:"generated_at"`
	Cached      bool           `json:"cached"`
}

// Clone returns a deep, independent copy of the record.
func (r *AnalysisRecord) Clone() *AnalysisRecord {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Pillars = make([]PillarResult, len(r.Pillars))
	for i, p := range r.Pillars {
		cp.Pillars[i] = p
		if p.Detail != nil {
			detail := make(map[string]any, len(p.Detail))
			for k, v := range p.Detail {
				detail[k] = v
			}
			cp.Pillars[i].Detail = detail
		}
	}
	return &cp
}

// OKSet returns which pillar kinds scored OK.
func (r *AnalysisRecord) OKSet() map[PillarKind]bool {
	ok := make(map[PillarKind]bool, len(r.Pillars))
	for _, p := range r.Pillars {
		if p.Status == PillarOK {
			ok[p.Kind] = true
		}
	}
	return ok
}

// PillarFlags selects which pillars a request wants computed.
type PillarFlags struct {
	Technical   bool `json:"include_technical"`
	Fundamental bool `json:"include_fundamental"`
	Sentiment   bool `json:"include_sentiment"`
}

// AllPillars enables every pillar.
func AllPillars() PillarFlags {
	return PillarFlags{Technical: true, Fundamental: true, Sentiment: true}
}

// Any reports whether at least one pillar is requested.
func (f PillarFlags) Any() bool {
	return f.Technical || f.Fundamental || f.Sentiment
}

// Candle is one bar of price history.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// PriceSeries is daily price history for a ticker, oldest first.
type PriceSeries struct {
	Ticker   string   `json:"ticker"`
	Currency string   `json:"currency"`
	Candles  []Candle `json:"candles"`
}

// Closes returns the close prices, oldest first.
func (p *PriceSeries) Closes() []float64 {
	out := make([]float64, len(p.Candles))
	for i, c := range p.Candles {
		out[i] = c.Close
	}
	return out
}

// Volumes returns the volumes, oldest first.
func (p *PriceSeries) Volumes() []float64 {
	out := make([]float64, len(p.Candles))
	for i, c := range p.Candles {
		out[i] = c.Volume
	}
	return out
}

// LastClose returns the most recent close, or 0 for an empty series.
func (p *PriceSeries) LastClose() float64 {
	if len(p.Candles) == 0 {
		return 0
	}
	return p.Candles[len(p.Candles)-1].Close
}

// FundamentalSnapshot holds the ratio set the fundamental pillar scores.
// Nil fields mean the data source does not report that metric.
type FundamentalSnapshot struct {
	PERatio        *float64 `json:"pe_ratio,omitempty"`
	PEGRatio       *float64 `json:"peg_ratio,omitempty"`
	PriceToBook    *float64 `json:"price_to_book,omitempty"`
	ProfitMargin   *float64 `json:"profit_margin,omitempty"`
	ReturnOnEquity *float64 `json:"return_on_equity,omitempty"`
	RevenueGrowth  *float64 `json:"revenue_growth,omitempty"`
	EarningsGrowth *float64 `json:"earnings_growth,omitempty"`
	DebtToEquity   *float64 `json:"debt_to_equity,omitempty"`
	CurrentRatio   *float64 `json:"current_ratio,omitempty"`
	FreeCashFlow   *float64 `json:"free_cash_flow,omitempty"`
	DividendYield  *float64 `json:"dividend_yield,omitempty"`
	MarketCap      *float64 `json:"market_cap,omitempty"`
}

// Headline is one news item about a ticker.
type Headline struct {
	Title       string    `json:"title"`
	Source      string    `json:"source,omitempty"`
	URL         string    `json:"url,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
}

// SearchResult is one hit from the knowledge base.
type SearchResult struct {
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	DocType string  `json:"doc_type,omitempty"`
}
