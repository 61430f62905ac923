package models

import "errors"

// Error taxonomy. Pillar-level failures are absorbed into reweighting;
// only total failures propagate to the caller.
var (
	// ErrInvalidTicker is a client input error (empty, too long, or bad
	// characters). Not retryable.
	ErrInvalidTicker = errors.New("invalid ticker")

	// ErrTickerNotFound means no market data exists for the symbol.
	ErrTickerNotFound = errors.New("ticker not found")

	// ErrPillarUnavailable marks expected data absence (e.g. ETF
	// fundamentals). Degrades weighting, never surfaces to the caller.
	ErrPillarUnavailable = errors.New("pillar data unavailable")

	// ErrPillarFailed marks a transient upstream fault for one pillar.
	ErrPillarFailed = errors.New("pillar computation failed")

	// ErrAgentExhausted means the reasoning loop hit its turn budget
	// without a terminal verdict. The orchestrator falls back to HOLD.
	ErrAgentExhausted = errors.New("agent turn budget exhausted")

	// ErrUpstreamRateLimit means the model provider throttled us.
	// Surfaced to the caller as retryable.
	ErrUpstreamRateLimit = errors.New("upstream rate limited")

	// ErrAllPillarsFailed means no pillar produced a score, so there is
	// no basis for a recommendation.
	ErrAllPillarsFailed = errors.New("all pillars failed")
)
