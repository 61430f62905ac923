package models

import "context"

// External collaborators. The orchestrator and agent depend only on these
// interfaces; concrete implementations live in internal/providers and
// internal/pillars.

// PriceProvider fetches raw price history. Implementations return
// ErrTickerNotFound (wrapped) when the symbol has no market data at all.
type PriceProvider interface {
	FetchPriceSeries(ctx context.Context, ticker string) (*PriceSeries, error)
}

// FundamentalsProvider fetches fundamental ratios. Implementations return
// ErrPillarUnavailable (wrapped) when the ticker has no fundamentals.
type FundamentalsProvider interface {
	FetchFundamentals(ctx context.Context, ticker string) (*FundamentalSnapshot, error)
}

// HeadlineProvider fetches recent news headlines for a ticker.
type HeadlineProvider interface {
	FetchHeadlines(ctx context.Context, ticker string, limit int) ([]Headline, error)
}

// Embedder turns text into a vector for semantic search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
