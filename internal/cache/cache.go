// Package cache stores completed analyses keyed by normalized ticker, with
// TTL expiry. Get never returns an expired entry; Put overwrites. Returned
// records are deep, independent copies: a caller mutating what it got back
// cannot corrupt the cached value or another caller's copy. Cache faults
// degrade to a miss, never to a request failure.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/stocklens/stocklens/internal/models"
)

// Store is the analysis cache contract.
type Store interface {
	// Get returns a copy of the cached record, or false on miss/expiry.
	Get(ctx context.Context, ticker string) (*models.AnalysisRecord, bool)

	// Put stores a copy of the record under the normalized ticker.
	Put(ctx context.Context, ticker string, record *models.AnalysisRecord, ttl time.Duration)

	// Invalidate drops the entry for one ticker.
	Invalidate(ctx context.Context, ticker string)

	// Clear drops all entries.
	Clear(ctx context.Context)
}

// Key normalizes a ticker into its cache key.
func Key(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}
