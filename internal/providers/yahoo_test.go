package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stocklens/stocklens/internal/models"
)

const chartJSON = `{
	"chart": {
		"result": [{
			"meta": {"currency": "USD", "symbol": "AAPL"},
			"timestamp": [1735689600, 1735776000, 1735862400],
			"indicators": {
				"quote": [{
					"open":   [150.0, 151.5, null],
					"high":   [152.0, 153.0, 154.0],
					"low":    [149.0, 150.5, 151.0],
					"close":  [151.0, 152.5, null],
					"volume": [1000000, 1200000, 900000]
				}]
			}
		}],
		"error": null
	}
}`

const quoteSummaryJSON = `{
	"quoteSummary": {
		"result": [{
			"summaryDetail": {
				"trailingPE": {"raw": 28.5, "fmt": "28.50"},
				"marketCap": {"raw": 3000000000000, "fmt": "3T"},
				"dividendYield": {"raw": 0.0045, "fmt": "0.45%"}
			},
			"financialData": {
				"profitMargins": {"raw": 0.25},
				"returnOnEquity": {"raw": 1.5},
				"revenueGrowth": {"raw": 0.08},
				"debtToEquity": {"raw": 180.0},
				"currentRatio": {"raw": 1.1},
				"freeCashflow": {"raw": 95000000000}
			},
			"defaultKeyStatistics": {
				"pegRatio": {"raw": 2.1},
				"priceToBook": {"raw": 45.0}
			}
		}],
		"error": null
	}
}`

func TestYahooClient_FetchPriceSeries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/v8/finance/chart/AAPL")
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte(chartJSON))
	}))
	defer server.Close()

	client := NewYahooClient(WithYahooBaseURL(server.URL))
	series, err := client.FetchPriceSeries(context.Background(), "AAPL")

	require.NoError(t, err)
	assert.Equal(t, "USD", series.Currency)
	// The null-close day is dropped.
	require.Len(t, series.Candles, 2)
	assert.InDelta(t, 151.0, series.Candles[0].Close, 1e-9)
	assert.InDelta(t, 152.5, series.LastClose(), 1e-9)
	assert.InDelta(t, 1200000, series.Candles[1].Volume, 1e-9)
}

func TestYahooClient_FetchPriceSeries_UnknownTicker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart": {"result": null, "error": {"code": "Not Found", "description": "No data found"}}}`))
	}))
	defer server.Close()

	client := NewYahooClient(WithYahooBaseURL(server.URL))
	_, err := client.FetchPriceSeries(context.Background(), "ZZZZ")
	assert.ErrorIs(t, err, models.ErrTickerNotFound)
}

func TestYahooClient_FetchFundamentals(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/v10/finance/quoteSummary/AAPL")
		w.Write([]byte(quoteSummaryJSON))
	}))
	defer server.Close()

	client := NewYahooClient(WithYahooBaseURL(server.URL))
	snapshot, err := client.FetchFundamentals(context.Background(), "AAPL")

	require.NoError(t, err)
	require.NotNil(t, snapshot.PERatio)
	assert.InDelta(t, 28.5, *snapshot.PERatio, 1e-9)
	require.NotNil(t, snapshot.DebtToEquity)
	assert.InDelta(t, 1.8, *snapshot.DebtToEquity, 1e-9, "percentage converts to ratio")
	require.NotNil(t, snapshot.PEGRatio)
	assert.InDelta(t, 2.1, *snapshot.PEGRatio, 1e-9)
	require.NotNil(t, snapshot.PriceToBook)
	assert.InDelta(t, 45.0, *snapshot.PriceToBook, 1e-9)
	require.NotNil(t, snapshot.FreeCashFlow)
	assert.Positive(t, *snapshot.FreeCashFlow)
}

func TestYahooClient_FetchFundamentals_ETFUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// ETFs report summaryDetail without a market cap.
		w.Write([]byte(`{"quoteSummary": {"result": [{"summaryDetail": {}}], "error": null}}`))
	}))
	defer server.Close()

	client := NewYahooClient(WithYahooBaseURL(server.URL))
	_, err := client.FetchFundamentals(context.Background(), "SPY")
	assert.ErrorIs(t, err, models.ErrPillarUnavailable)
}

func TestYahooClient_RateLimitSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewYahooClient(WithYahooBaseURL(server.URL))
	_, err := client.FetchPriceSeries(context.Background(), "AAPL")
	assert.ErrorIs(t, err, models.ErrUpstreamRateLimit)
}
