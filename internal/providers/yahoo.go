package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/stocklens/stocklens/internal/config"
	"github.com/stocklens/stocklens/internal/models"
)

const defaultYahooBaseURL = "https://query1.finance.yahoo.com"

// YahooClient fetches price history and fundamental ratios from the Yahoo
// Finance public API. It implements both models.PriceProvider and
// models.FundamentalsProvider.
type YahooClient struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// YahooOption customizes the client.
type YahooOption func(*YahooClient)

// WithYahooBaseURL overrides the API host. Tests point this at a local
// server.
func WithYahooBaseURL(baseURL string) YahooOption {
	return func(c *YahooClient) { c.baseURL = baseURL }
}

// WithYahooHTTPClient overrides the HTTP client.
func WithYahooHTTPClient(client *http.Client) YahooOption {
	return func(c *YahooClient) { c.httpClient = client }
}

// NewYahooClient creates a Yahoo Finance client.
func NewYahooClient(opts ...YahooOption) *YahooClient {
	c := &YahooClient{
		baseURL:    defaultYahooBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     config.NewLogger("yahoo"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency string `json:"currency"`
				Symbol   string `json:"symbol"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchPriceSeries returns one year of daily candles, oldest first. Days
// Yahoo reports with a null close are dropped.
func (c *YahooClient) FetchPriceSeries(ctx context.Context, ticker string) (*models.PriceSeries, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?range=1y&interval=1d", c.baseURL, url.PathEscape(ticker))
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var parsed chartResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse chart response: %w", err)
	}
	if parsed.Chart.Error != nil || len(parsed.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrTickerNotFound, ticker)
	}

	result := parsed.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrTickerNotFound, ticker)
	}
	quote := result.Indicators.Quote[0]

	series := &models.PriceSeries{
		Ticker:   ticker,
		Currency: result.Meta.Currency,
	}
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue
		}
		candle := models.Candle{
			Time:  time.Unix(ts, 0).UTC(),
			Close: *quote.Close[i],
		}
		if i < len(quote.Open) && quote.Open[i] != nil {
			candle.Open = *quote.Open[i]
		}
		if i < len(quote.High) && quote.High[i] != nil {
			candle.High = *quote.High[i]
		}
		if i < len(quote.Low) && quote.Low[i] != nil {
			candle.Low = *quote.Low[i]
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			candle.Volume = *quote.Volume[i]
		}
		series.Candles = append(series.Candles, candle)
	}
	if len(series.Candles) == 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrTickerNotFound, ticker)
	}

	c.logger.Debug().
		Str("ticker", ticker).
		Int("candles", len(series.Candles)).
		Msg("Fetched price history")
	return series, nil
}

// rawValue is Yahoo's number envelope: {"raw": 24.5, "fmt": "24.50"}.
type rawValue struct {
	Raw *float64 `json:"raw"`
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			SummaryDetail *struct {
				TrailingPE    rawValue `json:"trailingPE"`
				PriceToBook   rawValue `json:"priceToBook"`
				DividendYield rawValue `json:"dividendYield"`
				MarketCap     rawValue `json:"marketCap"`
			} `json:"summaryDetail"`
			FinancialData *struct {
				ProfitMargins  rawValue `json:"profitMargins"`
				ReturnOnEquity rawValue `json:"returnOnEquity"`
				RevenueGrowth  rawValue `json:"revenueGrowth"`
				EarningsGrowth rawValue `json:"earningsGrowth"`
				DebtToEquity   rawValue `json:"debtToEquity"`
				CurrentRatio   rawValue `json:"currentRatio"`
				FreeCashflow   rawValue `json:"freeCashflow"`
			} `json:"financialData"`
			DefaultKeyStatistics *struct {
				PegRatio    rawValue `json:"pegRatio"`
				PriceToBook rawValue `json:"priceToBook"`
			} `json:"defaultKeyStatistics"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// FetchFundamentals returns the ratio snapshot for the ticker. Instruments
// with no reported market cap (ETFs, index funds) surface as
// models.ErrPillarUnavailable.
func (c *YahooClient) FetchFundamentals(ctx context.Context, ticker string) (*models.FundamentalSnapshot, error) {
	endpoint := fmt.Sprintf(
		"%s/v10/finance/quoteSummary/%s?modules=summaryDetail,financialData,defaultKeyStatistics",
		c.baseURL, url.PathEscape(ticker))
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var parsed quoteSummaryResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse quote summary: %w", err)
	}
	if parsed.QuoteSummary.Error != nil || len(parsed.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrTickerNotFound, ticker)
	}

	result := parsed.QuoteSummary.Result[0]
	snapshot := &models.FundamentalSnapshot{}
	if sd := result.SummaryDetail; sd != nil {
		snapshot.PERatio = sd.TrailingPE.Raw
		snapshot.PriceToBook = sd.PriceToBook.Raw
		snapshot.DividendYield = sd.DividendYield.Raw
		snapshot.MarketCap = sd.MarketCap.Raw
	}
	if fd := result.FinancialData; fd != nil {
		snapshot.ProfitMargin = fd.ProfitMargins.Raw
		snapshot.ReturnOnEquity = fd.ReturnOnEquity.Raw
		snapshot.RevenueGrowth = fd.RevenueGrowth.Raw
		snapshot.EarningsGrowth = fd.EarningsGrowth.Raw
		snapshot.CurrentRatio = fd.CurrentRatio.Raw
		snapshot.FreeCashFlow = fd.FreeCashflow.Raw
		// Yahoo reports debt/equity as a percentage (180 means 1.80x).
		if fd.DebtToEquity.Raw != nil {
			de := *fd.DebtToEquity.Raw / 100.0
			snapshot.DebtToEquity = &de
		}
	}
	if ks := result.DefaultKeyStatistics; ks != nil {
		snapshot.PEGRatio = ks.PegRatio.Raw
		if snapshot.PriceToBook == nil {
			snapshot.PriceToBook = ks.PriceToBook.Raw
		}
	}

	if snapshot.MarketCap == nil {
		return nil, fmt.Errorf("%w: no fundamental data for %s", models.ErrPillarUnavailable, ticker)
	}

	c.logger.Debug().Str("ticker", ticker).Msg("Fetched fundamentals")
	return snapshot, nil
}

func (c *YahooClient) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	// Yahoo rejects requests without a browser user agent.
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch market data: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read market data response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, models.ErrTickerNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: market data provider", models.ErrUpstreamRateLimit)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("market data provider returned status %d", resp.StatusCode)
	}
	return body, nil
}

var (
	_ models.PriceProvider        = (*YahooClient)(nil)
	_ models.FundamentalsProvider = (*YahooClient)(nil)
)
