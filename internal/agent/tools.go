package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stocklens/stocklens/internal/models"
)

// ScoreFunc computes one pillar for a ticker.
type ScoreFunc func(ctx context.Context, ticker string) models.PillarResult

// ContextRetriever searches the knowledge base.
type ContextRetriever interface {
	RetrieveContext(ctx context.Context, query string, topK int) (string, error)
}

// ToolsConfig wires the standard tool set to its collaborators.
type ToolsConfig struct {
	Prices        models.PriceProvider
	Technical     ScoreFunc
	Fundamental   ScoreFunc
	Sentiment     ScoreFunc
	Headlines     models.HeadlineProvider
	Retriever     ContextRetriever
	HeadlineLimit int
	TopK          int
}

type tickerArgs struct {
	Ticker string `json:"ticker" validate:"required,min=1,max=10"`
}

type searchArgs struct {
	Query string `json:"query" validate:"required,min=2"`
	TopK  int    `json:"top_k" validate:"omitempty,min=1,max=20"`
}

func tickerSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"ticker": map[string]any{
				"type":        "string",
				"description": "Stock ticker symbol, e.g. AAPL",
			},
		},
		"required": []string{"ticker"},
	}
}

// RegisterStandardTools registers the pillar scorers, price and news
// lookups, and knowledge retrieval as model-callable tools.
func RegisterStandardTools(r *Registry, cfg ToolsConfig) error {
	if cfg.HeadlineLimit <= 0 {
		cfg.HeadlineLimit = 10
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}

	tools := []Tool{
		{
			Name:        "get_stock_price",
			Description: "Fetch current price data for a stock ticker. Returns JSON with the latest close, currency, and recent change percentages.",
			Parameters:  tickerSchema(),
			NewArgs:     func() any { return &tickerArgs{} },
			Run: func(ctx context.Context, args any) (string, error) {
				ticker := strings.ToUpper(args.(*tickerArgs).Ticker)
				series, err := cfg.Prices.FetchPriceSeries(ctx, ticker)
				if err != nil {
					return "", fmt.Errorf("fetching stock price: %w", err)
				}
				return marshalJSON(priceSummary(series))
			},
		},
		{
			Name:        "calculate_technicals",
			Description: "Calculate technical indicators for a stock ticker. Returns JSON with RSI, SMA 50/200, MACD signal, volume trend, and a technical score in [0,1].",
			Parameters:  tickerSchema(),
			NewArgs:     func() any { return &tickerArgs{} },
			Run: func(ctx context.Context, args any) (string, error) {
				ticker := strings.ToUpper(args.(*tickerArgs).Ticker)
				return marshalJSON(cfg.Technical(ctx, ticker))
			},
		},
		{
			Name:        "get_fundamental_analysis",
			Description: "Get fundamental analysis for a stock ticker. Returns JSON with valuation, profitability, growth, and financial-health metrics plus a fundamental score in [0,1].",
			Parameters:  tickerSchema(),
			NewArgs:     func() any { return &tickerArgs{} },
			Run: func(ctx context.Context, args any) (string, error) {
				ticker := strings.ToUpper(args.(*tickerArgs).Ticker)
				return marshalJSON(cfg.Fundamental(ctx, ticker))
			},
		},
		{
			Name:        "get_news_headlines",
			Description: "Fetch recent news headlines for a stock ticker. Returns a formatted list of recent headlines.",
			Parameters:  tickerSchema(),
			NewArgs:     func() any { return &tickerArgs{} },
			Run: func(ctx context.Context, args any) (string, error) {
				ticker := strings.ToUpper(args.(*tickerArgs).Ticker)
				headlines, err := cfg.Headlines.FetchHeadlines(ctx, ticker, cfg.HeadlineLimit)
				if err != nil {
					return "", fmt.Errorf("fetching news: %w", err)
				}
				if len(headlines) == 0 {
					return "No recent headlines found for " + ticker + ".", nil
				}
				var b strings.Builder
				for i, h := range headlines {
					fmt.Fprintf(&b, "%d. %s", i+1, h.Title)
					if h.Source != "" {
						fmt.Fprintf(&b, " (%s)", h.Source)
					}
					b.WriteByte('\n')
				}
				return b.String(), nil
			},
		},
		{
			Name:        "analyze_sentiment",
			Description: "Fetch news and analyze overall sentiment for a stock ticker. Returns JSON with sentiment classification, per-class counts, and a sentiment score in [0,1].",
			Parameters:  tickerSchema(),
			NewArgs:     func() any { return &tickerArgs{} },
			Run: func(ctx context.Context, args any) (string, error) {
				ticker := strings.ToUpper(args.(*tickerArgs).Ticker)
				return marshalJSON(cfg.Sentiment(ctx, ticker))
			},
		},
		{
			Name:        "search_context",
			Description: "Search the financial knowledge base for relevant analysis context. Input: natural language query (e.g. 'RSI oversold signals'). Returns relevant passages.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Natural language search query",
					},
					"top_k": map[string]any{
						"type":        "integer",
						"description": "Maximum number of passages to return",
					},
				},
				"required": []string{"query"},
			},
			NewArgs: func() any { return &searchArgs{} },
			Run: func(ctx context.Context, args any) (string, error) {
				a := args.(*searchArgs)
				topK := a.TopK
				if topK == 0 {
					topK = cfg.TopK
				}
				return cfg.Retriever.RetrieveContext(ctx, a.Query, topK)
			},
		},
	}

	for _, tool := range tools {
		if err := r.Register(tool); err != nil {
			return err
		}
	}
	return nil
}

func priceSummary(series *models.PriceSeries) map[string]any {
	summary := map[string]any{
		"ticker":   series.Ticker,
		"currency": series.Currency,
		"current":  series.LastClose(),
	}
	closes := series.Closes()
	n := len(closes)
	if n > 1 && closes[n-2] != 0 {
		summary["change_percent_1d"] = (closes[n-1]/closes[n-2] - 1) * 100
	}
	if n > 5 && closes[n-6] != 0 {
		summary["change_percent_1w"] = (closes[n-1]/closes[n-6] - 1) * 100
	}
	if n > 21 && closes[n-22] != 0 {
		summary["change_percent_1m"] = (closes[n-1]/closes[n-22] - 1) * 100
	}
	return summary
}

func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshaling tool result: %w", err)
	}
	return string(data), nil
}
