package pillars

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/stocklens/stocklens/internal/config"
	"github.com/stocklens/stocklens/internal/models"
)

const defaultNewsBaseURL = "https://finviz.com/quote.ashx"

// NewsScraper fetches recent headlines for a ticker by scraping the Finviz
// quote page news table.
type NewsScraper struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewsScraperOption customizes the scraper.
type NewsScraperOption func(*NewsScraper)

// WithNewsBaseURL overrides the scraped endpoint. Tests point this at a
// local server.
func WithNewsBaseURL(baseURL string) NewsScraperOption {
	return func(s *NewsScraper) { s.baseURL = baseURL }
}

// WithNewsHTTPClient overrides the HTTP client.
func WithNewsHTTPClient(client *http.Client) NewsScraperOption {
	return func(s *NewsScraper) { s.httpClient = client }
}

// NewNewsScraper creates a headline provider backed by Finviz.
func NewNewsScraper(opts ...NewsScraperOption) *NewsScraper {
	s := &NewsScraper{
		baseURL:    defaultNewsBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     config.NewLogger("news"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchHeadlines scrapes up to limit recent headlines for the ticker.
func (s *NewsScraper) FetchHeadlines(ctx context.Context, ticker string, limit int) ([]models.Headline, error) {
	if limit < 1 {
		limit = 10
	}

	reqURL := fmt.Sprintf("%s?t=%s", s.baseURL, url.QueryEscape(strings.ToUpper(ticker)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create news request: %w", err)
	}
	// Finviz rejects requests without a browser user agent.
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch news page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", models.ErrTickerNotFound, ticker)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse news page: %w", err)
	}

	var headlines []models.Headline
	doc.Find("table#news-table tr").EachWithBreak(func(i int, row *goquery.Selection) bool {
		link := row.Find("a.tab-link-news").First()
		title := strings.TrimSpace(link.Text())
		if title == "" {
			return true
		}
		href, _ := link.Attr("href")
		source := strings.TrimSpace(row.Find("div.news-link-right, span").Last().Text())
		source = strings.Trim(source, "()")
		headlines = append(headlines, models.Headline{
			Title:  title,
			Source: source,
			URL:    href,
		})
		return len(headlines) < limit
	})

	s.logger.Debug().
		Str("ticker", ticker).
		Int("headlines", len(headlines)).
		Msg("Fetched headlines")
	return headlines, nil
}

var _ models.HeadlineProvider = (*NewsScraper)(nil)
