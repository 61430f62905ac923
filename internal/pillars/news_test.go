package pillars

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const newsPageHTML = `<html><body>
<table id="news-table">
  <tr>
    <td>Jan-05-25 09:30AM</td>
    <td><a class="tab-link-news" href="https://example.com/1">Apple unveils new chip</a> <span>(Reuters)</span></td>
  </tr>
  <tr>
    <td>Jan-04-25 04:15PM</td>
    <td><a class="tab-link-news" href="https://example.com/2">iPhone sales beat estimates</a> <span>(Bloomberg)</span></td>
  </tr>
  <tr>
    <td>Jan-03-25 11:00AM</td>
    <td><a class="tab-link-news" href="https://example.com/3">Analysts raise price targets</a> <span>(Barrons)</span></td>
  </tr>
</table>
</body></html>`

func TestNewsScraper_ParsesHeadlines(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AAPL", r.URL.Query().Get("t"))
		w.Write([]byte(newsPageHTML))
	}))
	defer server.Close()

	scraper := NewNewsScraper(WithNewsBaseURL(server.URL))
	headlines, err := scraper.FetchHeadlines(context.Background(), "aapl", 10)

	require.NoError(t, err)
	require.Len(t, headlines, 3)
	assert.Equal(t, "Apple unveils new chip", headlines[0].Title)
	assert.Equal(t, "https://example.com/1", headlines[0].URL)
	assert.Equal(t, "Reuters", headlines[0].Source)
	assert.Equal(t, "iPhone sales beat estimates", headlines[1].Title)
}

func TestNewsScraper_HonorsLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(newsPageHTML))
	}))
	defer server.Close()

	scraper := NewNewsScraper(WithNewsBaseURL(server.URL))
	headlines, err := scraper.FetchHeadlines(context.Background(), "AAPL", 2)

	require.NoError(t, err)
	assert.Len(t, headlines, 2)
}

func TestNewsScraper_EmptyPageIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>quote page without news</p></body></html>`))
	}))
	defer server.Close()

	scraper := NewNewsScraper(WithNewsBaseURL(server.URL))
	headlines, err := scraper.FetchHeadlines(context.Background(), "AAPL", 10)

	require.NoError(t, err)
	assert.Empty(t, headlines)
}

func TestNewsScraper_ServerErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	scraper := NewNewsScraper(WithNewsBaseURL(server.URL))
	_, err := scraper.FetchHeadlines(context.Background(), "AAPL", 10)
	assert.Error(t, err)
}
