package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stocklens/stocklens/internal/models"
)

type fakeAnalyzer struct {
	record   *models.AnalysisRecord
	err      error
	cached   bool
	lastFlag models.PillarFlags
	calls    int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, ticker string, flags models.PillarFlags) (*models.AnalysisRecord, error) {
	f.calls++
	f.lastFlag = flags
	if f.err != nil {
		return nil, f.err
	}
	return f.record, nil
}

func (f *fakeAnalyzer) IsCached(ctx context.Context, ticker string) bool { return f.cached }

func (f *fakeAnalyzer) InvalidateCache(ctx context.Context, ticker string) error { return f.err }

func (f *fakeAnalyzer) ClearCache(ctx context.Context) { f.cached = false }

func newTestServer(analyzer Analyzer, perMinute int) *Server {
	return NewServer(Config{
		Host:              "127.0.0.1",
		Port:              0,
		Analyzer:          analyzer,
		UncachedPerMinute: perMinute,
		RequestTimeout:    5 * time.Second,
	})
}

func buyRecord() *models.AnalysisRecord {
	return &models.AnalysisRecord{
		Ticker:      "AAPL",
		Signal:      models.SignalBuy,
		Confidence:  0.64,
		Explanation: "Looks good.",
		Pillars: []models.PillarResult{
			{Kind: models.PillarTechnical, Status: models.PillarOK, Score: 0.8},
		},
		GeneratedAt: time.Now().UTC(),
	}
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestHandleAnalyze_Success(t *testing.T) {
	analyzer := &fakeAnalyzer{record: buyRecord()}
	server := newTestServer(analyzer, 5)

	w := doJSON(t, server.Handler(), http.MethodPost, "/api/v1/analyze", `{"ticker": "AAPL"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var record models.AnalysisRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	assert.Equal(t, models.SignalBuy, record.Signal)
	assert.InDelta(t, 0.64, record.Confidence, 1e-9)
	assert.Equal(t, models.AllPillars(), analyzer.lastFlag, "omitted toggles default to true")
}

func TestHandleAnalyze_PillarTogglesForwarded(t *testing.T) {
	analyzer := &fakeAnalyzer{record: buyRecord()}
	server := newTestServer(analyzer, 5)

	w := doJSON(t, server.Handler(), http.MethodPost, "/api/v1/analyze",
		`{"ticker": "AAPL", "include_fundamental": false, "include_sentiment": false}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.PillarFlags{Technical: true}, analyzer.lastFlag)
}

func TestHandleAnalyze_MissingTicker(t *testing.T) {
	server := newTestServer(&fakeAnalyzer{record: buyRecord()}, 5)
	w := doJSON(t, server.Handler(), http.MethodPost, "/api/v1/analyze", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleAnalyzeByPath(t *testing.T) {
	analyzer := &fakeAnalyzer{record: buyRecord()}
	server := newTestServer(analyzer, 5)

	w := doJSON(t, server.Handler(), http.MethodGet, "/api/v1/analyze/AAPL", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.AllPillars(), analyzer.lastFlag)
}

func TestHandleAnalyze_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid ticker", fmt.Errorf("%w: %q", models.ErrInvalidTicker, "x$"), http.StatusBadRequest},
		{"not found", fmt.Errorf("%w: ZZZZ", models.ErrTickerNotFound), http.StatusNotFound},
		{"upstream rate limit", fmt.Errorf("%w: llm", models.ErrUpstreamRateLimit), http.StatusTooManyRequests},
		{"all pillars failed", fmt.Errorf("%w: AAPL", models.ErrAllPillarsFailed), http.StatusServiceUnavailable},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(&fakeAnalyzer{err: tt.err}, 5)
			w := doJSON(t, server.Handler(), http.MethodPost, "/api/v1/analyze", `{"ticker": "AAPL"}`)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestHandleAnalyze_UncachedRateLimited(t *testing.T) {
	analyzer := &fakeAnalyzer{record: buyRecord()}
	server := newTestServer(analyzer, 2)

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		w := doJSON(t, server.Handler(), http.MethodPost, "/api/v1/analyze", `{"ticker": "AAPL"}`)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, http.StatusOK, codes[0])
	assert.Equal(t, http.StatusOK, codes[1])
	assert.Equal(t, http.StatusTooManyRequests, codes[2])
	assert.Equal(t, http.StatusTooManyRequests, codes[3])
	assert.Equal(t, 2, analyzer.calls, "throttled requests never reach the orchestrator")
}

func TestHandleAnalyze_CacheHitsBypassRateLimit(t *testing.T) {
	analyzer := &fakeAnalyzer{record: buyRecord(), cached: true}
	server := newTestServer(analyzer, 1)

	for i := 0; i < 5; i++ {
		w := doJSON(t, server.Handler(), http.MethodPost, "/api/v1/analyze", `{"ticker": "AAPL"}`)
		assert.Equal(t, http.StatusOK, w.Code, "request %d", i)
	}
}

func TestHandleInvalidate(t *testing.T) {
	server := newTestServer(&fakeAnalyzer{}, 5)
	w := doJSON(t, server.Handler(), http.MethodDelete, "/api/v1/cache/AAPL", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "invalidated")
}

func TestHandleInvalidate_InvalidTicker(t *testing.T) {
	server := newTestServer(&fakeAnalyzer{err: fmt.Errorf("%w: bad", models.ErrInvalidTicker)}, 5)
	w := doJSON(t, server.Handler(), http.MethodDelete, "/api/v1/cache/bad", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleClearCache(t *testing.T) {
	server := newTestServer(&fakeAnalyzer{cached: true}, 5)
	w := doJSON(t, server.Handler(), http.MethodDelete, "/api/v1/cache", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cleared")
}

func TestHandleHealth(t *testing.T) {
	server := newTestServer(&fakeAnalyzer{}, 5)
	w := doJSON(t, server.Handler(), http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}
