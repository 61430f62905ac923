package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stocklens/stocklens/internal/metrics"
	"github.com/stocklens/stocklens/internal/models"
)

// analyzeRequest is the POST body. Pillar toggles default to true.
type analyzeRequest struct {
	Ticker             string `json:"ticker" binding:"required"`
	IncludeTechnical   *bool  `json:"include_technical"`
	IncludeFundamental *bool  `json:"include_fundamental"`
	IncludeSentiment   *bool  `json:"include_sentiment"`
}

func (r *analyzeRequest) flags() models.PillarFlags {
	enabled := func(v *bool) bool { return v == nil || *v }
	return models.PillarFlags{
		Technical:   enabled(r.IncludeTechnical),
		Fundamental: enabled(r.IncludeFundamental),
		Sentiment:   enabled(r.IncludeSentiment),
	}
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	s.analyze(c, req.Ticker, req.flags())
}

func (s *Server) handleAnalyzeByPath(c *gin.Context) {
	s.analyze(c, c.Param("ticker"), models.AllPillars())
}

func (s *Server) analyze(c *gin.Context, ticker string, flags models.PillarFlags) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
	defer cancel()

	// Cache hits are free; only work that reaches upstream providers
	// counts against the per-client budget.
	if !s.analyzer.IsCached(ctx, ticker) && !s.limiter.Allow(c.ClientIP()) {
		metrics.RateLimited.Inc()
		c.Header("Retry-After", "60")
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error": "rate limit exceeded: 5 uncached analyses per minute",
		})
		return
	}

	record, err := s.analyzer.Analyze(ctx, ticker, flags)
	if err != nil {
		status, message := statusForError(err)
		c.JSON(status, gin.H{"error": message})
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) handleInvalidate(c *gin.Context) {
	if err := s.analyzer.InvalidateCache(c.Request.Context(), c.Param("ticker")); err != nil {
		status, message := statusForError(err)
		c.JSON(status, gin.H{"error": message})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "invalidated", "ticker": c.Param("ticker")})
}

func (s *Server) handleClearCache(c *gin.Context) {
	s.analyzer.ClearCache(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "stocklens",
		"timestamp": time.Now().UTC(),
	})
}

// statusForError maps the domain error taxonomy onto HTTP statuses.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrInvalidTicker):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, models.ErrTickerNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, models.ErrUpstreamRateLimit):
		return http.StatusTooManyRequests, "upstream provider is rate limiting, retry shortly"
	case errors.Is(err, models.ErrAllPillarsFailed):
		return http.StatusServiceUnavailable, "no analysis pillar produced a score, retry later"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "analysis timed out"
	}
	return http.StatusInternalServerError, "internal error"
}
