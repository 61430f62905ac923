package pillars

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/rs/zerolog"

	"github.com/stocklens/stocklens/internal/agent"
	"github.com/stocklens/stocklens/internal/config"
	"github.com/stocklens/stocklens/internal/llm"
	"github.com/stocklens/stocklens/internal/models"
)

// SentimentScorer computes the sentiment pillar: fetch recent headlines and
// have the model classify them. No headlines is a neutral 0.5, not a
// failure; the model being down or unparseable when headlines exist is
// FAILED.
type SentimentScorer struct {
	completer llm.Completer
	headlines models.HeadlineProvider
	limit     int
	logger    zerolog.Logger
}

// NewSentimentScorer creates a sentiment scorer. limit caps how many
// headlines are classified per request; values below 1 fall back to 10.
func NewSentimentScorer(completer llm.Completer, headlines models.HeadlineProvider, limit int) *SentimentScorer {
	if limit < 1 {
		limit = 10
	}
	return &SentimentScorer{
		completer: completer,
		headlines: headlines,
		limit:     limit,
		logger:    config.NewLogger("pillar.sentiment"),
	}
}

type sentimentVerdict struct {
	Headlines []struct {
		Index     int    `json:"index"`
		Sentiment string `json:"sentiment"`
	} `json:"headlines"`
	Overall string  `json:"overall"`
	Score   float64 `json:"score"`
}

// Score fetches and classifies headlines for the ticker.
func (s *SentimentScorer) Score(ctx context.Context, ticker string) models.PillarResult {
	headlines, err := s.headlines.FetchHeadlines(ctx, ticker, s.limit)
	if err != nil {
		s.logger.Warn().Str("ticker", ticker).Err(err).Msg("Headline fetch failed")
		return models.PillarResult{Kind: models.PillarSentiment, Status: models.PillarFailed, Error: err.Error()}
	}
	if len(headlines) == 0 {
		return models.PillarResult{
			Kind:   models.PillarSentiment,
			Status: models.PillarOK,
			Score:  0.5,
			Detail: map[string]any{"overall": "neutral", "headline_count": 0},
		}
	}

	var numbered strings.Builder
	for i, h := range headlines {
		fmt.Fprintf(&numbered, "%d. %s\n", i, h.Title)
	}
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: agent.SentimentSystemPrompt},
		{Role: llm.RoleUser, Content: "Classify the sentiment of these headlines:\n\n" + numbered.String()},
	}

	resp, err := s.completer.Complete(ctx, messages, nil)
	if err != nil {
		s.logger.Warn().Str("ticker", ticker).Err(err).Msg("Sentiment classification failed")
		return models.PillarResult{Kind: models.PillarSentiment, Status: models.PillarFailed, Error: err.Error()}
	}
	msg := resp.FirstMessage()
	if msg == nil {
		return models.PillarResult{Kind: models.PillarSentiment, Status: models.PillarFailed, Error: "empty completion"}
	}

	verdict, err := parseSentiment(msg.Content)
	if err != nil {
		s.logger.Warn().Str("ticker", ticker).Err(err).Msg("Unparseable sentiment response")
		return models.PillarResult{Kind: models.PillarSentiment, Status: models.PillarFailed, Error: err.Error()}
	}

	positive, negative, neutral := 0, 0, 0
	for _, h := range verdict.Headlines {
		switch strings.ToLower(h.Sentiment) {
		case "positive":
			positive++
		case "negative":
			negative++
		default:
			neutral++
		}
	}

	score := verdict.Score
	if score < 0 || score > 1 {
		score = 0.5
	}
	overall := strings.ToLower(verdict.Overall)
	switch overall {
	case "positive", "negative", "neutral", "mixed":
	default:
		overall = "neutral"
	}

	s.logger.Debug().
		Str("ticker", ticker).
		Float64("score", score).
		Str("overall", overall).
		Msg("Sentiment pillar scored")

	return models.PillarResult{
		Kind:   models.PillarSentiment,
		Status: models.PillarOK,
		Score:  round4(score),
		Detail: map[string]any{
			"overall":        overall,
			"positive_count": positive,
			"negative_count": negative,
			"neutral_count":  neutral,
			"headline_count": len(headlines),
		},
	}
}

func parseSentiment(content string) (*sentimentVerdict, error) {
	raw := strings.TrimSpace(content)
	if idx := strings.Index(raw, "{"); idx >= 0 {
		if end := strings.LastIndex(raw, "}"); end > idx {
			raw = raw[idx : end+1]
		}
	}
	var verdict sentimentVerdict
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(raw)
		if repairErr != nil {
			return nil, fmt.Errorf("parsing sentiment response: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &verdict); err != nil {
			return nil, fmt.Errorf("parsing repaired sentiment response: %w", err)
		}
	}
	return &verdict, nil
}
