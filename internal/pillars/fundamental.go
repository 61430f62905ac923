package pillars

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stocklens/stocklens/internal/config"
	"github.com/stocklens/stocklens/internal/models"
)

// FundamentalScorer computes the fundamental pillar from a ratio snapshot.
// Four categories weigh 25% each: valuation, profitability, growth, and
// financial health. Within a category each present metric scores in [0,1]
// and the category averages over the metrics that exist; missing metrics
// never penalize. ETFs and index funds carry no fundamentals at all, which
// surfaces as UNAVAILABLE rather than an error.
type FundamentalScorer struct {
	fundamentals models.FundamentalsProvider
	logger       zerolog.Logger
}

// NewFundamentalScorer creates a fundamental scorer backed by a
// fundamentals provider.
func NewFundamentalScorer(fundamentals models.FundamentalsProvider) *FundamentalScorer {
	return &FundamentalScorer{
		fundamentals: fundamentals,
		logger:       config.NewLogger("pillar.fundamental"),
	}
}

// Score fetches the fundamental snapshot for the ticker and scores it.
func (s *FundamentalScorer) Score(ctx context.Context, ticker string) models.PillarResult {
	snapshot, err := s.fundamentals.FetchFundamentals(ctx, ticker)
	if err != nil {
		status := models.PillarFailed
		if errors.Is(err, models.ErrPillarUnavailable) || errors.Is(err, models.ErrTickerNotFound) {
			status = models.PillarUnavailable
		}
		s.logger.Warn().Str("ticker", ticker).Err(err).Msg("Fundamentals fetch failed")
		return models.PillarResult{Kind: models.PillarFundamental, Status: status, Error: err.Error()}
	}
	return s.ScoreSnapshot(snapshot)
}

// ScoreSnapshot scores an already-fetched snapshot.
func (s *FundamentalScorer) ScoreSnapshot(snapshot *models.FundamentalSnapshot) models.PillarResult {
	categories := []categoryScore{
		scoreValuation(snapshot),
		scoreProfitability(snapshot),
		scoreGrowth(snapshot),
		scoreFinancialHealth(snapshot),
	}

	total := 0.0
	totalFactors := 0
	var insights []string
	for _, cat := range categories {
		if cat.factors > 0 {
			total += 0.25 * (cat.score / float64(cat.factors))
		}
		totalFactors += cat.factors
		insights = append(insights, cat.insights...)
	}
	if totalFactors == 0 {
		return models.PillarResult{
			Kind:   models.PillarFundamental,
			Status: models.PillarUnavailable,
			Error:  "no fundamental metrics reported",
		}
	}

	total = round4(total)
	s.logger.Debug().
		Float64("score", total).
		Int("factors", totalFactors).
		Msg("Fundamental pillar scored")

	detail := map[string]any{"insights": insights}
	if snapshot.PERatio != nil {
		detail["pe_ratio"] = *snapshot.PERatio
	}
	if snapshot.PEGRatio != nil {
		detail["peg_ratio"] = *snapshot.PEGRatio
	}
	if snapshot.ProfitMargin != nil {
		detail["profit_margin"] = *snapshot.ProfitMargin
	}
	if snapshot.ReturnOnEquity != nil {
		detail["return_on_equity"] = *snapshot.ReturnOnEquity
	}
	if snapshot.RevenueGrowth != nil {
		detail["revenue_growth"] = *snapshot.RevenueGrowth
	}
	if snapshot.DebtToEquity != nil {
		detail["debt_to_equity"] = *snapshot.DebtToEquity
	}

	return models.PillarResult{
		Kind:   models.PillarFundamental,
		Status: models.PillarOK,
		Score:  total,
		Detail: detail,
	}
}

type categoryScore struct {
	score    float64
	factors  int
	insights []string
}

func (c *categoryScore) add(score float64, insight string) {
	c.score += score
	c.factors++
	c.insights = append(c.insights, insight)
}

func scoreValuation(m *models.FundamentalSnapshot) categoryScore {
	var cat categoryScore
	if m.PERatio != nil {
		pe := *m.PERatio
		switch {
		case pe < 15:
			cat.add(1.0, fmt.Sprintf("P/E ratio of %.1f suggests undervaluation", pe))
		case pe > 30:
			cat.add(0.0, fmt.Sprintf("P/E ratio of %.1f suggests overvaluation", pe))
		default:
			cat.add(1.0-(pe-15)/15.0, fmt.Sprintf("P/E ratio of %.1f is moderate", pe))
		}
	}
	if m.PEGRatio != nil {
		peg := *m.PEGRatio
		switch {
		case peg < 1:
			cat.add(1.0, fmt.Sprintf("PEG ratio of %.2f indicates growth at a reasonable price", peg))
		case peg > 2:
			cat.add(0.0, fmt.Sprintf("PEG ratio of %.2f suggests overvaluation relative to growth", peg))
		default:
			cat.add(1.0-(peg-1.0), fmt.Sprintf("PEG ratio of %.2f is moderate", peg))
		}
	}
	return cat
}

func scoreProfitability(m *models.FundamentalSnapshot) categoryScore {
	var cat categoryScore
	if m.ProfitMargin != nil {
		margin := *m.ProfitMargin
		switch {
		case margin > 0.20:
			cat.add(1.0, fmt.Sprintf("Profit margin of %.1f%% is strong", margin*100))
		case margin < 0.05:
			cat.add(0.0, fmt.Sprintf("Profit margin of %.1f%% is weak", margin*100))
		default:
			cat.add((margin-0.05)/0.15, fmt.Sprintf("Profit margin of %.1f%% is moderate", margin*100))
		}
	}
	if m.ReturnOnEquity != nil {
		roe := *m.ReturnOnEquity
		switch {
		case roe > 0.15:
			cat.add(1.0, fmt.Sprintf("ROE of %.1f%% indicates efficient use of equity", roe*100))
		case roe < 0.05:
			cat.add(0.0, fmt.Sprintf("ROE of %.1f%% is below average", roe*100))
		default:
			cat.add((roe-0.05)/0.10, fmt.Sprintf("ROE of %.1f%% is moderate", roe*100))
		}
	}
	return cat
}

func scoreGrowth(m *models.FundamentalSnapshot) categoryScore {
	var cat categoryScore
	if m.RevenueGrowth != nil {
		growth := *m.RevenueGrowth
		switch {
		case growth > 0.15:
			cat.add(1.0, fmt.Sprintf("Revenue growth of %.1f%% is strong", growth*100))
		case growth < 0:
			cat.add(0.0, fmt.Sprintf("Revenue declining at %.1f%%", growth*100))
		default:
			cat.add(growth/0.15, fmt.Sprintf("Revenue growth of %.1f%% is moderate", growth*100))
		}
	}
	if m.EarningsGrowth != nil {
		growth := *m.EarningsGrowth
		switch {
		case growth > 0.20:
			cat.add(1.0, fmt.Sprintf("Earnings growth of %.1f%% is strong", growth*100))
		case growth < 0:
			cat.add(0.0, fmt.Sprintf("Earnings declining at %.1f%%", growth*100))
		default:
			cat.add(growth/0.20, fmt.Sprintf("Earnings growth of %.1f%% is moderate", growth*100))
		}
	}
	return cat
}

func scoreFinancialHealth(m *models.FundamentalSnapshot) categoryScore {
	var cat categoryScore
	if m.DebtToEquity != nil {
		de := *m.DebtToEquity
		switch {
		case de < 0.5:
			cat.add(1.0, fmt.Sprintf("Low debt-to-equity of %.2f indicates conservative financing", de))
		case de > 2.0:
			cat.add(0.0, fmt.Sprintf("High debt-to-equity of %.2f signals leverage risk", de))
		default:
			cat.add(1.0-(de-0.5)/1.5, fmt.Sprintf("Debt-to-equity of %.2f is moderate", de))
		}
	}
	if m.CurrentRatio != nil {
		cr := *m.CurrentRatio
		switch {
		case cr > 1.5:
			cat.add(1.0, fmt.Sprintf("Current ratio of %.2f shows strong liquidity", cr))
		case cr < 1.0:
			cat.add(0.0, fmt.Sprintf("Current ratio of %.2f indicates liquidity concern", cr))
		default:
			cat.add((cr-1.0)/0.5, fmt.Sprintf("Current ratio of %.2f is adequate", cr))
		}
	}
	if m.FreeCashFlow != nil {
		if *m.FreeCashFlow > 0 {
			cat.add(1.0, "Positive free cash flow supports financial flexibility")
		} else {
			cat.add(0.0, "Negative free cash flow may limit financial flexibility")
		}
	}
	return cat
}
