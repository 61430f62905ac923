package pillars

import (
	"context"
	"errors"
	"math"

	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/rs/zerolog"

	"github.com/stocklens/stocklens/internal/config"
	"github.com/stocklens/stocklens/internal/models"
)

const (
	rsiPeriod        = 14
	macdFastPeriod   = 12
	macdSlowPeriod   = 26
	macdSignalPeriod = 9
	smaShortPeriod   = 50
	smaLongPeriod    = 200
	volumeWindow     = 20
)

// TechnicalScorer computes the technical pillar from daily price history.
// Composite weights: RSI 25%, MACD 25%, SMA50 20%, SMA200 20%, volume 10%.
// Indicators that cannot be computed from the available history contribute
// nothing rather than failing the pillar.
type TechnicalScorer struct {
	prices models.PriceProvider
	logger zerolog.Logger
}

// NewTechnicalScorer creates a technical scorer backed by a price provider.
func NewTechnicalScorer(prices models.PriceProvider) *TechnicalScorer {
	return &TechnicalScorer{
		prices: prices,
		logger: config.NewLogger("pillar.technical"),
	}
}

// Score fetches price history for the ticker and scores it.
func (s *TechnicalScorer) Score(ctx context.Context, ticker string) models.PillarResult {
	series, err := s.prices.FetchPriceSeries(ctx, ticker)
	if err != nil {
		status := models.PillarFailed
		if errors.Is(err, models.ErrTickerNotFound) {
			status = models.PillarUnavailable
		}
		s.logger.Warn().Str("ticker", ticker).Err(err).Msg("Price history fetch failed")
		return models.PillarResult{Kind: models.PillarTechnical, Status: status, Error: err.Error()}
	}
	return s.ScoreSeries(series)
}

// ScoreSeries scores an already-fetched price series.
func (s *TechnicalScorer) ScoreSeries(series *models.PriceSeries) models.PillarResult {
	closes := series.Closes()
	if len(closes) < 2 {
		return models.PillarResult{
			Kind:   models.PillarTechnical,
			Status: models.PillarUnavailable,
			Error:  "insufficient price history",
		}
	}

	current := closes[len(closes)-1]
	detail := map[string]any{"current_price": current}
	score := 0.0

	// RSI component (25%). Oversold is bullish, overbought bearish, linear
	// in between.
	if rsi, ok := lastValue(momentumRSI(closes)); ok {
		detail["rsi"] = round2(rsi)
		detail["rsi_interpretation"] = interpretRSI(rsi)
		switch {
		case rsi < 30:
			score += 0.25
		case rsi > 70:
			// bearish, contributes nothing
		default:
			score += 0.25 * (1.0 - (rsi-30)/40.0)
		}
	}

	// MACD component (25%).
	macdLine, signalLine, macdOK := latestMACD(closes)
	macdSignal := "neutral"
	if macdOK {
		if macdLine > signalLine {
			macdSignal = "bullish"
		} else if macdLine < signalLine {
			macdSignal = "bearish"
		}
		detail["macd"] = round4(macdLine)
		detail["macd_signal_line"] = round4(signalLine)
	}
	detail["macd_signal"] = macdSignal
	switch macdSignal {
	case "bullish":
		score += 0.25
	case "neutral":
		score += 0.125
	}

	// SMA components (20% each): price trading above the average is bullish.
	if sma50, ok := simpleMovingAverage(closes, smaShortPeriod); ok {
		detail["sma_50"] = round2(sma50)
		detail["price_vs_sma50"] = aboveOrBelow(current, sma50)
		if current > sma50 {
			score += 0.20
		}
	}
	if sma200, ok := simpleMovingAverage(closes, smaLongPeriod); ok {
		detail["sma_200"] = round2(sma200)
		detail["price_vs_sma200"] = aboveOrBelow(current, sma200)
		if current > sma200 {
			score += 0.20
		}
	}

	// Volume component (10%): elevated volume confirms the move.
	volumeTrend := assessVolumeTrend(series.Volumes(), volumeWindow)
	detail["volume_trend"] = volumeTrend
	switch volumeTrend {
	case "high":
		score += 0.10
	case "neutral":
		score += 0.05
	}

	score = round4(score)
	s.logger.Debug().
		Str("ticker", series.Ticker).
		Float64("score", score).
		Str("macd_signal", macdSignal).
		Msg("Technical pillar scored")

	return models.PillarResult{
		Kind:   models.PillarTechnical,
		Status: models.PillarOK,
		Score:  score,
		Detail: detail,
	}
}

// momentumRSI computes the RSI series over the closes.
func momentumRSI(closes []float64) []float64 {
	if len(closes) < rsiPeriod+1 {
		return nil
	}
	out := momentum.NewRsiWithPeriod[float64](rsiPeriod).Compute(sliceToChan(closes))
	return chanToSlice(out)
}

// latestMACD returns the most recent MACD and signal line values.
func latestMACD(closes []float64) (macdLine, signalLine float64, ok bool) {
	if len(closes) < macdSlowPeriod+macdSignalPeriod {
		return 0, 0, false
	}
	macdChan, signalChan := trend.NewMacdWithPeriod[float64](macdFastPeriod, macdSlowPeriod, macdSignalPeriod).
		Compute(sliceToChan(closes))
	for {
		m, mok := <-macdChan
		sig, sok := <-signalChan
		if !mok || !sok {
			break
		}
		macdLine, signalLine, ok = m, sig, true
	}
	return macdLine, signalLine, ok
}

// simpleMovingAverage returns the latest SMA over the period.
func simpleMovingAverage(closes []float64, period int) (float64, bool) {
	if len(closes) < period {
		return 0, false
	}
	out := trend.NewSmaWithPeriod[float64](period).Compute(sliceToChan(closes))
	return lastValue(chanToSlice(out))
}

// assessVolumeTrend compares the latest volume to the trailing average.
func assessVolumeTrend(volumes []float64, window int) string {
	if len(volumes) < window+1 {
		return "neutral"
	}
	recent := volumes[len(volumes)-1]
	sum := 0.0
	for _, v := range volumes[len(volumes)-1-window : len(volumes)-1] {
		sum += v
	}
	avg := sum / float64(window)
	if avg == 0 {
		return "neutral"
	}
	ratio := recent / avg
	switch {
	case ratio > 1.5:
		return "high"
	case ratio < 0.5:
		return "low"
	}
	return "neutral"
}

func interpretRSI(rsi float64) string {
	switch {
	case rsi < 30:
		return "oversold"
	case rsi > 70:
		return "overbought"
	}
	return "neutral"
}

func aboveOrBelow(price, sma float64) string {
	if price > sma {
		return "above"
	}
	return "below"
}

func sliceToChan(values []float64) chan float64 {
	ch := make(chan float64, len(values))
	for _, v := range values {
		ch <- v
	}
	close(ch)
	return ch
}

func chanToSlice(ch <-chan float64) []float64 {
	var out []float64
	for v := range ch {
		out = append(out, v)
	}
	return out
}

func lastValue(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	return values[len(values)-1], true
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
