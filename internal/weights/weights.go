// Package weights implements the pillar reweighting engine: a pure mapping
// from the set of pillars that scored OK to a normalized weight vector,
// plus the weighted combination into a single confidence value.
package weights

import (
	"fmt"

	"github.com/stocklens/stocklens/internal/models"
)

// Weight tables per OK set. Weights within each table sum to 1.
var (
	weightsAll = models.WeightVector{
		models.PillarTechnical:   0.40,
		models.PillarFundamental: 0.40,
		models.PillarSentiment:   0.20,
	}
	weightsNoFundamental = models.WeightVector{
		models.PillarTechnical: 0.70,
		models.PillarSentiment: 0.30,
	}
	weightsNoSentiment = models.WeightVector{
		models.PillarTechnical:   0.60,
		models.PillarFundamental: 0.40,
	}
	// The spec table has no technical pillar paired with both others
	// missing it; renormalize the all-three weights over the remaining
	// two (0.40 and 0.20 scaled to sum to 1).
	weightsNoTechnical = models.WeightVector{
		models.PillarFundamental: 2.0 / 3.0,
		models.PillarSentiment:   1.0 / 3.0,
	}
)

// Reweight maps the set of OK pillars to a weight vector. Deterministic
// and side-effect free. An empty OK set is a terminal condition for the
// caller; Reweight reports it as an error rather than inventing weights.
func Reweight(ok map[models.PillarKind]bool) (models.WeightVector, error) {
	tech := ok[models.PillarTechnical]
	fund := ok[models.PillarFundamental]
	sent := ok[models.PillarSentiment]

	switch {
	case tech && fund && sent:
		return weightsAll, nil
	case tech && sent:
		return weightsNoFundamental, nil
	case tech && fund:
		return weightsNoSentiment, nil
	case fund && sent:
		return weightsNoTechnical, nil
	case tech:
		return models.WeightVector{models.PillarTechnical: 1.0}, nil
	case fund:
		return models.WeightVector{models.PillarFundamental: 1.0}, nil
	case sent:
		return models.WeightVector{models.PillarSentiment: 1.0}, nil
	}
	return nil, fmt.Errorf("reweight: no OK pillars")
}

// Combine computes confidence as the weighted sum of OK pillar scores,
// clamped to [0,1] for defensive rounding.
func Combine(pillars []models.PillarResult, w models.WeightVector) float64 {
	var confidence float64
	for _, p := range pillars {
		if p.Status != models.PillarOK {
			continue
		}
		confidence += p.Score * w[p.Kind]
	}
	return Clamp(confidence)
}

// Clamp bounds a score to the unit interval.
func Clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
