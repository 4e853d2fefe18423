package scan

import "evscan/internal/spec"

// levelBreakpoints maps overall scores to qualitative levels. Ordered highest
// first; a score belongs to the first band whose lower bound it meets, so the
// boundary value itself lands in the higher band (90 is excellent, not good).
var levelBreakpoints = []struct {
	Lower float64
	Level Level
}{
	{90, LevelExcellent},
	{75, LevelGood},
	{50, LevelFair},
}

// LevelFor buckets an overall score.
func LevelFor(overall float64) Level {
	for _, bp := range levelBreakpoints {
		if overall >= bp.Lower {
			return bp.Level
		}
	}
	return LevelPoor
}

// Scorer turns validated parameter outcomes into category sub-scores and an
// overall assessment. Pure domain logic: no I/O, no side effects.
type Scorer struct {
	registry *spec.Registry
}

func NewScorer(registry *spec.Registry) *Scorer {
	return &Scorer{registry: registry}
}

// Score computes the assessment for one validated record.
//
// Per category: sub-score = 100 * ok / evaluable, where evaluable counts every
// non-missing outcome. A category with nothing evaluable contributes no
// sub-score and is excluded from the overall mean; absent data is not failing
// data. The overall score weights each present sub-score by the category's
// weight sum from the registry.
func (s *Scorer) Score(record ScanRecord, result *ValidationResult) HealthAssessment {
	subScores := make(map[string]float64)
	var weightedSum, weightTotal float64

	for category, outcomes := range result.Outcomes {
		var ok, evaluable int
		for _, outcome := range outcomes {
			if outcome == OutcomeMissing {
				continue
			}
			evaluable++
			if outcome == OutcomeOK {
				ok++
			}
		}
		if evaluable == 0 {
			continue
		}
		sub := 100 * float64(ok) / float64(evaluable)
		subScores[category] = sub

		weight := s.registry.CategoryWeight(category)
		weightedSum += sub * weight
		weightTotal += weight
	}

	if weightTotal == 0 {
		return HealthAssessment{
			ScanID:    record.ID,
			DeviceID:  record.DeviceID,
			SubScores: subScores,
			Level:     LevelUnknown,
		}
	}

	overall := weightedSum / weightTotal
	return HealthAssessment{
		ScanID:    record.ID,
		DeviceID:  record.DeviceID,
		SubScores: subScores,
		Overall:   overall,
		Level:     LevelFor(overall),
	}
}
