package scan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evscan/internal/spec"
	id "evscan/pkg/domain"
)

func TestLevelFor(t *testing.T) {
	cases := []struct {
		overall float64
		want    Level
	}{
		{100, LevelExcellent},
		{90, LevelExcellent},
		{89.999, LevelGood},
		{75, LevelGood},
		{74.999, LevelFair},
		{50, LevelFair},
		{49.999, LevelPoor},
		{0, LevelPoor},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, LevelFor(tc.overall), "overall=%v", tc.overall)
	}
}

func scoredRecord() ScanRecord {
	return ScanRecord{
		ID:            id.NewScanID(),
		DeviceID:      "EV-1001",
		ScanTimestamp: time.Now().UTC(),
	}
}

func TestScoreSingleCategory(t *testing.T) {
	s := NewScorer(spec.Load())
	record := scoredRecord()

	result := &ValidationResult{Outcomes: map[string]map[string]Outcome{
		spec.CategoryBattery: {
			"soh":         OutcomeOK,
			"temperature": OutcomeOutOfRange,
			"soc":         OutcomeMissing,
			"case_status": OutcomeWrongType,
		},
	}}

	a := s.Score(record, result)
	// 1 ok out of 3 evaluable; the missing parameter stays out of the denominator.
	require.Contains(t, a.SubScores, spec.CategoryBattery)
	assert.InDelta(t, 100.0/3, a.SubScores[spec.CategoryBattery], 1e-9)
	assert.InDelta(t, 100.0/3, a.Overall, 1e-9)
	assert.Equal(t, LevelPoor, a.Level)
	assert.Equal(t, record.ID, a.ScanID)
	assert.Equal(t, record.DeviceID, a.DeviceID)
}

func TestScoreWeightsCategoriesByParameterCount(t *testing.T) {
	s := NewScorer(spec.Load())

	result := &ValidationResult{Outcomes: map[string]map[string]Outcome{
		spec.CategoryBattery: {
			"soh": OutcomeOK,
		},
		spec.CategoryMotor: {
			"status":     OutcomeOutOfRange,
			"surge_test": OutcomeOutOfRange,
		},
	}}

	a := s.Score(scoredRecord(), result)
	assert.Equal(t, 100.0, a.SubScores[spec.CategoryBattery])
	assert.Equal(t, 0.0, a.SubScores[spec.CategoryMotor])
	// Battery weighs 10 parameters, motor 5: overall = (100*10 + 0*5) / 15.
	assert.InDelta(t, 1000.0/15, a.Overall, 1e-9)
	assert.Equal(t, LevelFair, a.Level)
}

func TestScoreSkipsCategoriesWithNothingEvaluable(t *testing.T) {
	s := NewScorer(spec.Load())

	result := &ValidationResult{Outcomes: map[string]map[string]Outcome{
		spec.CategoryBattery: {
			"soh": OutcomeOK,
		},
		spec.CategoryMotor: {
			"status":       OutcomeMissing,
			"torque_value": OutcomeMissing,
		},
	}}

	a := s.Score(scoredRecord(), result)
	assert.NotContains(t, a.SubScores, spec.CategoryMotor)
	assert.Equal(t, 100.0, a.Overall)
	assert.Equal(t, LevelExcellent, a.Level)
}

func TestScoreUnknownWhenNothingEvaluable(t *testing.T) {
	s := NewScorer(spec.Load())

	result := &ValidationResult{Outcomes: map[string]map[string]Outcome{
		spec.CategoryBattery: {
			"soh": OutcomeMissing,
			"soc": OutcomeMissing,
		},
	}}

	a := s.Score(scoredRecord(), result)
	assert.Empty(t, a.SubScores)
	assert.Equal(t, 0.0, a.Overall)
	assert.Equal(t, LevelUnknown, a.Level)
}

func TestScoreEndToEndFromValidation(t *testing.T) {
	registry := spec.Load()
	v := NewValidator(registry)
	s := NewScorer(registry)

	p := Payload{
		DeviceID:      "EV-1001",
		ScanTimestamp: "2026-08-14T09:30:00Z",
		Categories: map[string]map[string]Value{
			spec.CategoryBattery: {
				"soh":         NumberValue(95),
				"temperature": NumberValue(30),
			},
			spec.CategoryMotor: {
				"status": TextValue(spec.StatusNormal),
			},
		},
	}

	record, result := v.Validate(p, time.Now())
	require.NotNil(t, record)

	a := s.Score(*record, result)
	assert.Equal(t, 100.0, a.SubScores[spec.CategoryBattery])
	assert.Equal(t, 100.0, a.SubScores[spec.CategoryMotor])
	assert.Equal(t, 100.0, a.Overall)
	assert.Equal(t, LevelExcellent, a.Level)
}
