package spec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadParameterCounts(t *testing.T) {
	r := Load()

	counts := map[string]int{
		CategoryBattery:                10,
		CategoryMotor:                  5,
		CategoryDecelerator:            4,
		CategoryOnboardCharger:         2,
		CategoryIntegratedPowerControl: 3,
	}
	for category, want := range counts {
		assert.Len(t, r.Category(category), want, category)
		assert.Equal(t, float64(want), r.CategoryWeight(category), category)
	}
	assert.Equal(t, []string{
		CategoryBattery,
		CategoryMotor,
		CategoryDecelerator,
		CategoryOnboardCharger,
		CategoryIntegratedPowerControl,
	}, r.Categories())
}

func TestLookup(t *testing.T) {
	r := Load()

	temp, ok := r.Lookup(CategoryBattery, "temperature")
	require.True(t, ok)
	assert.Equal(t, KindNumeric, temp.Kind)
	assert.Equal(t, 15.0, temp.Min)
	assert.Equal(t, 45.0, temp.Max)

	motorStatus, ok := r.Lookup(CategoryMotor, "status")
	require.True(t, ok)
	assert.Equal(t, KindStatus, motorStatus.Kind)
	assert.Equal(t, StatusNormal, motorStatus.Accepted)

	cycles, ok := r.Lookup(CategoryBattery, "charge_discharge_cycles")
	require.True(t, ok)
	assert.True(t, math.IsInf(cycles.Max, 1))

	_, ok = r.Lookup(CategoryBattery, "no_such_parameter")
	assert.False(t, ok)
	_, ok = r.Lookup("transmission", "status")
	assert.False(t, ok)
	assert.False(t, r.HasCategory("transmission"))
}
