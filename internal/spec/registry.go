// Package spec holds the versioned EV diagnostic parameter specification.
// The table is built once at process start and never mutated, so concurrent
// readers need no locking.
package spec

import "math"

// Kind distinguishes numeric-range parameters from status-literal ones.
type Kind string

const (
	KindNumeric Kind = "numeric"
	KindStatus  Kind = "status"
)

// Status literals reported by field scanners. Only StatusNormal counts as
// acceptable; the others are what scanners actually send for failing checks.
const (
	StatusNormal       = "정상"
	StatusAbnormal     = "이상"
	StatusNeedsService = "정검요"
)

// Fixed diagnostic categories.
const (
	CategoryBattery                = "battery"
	CategoryMotor                  = "motor"
	CategoryDecelerator            = "decelerator"
	CategoryOnboardCharger         = "onboard_charger"
	CategoryIntegratedPowerControl = "integrated_power_control"
)

// ParameterSpec describes one diagnostic parameter: its identity, shape, the
// acceptable range or literal, and its weight within the category score.
type ParameterSpec struct {
	Category string
	Key      string
	Kind     Kind

	// Numeric parameters: inclusive acceptable bounds.
	Min float64
	Max float64

	// Status parameters: the single literal that counts as acceptable.
	Accepted string

	Weight float64
}

// Registry is the immutable lookup table for parameter specs.
type Registry struct {
	version    string
	categories []string
	params     map[string]map[string]ParameterSpec
}

func numeric(category, key string, min, max float64) ParameterSpec {
	return ParameterSpec{Category: category, Key: key, Kind: KindNumeric, Min: min, Max: max, Weight: 1}
}

func status(category, key string) ParameterSpec {
	return ParameterSpec{Category: category, Key: key, Kind: KindStatus, Accepted: StatusNormal, Weight: 1}
}

// Load builds the registry. Bounds follow the vehicle diagnostic data sheet:
// open-ended counters accept any non-negative value, while health-relevant
// parameters carry their serviceable ranges.
func Load() *Registry {
	inf := math.Inf(1)
	table := []ParameterSpec{
		numeric(CategoryBattery, "total_operation_time", 0, inf),
		numeric(CategoryBattery, "soh", 70, 100),
		numeric(CategoryBattery, "soc", 0, 100),
		numeric(CategoryBattery, "charge_discharge_cycles", 0, inf),
		numeric(CategoryBattery, "estimated_range", 0, inf),
		numeric(CategoryBattery, "cell_voltage_deviation", 0, 0.04),
		numeric(CategoryBattery, "temperature", 15, 45),
		status(CategoryBattery, "temperature_sensor_status"),
		status(CategoryBattery, "case_status"),
		status(CategoryBattery, "hv_cable_status"),

		numeric(CategoryMotor, "torque_value", 950, 1050),
		status(CategoryMotor, "status"),
		status(CategoryMotor, "short_open_status"),
		status(CategoryMotor, "insulation_resistance"),
		status(CategoryMotor, "surge_test"),

		status(CategoryDecelerator, "status"),
		numeric(CategoryDecelerator, "torque_rpm", 950, 1050),
		numeric(CategoryDecelerator, "noise_level", 0, 100),
		status(CategoryDecelerator, "oil_leak"),

		status(CategoryOnboardCharger, "status"),
		status(CategoryOnboardCharger, "bms_status"),

		status(CategoryIntegratedPowerControl, "inverter_status"),
		status(CategoryIntegratedPowerControl, "ldc_status"),
		status(CategoryIntegratedPowerControl, "vcu_status"),
	}

	r := &Registry{
		version: "1.0",
		categories: []string{
			CategoryBattery,
			CategoryMotor,
			CategoryDecelerator,
			CategoryOnboardCharger,
			CategoryIntegratedPowerControl,
		},
		params: make(map[string]map[string]ParameterSpec),
	}
	for _, p := range table {
		byKey, ok := r.params[p.Category]
		if !ok {
			byKey = make(map[string]ParameterSpec)
			r.params[p.Category] = byKey
		}
		byKey[p.Key] = p
	}
	return r
}

// Version identifies the revision of the parameter table.
func (r *Registry) Version() string { return r.version }

// Lookup returns the spec for a category/parameter pair.
func (r *Registry) Lookup(category, key string) (ParameterSpec, bool) {
	byKey, ok := r.params[category]
	if !ok {
		return ParameterSpec{}, false
	}
	p, ok := byKey[key]
	return p, ok
}

// HasCategory reports whether category is one of the fixed five.
func (r *Registry) HasCategory(category string) bool {
	_, ok := r.params[category]
	return ok
}

// Categories returns the fixed category names in specification order.
func (r *Registry) Categories() []string {
	return append([]string{}, r.categories...)
}

// Category returns all parameter specs for a category, keyed by parameter.
func (r *Registry) Category(category string) map[string]ParameterSpec {
	byKey, ok := r.params[category]
	if !ok {
		return nil
	}
	out := make(map[string]ParameterSpec, len(byKey))
	for k, v := range byKey {
		out[k] = v
	}
	return out
}

// CategoryWeight is the sum of parameter weights in a category. With unit
// weights this equals the parameter count, so battery dominates the overall
// score as the largest subsystem.
func (r *Registry) CategoryWeight(category string) float64 {
	var sum float64
	for _, p := range r.params[category] {
		sum += p.Weight
	}
	return sum
}
