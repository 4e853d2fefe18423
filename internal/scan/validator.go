package scan

import (
	"time"

	"evscan/internal/spec"
	id "evscan/pkg/domain"
)

// Timestamp layouts accepted on the wire. Scanners send RFC 3339; some older
// firmware omits the zone offset, which we read as UTC.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// Validator checks raw payloads against the parameter specification. It is
// pure domain logic: no I/O, no side effects, always returns a result.
type Validator struct {
	registry *spec.Registry
}

func NewValidator(registry *spec.Registry) *Validator {
	return &Validator{registry: registry}
}

// Validate checks one payload. A payload with structural errors produces no
// record (nil) and the errors explain why; otherwise the returned record
// carries an outcome for every recognized parameter of every submitted
// category, with absent parameters marked missing.
func (v *Validator) Validate(payload Payload, now time.Time) (*ScanRecord, *ValidationResult) {
	result := &ValidationResult{Outcomes: make(map[string]map[string]Outcome)}

	if payload.DeviceID == "" {
		result.Structural = append(result.Structural, StructuralError{
			Field: "device_id", Reason: "required field is missing",
		})
	}

	var ts time.Time
	if payload.ScanTimestamp == "" {
		result.Structural = append(result.Structural, StructuralError{
			Field: "scan_timestamp", Reason: "required field is missing",
		})
	} else {
		parsed, ok := parseTimestamp(payload.ScanTimestamp)
		if !ok {
			result.Structural = append(result.Structural, StructuralError{
				Field: "scan_timestamp", Reason: "not a valid ISO-8601 timestamp",
			})
		}
		ts = parsed
	}

	if len(payload.Categories) == 0 {
		result.Structural = append(result.Structural, StructuralError{
			Field: "categories", Reason: "at least one diagnostic category is required",
		})
	}

	for category, params := range payload.Categories {
		if !v.registry.HasCategory(category) {
			result.Structural = append(result.Structural, StructuralError{
				Field: category, Reason: "unknown category",
			})
			continue
		}
		for key := range params {
			if _, ok := v.registry.Lookup(category, key); !ok {
				result.Structural = append(result.Structural, StructuralError{
					Field: category + "." + key, Reason: "unknown parameter",
				})
			}
		}
	}

	if !result.Valid() {
		return nil, result
	}

	for category, params := range payload.Categories {
		outcomes := make(map[string]Outcome)
		for key, ps := range v.registry.Category(category) {
			outcomes[key] = evaluate(ps, params[key])
		}
		result.Outcomes[category] = outcomes
	}

	record := &ScanRecord{
		ID:            id.NewScanID(),
		DeviceID:      payload.DeviceID,
		ScanTimestamp: ts,
		Categories:    copyCategories(payload.Categories),
		CreatedAt:     now,
	}
	return record, result
}

// Revalidate recomputes outcomes for an already-stored record. Unchanged
// values yield an identical result, which keeps assessments recomputable from
// the record alone.
func (v *Validator) Revalidate(record ScanRecord) *ValidationResult {
	result := &ValidationResult{Outcomes: make(map[string]map[string]Outcome)}
	for category, params := range record.Categories {
		outcomes := make(map[string]Outcome)
		for key, ps := range v.registry.Category(category) {
			outcomes[key] = evaluate(ps, params[key])
		}
		result.Outcomes[category] = outcomes
	}
	return result
}

// evaluate verdicts one parameter against its spec. The zero Value (parameter
// absent from the payload) and explicit nulls are both missing: they carry no
// information and must not count against the score.
func evaluate(ps spec.ParameterSpec, v Value) Outcome {
	switch v.Kind {
	case "", ValueNull:
		return OutcomeMissing
	case ValueInvalid:
		return OutcomeWrongType
	}

	switch ps.Kind {
	case spec.KindNumeric:
		if v.Kind != ValueNumber {
			return OutcomeWrongType
		}
		if v.Number >= ps.Min && v.Number <= ps.Max {
			return OutcomeOK
		}
		return OutcomeOutOfRange
	default:
		if v.Kind != ValueText {
			return OutcomeWrongType
		}
		if v.Text == ps.Accepted {
			return OutcomeOK
		}
		return OutcomeOutOfRange
	}
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func copyCategories(in map[string]map[string]Value) map[string]map[string]Value {
	out := make(map[string]map[string]Value, len(in))
	for category, params := range in {
		cp := make(map[string]Value, len(params))
		for k, v := range params {
			cp[k] = v
		}
		out[category] = cp
	}
	return out
}
