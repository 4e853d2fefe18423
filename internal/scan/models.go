package scan

import (
	"encoding/json"
	"fmt"
	"time"

	id "evscan/pkg/domain"
)

// ValueKind tags the shape of a submitted parameter value.
type ValueKind string

const (
	ValueNumber ValueKind = "number"
	ValueText   ValueKind = "text"
	// ValueNull marks an explicit JSON null; treated like an absent parameter.
	ValueNull ValueKind = "null"
	// ValueInvalid marks shapes the wire format does not allow (bool, array,
	// object). They surface as wrong_type during validation, never later.
	ValueInvalid ValueKind = "invalid"
)

// Value is the tagged union for a submitted parameter: a number or a status
// literal. Unrecognized JSON shapes are tagged invalid at the decode boundary
// so scoring logic never sees them.
type Value struct {
	Kind   ValueKind
	Number float64
	Text   string
}

func NumberValue(n float64) Value { return Value{Kind: ValueNumber, Number: n} }
func TextValue(s string) Value    { return Value{Kind: ValueText, Text: s} }

func (v *Value) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*v = Value{Kind: ValueNumber, Number: n}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = Value{Kind: ValueText, Text: s}
		return nil
	}
	if string(data) == "null" {
		*v = Value{Kind: ValueNull}
		return nil
	}
	*v = Value{Kind: ValueInvalid}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueNumber:
		return json.Marshal(v.Number)
	case ValueText:
		return json.Marshal(v.Text)
	default:
		return []byte("null"), nil
	}
}

// Payload is one inbound scan submission before validation. Duplicate
// parameter keys within a category collapse during JSON decoding with the
// last value winning.
type Payload struct {
	DeviceID      string
	ScanTimestamp string
	Categories    map[string]map[string]Value
}

// UnmarshalJSON splits the flat wire object into the two required top-level
// fields and the category maps: every other top-level key is a category.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Categories = make(map[string]map[string]Value)
	for key, msg := range raw {
		switch key {
		case "device_id":
			if err := json.Unmarshal(msg, &p.DeviceID); err != nil {
				return fmt.Errorf("device_id: %w", err)
			}
		case "scan_timestamp":
			if err := json.Unmarshal(msg, &p.ScanTimestamp); err != nil {
				return fmt.Errorf("scan_timestamp: %w", err)
			}
		default:
			var params map[string]Value
			if err := json.Unmarshal(msg, &params); err != nil {
				return fmt.Errorf("category %s: %w", key, err)
			}
			p.Categories[key] = params
		}
	}
	return nil
}

// ScanRecord is one validated scan submission. Records are immutable: a bad
// record is replaced by a corrected resubmission, never edited in place.
type ScanRecord struct {
	ID            id.ScanID
	DeviceID      string
	ScanTimestamp time.Time
	Categories    map[string]map[string]Value
	CreatedAt     time.Time
}

// Outcome is the validation verdict for a single parameter.
type Outcome string

const (
	OutcomeOK         Outcome = "ok"
	OutcomeOutOfRange Outcome = "out_of_range"
	OutcomeWrongType  Outcome = "wrong_type"
	OutcomeMissing    Outcome = "missing"
)

// StructuralError is a payload-shape defect that prevents record creation.
// It is distinct from per-parameter outcomes, which never block ingestion.
type StructuralError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e StructuralError) String() string {
	return e.Field + ": " + e.Reason
}

// ValidationResult holds per-parameter outcomes plus any structural errors
// for one payload. It is derived and ephemeral; only the record it describes
// is persisted.
type ValidationResult struct {
	Outcomes   map[string]map[string]Outcome
	Structural []StructuralError
}

// Valid reports whether the payload produced a record (no structural errors).
func (r *ValidationResult) Valid() bool { return len(r.Structural) == 0 }

// Outcome returns the verdict for one parameter, or "" if it was never
// evaluated (unknown category rejects the whole payload before this point).
func (r *ValidationResult) Outcome(category, key string) Outcome {
	return r.Outcomes[category][key]
}

// Level is the qualitative health bucket derived from the overall score.
type Level string

const (
	LevelExcellent Level = "excellent"
	LevelGood      Level = "good"
	LevelFair      Level = "fair"
	LevelPoor      Level = "poor"
	LevelUnknown   Level = "unknown"
)

// HealthAssessment is derived from a record's validated values. It is always
// recomputable from the stored record; there is no independent source of truth.
type HealthAssessment struct {
	ScanID    id.ScanID
	DeviceID  string
	SubScores map[string]float64
	Overall   float64
	Level     Level
}

// RejectReason classifies why a submission was not persisted.
type RejectReason string

const (
	ReasonStructural   RejectReason = "structural"
	ReasonUnauthorized RejectReason = "unauthorized"
	ReasonPersistence  RejectReason = "persistence"
)

// ItemResult is the per-record outcome inside a batch: either an accepted
// record with its assessment, or a rejection with its reason and detail.
type ItemResult struct {
	Index      int
	Accepted   bool
	ScanID     id.ScanID
	Assessment *HealthAssessment
	Reason     RejectReason
	Errors     []StructuralError
}

// BatchResult reports every submitted record in input order plus aggregate
// counts. It is returned to the caller and never stored.
type BatchResult struct {
	Items            []ItemResult
	Accepted         int
	Rejected         int
	RejectedByReason map[RejectReason]int
}

// Assessed pairs a stored record with its (re)computed assessment on the
// read path.
type Assessed struct {
	Record     ScanRecord
	Assessment HealthAssessment
}

// DeviceStatus is the fleet-view row for one linked device. Latest and
// LastSeen are nil for a device that has not reported yet.
type DeviceStatus struct {
	DeviceID   string
	DeviceName string
	LastSeen   *time.Time
	Latest     *Assessed
}

// Summary aggregates scan activity across a user's linked devices. A device
// counts as having issues when its latest assessment is fair or poor.
type Summary struct {
	TotalDevices      int
	TotalScans        int
	DevicesWithIssues int
	LastScanTimestamp *time.Time
}

// Query filters the assessment read path.
type Query struct {
	DeviceID  string
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}
