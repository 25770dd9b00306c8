package assessment

import (
	"time"

	"github.com/google/uuid"
)

// FactKey identifies a field of the clinical fact schema
type FactKey string

// Clinical fact schema keys
const (
	FactPersonalBreastCancer     FactKey = "personal_breast_cancer"
	FactPersonalOvarianCancer    FactKey = "personal_ovarian_cancer"
	FactBreastCancerAge          FactKey = "breast_cancer_age"
	FactSubjectAge               FactKey = "subject_age"
	FactFamilyBreastCancerCount  FactKey = "family_breast_cancer_count"
	FactFamilyOvarianCancerCount FactKey = "family_ovarian_cancer_count"
	FactFamilyMaleBreastCancer   FactKey = "family_male_breast_cancer"
	FactAshkenaziHeritage        FactKey = "ashkenazi_heritage"
)

// FactKind is the value type a fact key carries
type FactKind string

// Fact value kinds
const (
	FactKindBool FactKind = "bool"
	FactKindInt  FactKind = "int"
)

// schemaKeys fixes the schema and its evaluation order
var schemaKeys = []FactKey{
	FactPersonalBreastCancer,
	FactPersonalOvarianCancer,
	FactBreastCancerAge,
	FactSubjectAge,
	FactFamilyBreastCancerCount,
	FactFamilyOvarianCancerCount,
	FactFamilyMaleBreastCancer,
	FactAshkenaziHeritage,
}

var schemaKinds = map[FactKey]FactKind{
	FactPersonalBreastCancer:     FactKindBool,
	FactPersonalOvarianCancer:    FactKindBool,
	FactBreastCancerAge:          FactKindInt,
	FactSubjectAge:               FactKindInt,
	FactFamilyBreastCancerCount:  FactKindInt,
	FactFamilyOvarianCancerCount: FactKindInt,
	FactFamilyMaleBreastCancer:   FactKindBool,
	FactAshkenaziHeritage:        FactKindBool,
}

// SchemaKeys returns the fact schema keys in canonical order
func SchemaKeys() []FactKey {
	keys := make([]FactKey, len(schemaKeys))
	copy(keys, schemaKeys)
	return keys
}

// SchemaSize returns the number of fields in the fact schema
func SchemaSize() int {
	return len(schemaKeys)
}

// KindOf returns the value kind for a schema key
func KindOf(key FactKey) (FactKind, bool) {
	kind, ok := schemaKinds[key]
	return kind, ok
}

// FactState marks whether a fact has been established
type FactState string

// Fact states
const (
	FactUnknown  FactState = "unknown"
	FactDefinite FactState = "definite"
)

// FactValue is one established (or still unknown) fact with provenance.
// Provenance points at the Message whose content produced the value.
type FactValue struct {
	Key             FactKey   `json:"key"`
	State           FactState `json:"state"`
	BoolValue       bool      `json:"bool_value,omitempty"`
	IntValue        int       `json:"int_value,omitempty"`
	Confidence      float64   `json:"confidence,omitempty"`
	SourceMessageID uuid.UUID `json:"source_message_id,omitempty"`
	Turn            int       `json:"turn,omitempty"`
	ObservedAt      time.Time `json:"observed_at,omitempty"`
}

// IsDefinite reports whether the fact holds an established value
func (v FactValue) IsDefinite() bool {
	return v.State == FactDefinite
}

// ClinicalFactRecord accumulates everything learned about the subject.
// Facts only move from unknown to definite; a definite value is replaced
// by a later extraction of equal or higher confidence, never cleared.
type ClinicalFactRecord struct {
	Facts map[FactKey]FactValue `json:"facts"`
}

// NewClinicalFactRecord creates a record with every schema field unknown
func NewClinicalFactRecord() ClinicalFactRecord {
	facts := make(map[FactKey]FactValue, len(schemaKeys))
	for _, key := range schemaKeys {
		facts[key] = FactValue{Key: key, State: FactUnknown}
	}
	return ClinicalFactRecord{Facts: facts}
}

// Get returns the value for a schema key
func (r *ClinicalFactRecord) Get(key FactKey) (FactValue, bool) {
	v, ok := r.Facts[key]
	return v, ok
}

// Definite reports whether a fact is established
func (r *ClinicalFactRecord) Definite(key FactKey) bool {
	v, ok := r.Facts[key]
	return ok && v.IsDefinite()
}

// BoolFact returns a definite bool fact; ok is false while unknown
func (r *ClinicalFactRecord) BoolFact(key FactKey) (bool, bool) {
	v, ok := r.Facts[key]
	if !ok || !v.IsDefinite() {
		return false, false
	}
	return v.BoolValue, true
}

// IntFact returns a definite int fact; ok is false while unknown
func (r *ClinicalFactRecord) IntFact(key FactKey) (int, bool) {
	v, ok := r.Facts[key]
	if !ok || !v.IsDefinite() {
		return 0, false
	}
	return v.IntValue, true
}

// DefiniteCount returns how many schema fields are established
func (r *ClinicalFactRecord) DefiniteCount() int {
	count := 0
	for _, key := range schemaKeys {
		if r.Definite(key) {
			count++
		}
	}
	return count
}

// CompletionRatio returns the fraction of schema fields that are definite
func (r *ClinicalFactRecord) CompletionRatio() float64 {
	return float64(r.DefiniteCount()) / float64(len(schemaKeys))
}

// UnknownKeys returns the schema keys still unknown, in canonical order
func (r *ClinicalFactRecord) UnknownKeys() []FactKey {
	keys := make([]FactKey, 0, len(schemaKeys))
	for _, key := range schemaKeys {
		if !r.Definite(key) {
			keys = append(keys, key)
		}
	}
	return keys
}

// Clone returns a deep copy, used for verdict snapshots
func (r *ClinicalFactRecord) Clone() ClinicalFactRecord {
	facts := make(map[FactKey]FactValue, len(r.Facts))
	for k, v := range r.Facts {
		facts[k] = v
	}
	return ClinicalFactRecord{Facts: facts}
}

// Merge folds a validated extraction into the record. A proposal fills an
// unknown field unconditionally; it replaces a definite value only when it
// carries equal or higher confidence and does not stem from an earlier
// turn. Unknown fields in the extraction never touch the record, so a
// definite fact cannot be downgraded. Returns the keys that changed.
func (r *ClinicalFactRecord) Merge(ex Extraction, sourceMessageID uuid.UUID, turn int, observedAt time.Time) []FactKey {
	applied := make([]FactKey, 0, len(schemaKeys))
	for _, proposal := range ex.proposals() {
		existing, ok := r.Facts[proposal.Key]
		if !ok {
			existing = FactValue{Key: proposal.Key, State: FactUnknown}
		}
		if existing.IsDefinite() {
			if proposal.Confidence < existing.Confidence || turn < existing.Turn {
				continue
			}
		}
		next := FactValue{
			Key:             proposal.Key,
			State:           FactDefinite,
			BoolValue:       proposal.BoolValue,
			IntValue:        proposal.IntValue,
			Confidence:      proposal.Confidence,
			SourceMessageID: sourceMessageID,
			Turn:            turn,
			ObservedAt:      observedAt,
		}
		if existing.IsDefinite() && factValueEqual(existing, next) {
			continue
		}
		r.Facts[proposal.Key] = next
		applied = append(applied, proposal.Key)
	}
	return applied
}

func factValueEqual(a, b FactValue) bool {
	return a.Key == b.Key &&
		a.State == b.State &&
		a.BoolValue == b.BoolValue &&
		a.IntValue == b.IntValue &&
		a.Confidence == b.Confidence
}
