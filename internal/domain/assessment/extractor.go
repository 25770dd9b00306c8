package assessment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Extractor derives clinical facts from one exchange of the interview.
// Implementations must return extractions that pass ValidateExtraction;
// the caller discards anything that does not.
type Extractor interface {
	// Name identifies the implementation in logs and configuration
	Name() string
	// Extract proposes fact values found in the subject utterance and the
	// assistant reply. Fields left nil stay untouched on merge.
	Extract(ctx context.Context, utterance, reply string, existing ClinicalFactRecord) (Extraction, error)
}

// Extraction is a partial fact record proposal. Only non-nil fields are
// proposals; the JSON shape doubles as the model extractor's output schema.
type Extraction struct {
	PersonalBreastCancer     *bool   `json:"personal_breast_cancer,omitempty"`
	PersonalOvarianCancer    *bool   `json:"personal_ovarian_cancer,omitempty"`
	BreastCancerAge          *int    `json:"breast_cancer_age,omitempty" validate:"omitempty,gte=0,lte=120"`
	SubjectAge               *int    `json:"subject_age,omitempty" validate:"omitempty,gte=0,lte=120"`
	FamilyBreastCancerCount  *int    `json:"family_breast_cancer_count,omitempty" validate:"omitempty,gte=0,lte=50"`
	FamilyOvarianCancerCount *int    `json:"family_ovarian_cancer_count,omitempty" validate:"omitempty,gte=0,lte=50"`
	FamilyMaleBreastCancer   *bool   `json:"family_male_breast_cancer,omitempty"`
	AshkenaziHeritage        *bool   `json:"ashkenazi_heritage,omitempty"`
	Confidence               float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// IsEmpty reports whether the extraction proposes no facts
func (e Extraction) IsEmpty() bool {
	return e.PersonalBreastCancer == nil &&
		e.PersonalOvarianCancer == nil &&
		e.BreastCancerAge == nil &&
		e.SubjectAge == nil &&
		e.FamilyBreastCancerCount == nil &&
		e.FamilyMaleBreastCancer == nil &&
		e.FamilyOvarianCancerCount == nil &&
		e.AshkenaziHeritage == nil
}

// factProposal is one proposed definite value during merge
type factProposal struct {
	Key        FactKey
	BoolValue  bool
	IntValue   int
	Confidence float64
}

// proposals renders the non-nil fields in canonical schema order
func (e Extraction) proposals() []factProposal {
	out := make([]factProposal, 0, SchemaSize())
	addBool := func(key FactKey, v *bool) {
		if v != nil {
			out = append(out, factProposal{Key: key, BoolValue: *v, Confidence: e.Confidence})
		}
	}
	addInt := func(key FactKey, v *int) {
		if v != nil {
			out = append(out, factProposal{Key: key, IntValue: *v, Confidence: e.Confidence})
		}
	}
	addBool(FactPersonalBreastCancer, e.PersonalBreastCancer)
	addBool(FactPersonalOvarianCancer, e.PersonalOvarianCancer)
	addInt(FactBreastCancerAge, e.BreastCancerAge)
	addInt(FactSubjectAge, e.SubjectAge)
	addInt(FactFamilyBreastCancerCount, e.FamilyBreastCancerCount)
	addInt(FactFamilyOvarianCancerCount, e.FamilyOvarianCancerCount)
	addBool(FactFamilyMaleBreastCancer, e.FamilyMaleBreastCancer)
	addBool(FactAshkenaziHeritage, e.AshkenaziHeritage)
	return out
}

var extractionValidate = validator.New()

// ValidateExtraction enforces the fact schema on an extraction: value
// ranges via struct tags, and a usable confidence whenever at least one
// fact is proposed. Invalid extractions must be discarded, not merged.
func ValidateExtraction(e Extraction) error {
	if err := extractionValidate.Struct(e); err != nil {
		return fmt.Errorf("extraction schema violation: %w", err)
	}
	if !e.IsEmpty() && e.Confidence <= 0 {
		return fmt.Errorf("extraction proposes facts with zero confidence")
	}
	return nil
}

// DecodeExtraction parses a JSON extraction, rejecting unknown keys so a
// drifting model cannot smuggle fields past the schema.
func DecodeExtraction(raw []byte) (Extraction, error) {
	var e Extraction
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&e); err != nil {
		return Extraction{}, fmt.Errorf("decode extraction: %w", err)
	}
	if err := ValidateExtraction(e); err != nil {
		return Extraction{}, err
	}
	return e, nil
}
