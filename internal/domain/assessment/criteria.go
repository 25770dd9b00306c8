package assessment

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/genintake/backend/internal/domain/shared"
)

// Criterion identifiers. The numeric thresholds and display names attached
// to them are supplied by the interview protocol, not fixed here.
const (
	CriterionEarlyOnsetBreastCancer = "early_onset_breast_cancer"
	CriterionFamilyBreastCancer     = "multiple_family_breast_cancer"
	CriterionFamilyOvarianCancer    = "family_ovarian_cancer"
	CriterionMaleBreastCancer       = "male_breast_cancer_family"
	CriterionAshkenaziHistory       = "ashkenazi_with_history"
)

// CriterionConfig parameterizes one eligibility criterion
type CriterionConfig struct {
	ID        string
	Name      string
	Threshold int
}

// Criterion is one compiled eligibility rule
type Criterion struct {
	ID        string
	Name      string
	Threshold int
	predicate func(r *ClinicalFactRecord) bool
}

// Met evaluates the criterion over definite facts only; unknown inputs
// make the criterion not met, never met.
func (c Criterion) Met(r *ClinicalFactRecord) bool {
	return c.predicate(r)
}

// RuleSet is an ordered, compiled list of eligibility criteria
type RuleSet struct {
	criteria []Criterion
}

// NewRuleSet compiles criterion configurations in order. Unrecognized
// criterion identifiers are rejected so a typo in protocol configuration
// fails loudly at startup instead of silently never matching.
func NewRuleSet(configs []CriterionConfig) (RuleSet, error) {
	if len(configs) == 0 {
		return RuleSet{}, shared.NewDomainError("EMPTY_RULESET", "A rule set requires at least one criterion")
	}
	criteria := make([]Criterion, 0, len(configs))
	for _, cfg := range configs {
		predicate, err := buildPredicate(cfg)
		if err != nil {
			return RuleSet{}, err
		}
		criteria = append(criteria, Criterion{
			ID:        cfg.ID,
			Name:      cfg.Name,
			Threshold: cfg.Threshold,
			predicate: predicate,
		})
	}
	return RuleSet{criteria: criteria}, nil
}

// Criteria returns the compiled criteria in evaluation order
func (rs RuleSet) Criteria() []Criterion {
	out := make([]Criterion, len(rs.criteria))
	copy(out, rs.criteria)
	return out
}

func buildPredicate(cfg CriterionConfig) (func(r *ClinicalFactRecord) bool, error) {
	switch cfg.ID {
	case CriterionEarlyOnsetBreastCancer:
		maxAge := cfg.Threshold
		return func(r *ClinicalFactRecord) bool {
			personal, ok := r.BoolFact(FactPersonalBreastCancer)
			if !ok || !personal {
				return false
			}
			age, ok := r.IntFact(FactBreastCancerAge)
			return ok && age <= maxAge
		}, nil
	case CriterionFamilyBreastCancer:
		minCount := cfg.Threshold
		return func(r *ClinicalFactRecord) bool {
			count, ok := r.IntFact(FactFamilyBreastCancerCount)
			return ok && count >= minCount
		}, nil
	case CriterionFamilyOvarianCancer:
		minCount := cfg.Threshold
		return func(r *ClinicalFactRecord) bool {
			count, ok := r.IntFact(FactFamilyOvarianCancerCount)
			return ok && count >= minCount
		}, nil
	case CriterionMaleBreastCancer:
		return func(r *ClinicalFactRecord) bool {
			male, ok := r.BoolFact(FactFamilyMaleBreastCancer)
			return ok && male
		}, nil
	case CriterionAshkenaziHistory:
		return func(r *ClinicalFactRecord) bool {
			ashkenazi, ok := r.BoolFact(FactAshkenaziHeritage)
			if !ok || !ashkenazi {
				return false
			}
			if personal, ok := r.BoolFact(FactPersonalBreastCancer); ok && personal {
				return true
			}
			if personal, ok := r.BoolFact(FactPersonalOvarianCancer); ok && personal {
				return true
			}
			if count, ok := r.IntFact(FactFamilyBreastCancerCount); ok && count >= 1 {
				return true
			}
			if count, ok := r.IntFact(FactFamilyOvarianCancerCount); ok && count >= 1 {
				return true
			}
			return false
		}, nil
	default:
		return nil, shared.NewDomainError("UNKNOWN_CRITERION", fmt.Sprintf("Unknown criterion identifier: %s", cfg.ID))
	}
}

// Outcome is the pure result of evaluating a rule set over a fact record
type Outcome struct {
	MeetsCriteria bool
	CriteriaMet   []string
	RiskScore     decimal.Decimal
	RiskCategory  RiskCategory
	Confidence    float64
}

// Evaluator applies a rule set to fact records. It performs no I/O and
// carries no mutable state; the same record always yields the same outcome.
type Evaluator struct {
	rules RuleSet
}

// NewEvaluator creates an evaluator over a compiled rule set
func NewEvaluator(rules RuleSet) *Evaluator {
	return &Evaluator{rules: rules}
}

// Evaluate maps a fact record to an eligibility outcome. Meeting any
// single criterion meets criteria; the score is categorical, two-tier.
func (e *Evaluator) Evaluate(record ClinicalFactRecord) Outcome {
	met := make([]string, 0, len(e.rules.criteria))
	for _, criterion := range e.rules.criteria {
		if criterion.Met(&record) {
			met = append(met, criterion.Name)
		}
	}

	meets := len(met) > 0
	score := riskScoreNoCriteria
	if meets {
		score = riskScoreCriteriaMet
	}

	return Outcome{
		MeetsCriteria: meets,
		CriteriaMet:   met,
		RiskScore:     score,
		RiskCategory:  RiskCategoryForScore(score),
		Confidence:    record.CompletionRatio(),
	}
}

// HighestWeightUnknown picks the unresolved fact with the highest
// discriminative weight, the next most valuable thing to ask about.
// Ties and unweighted keys resolve by canonical schema order.
func HighestWeightUnknown(record ClinicalFactRecord, weights map[FactKey]float64) (FactKey, bool) {
	var best FactKey
	bestWeight := -1.0
	found := false
	for _, key := range record.UnknownKeys() {
		w := weights[key]
		if !found || w > bestWeight {
			best = key
			bestWeight = w
			found = true
		}
	}
	return best, found
}
