package assessment

import (
	"context"
	"time"

	"github.com/genintake/backend/internal/domain/shared"
)

// InterviewProtocol is the clinical configuration of an interview: the
// scripted questions, the fact weights that steer follow-ups, the
// eligibility criteria with their thresholds, and the session limits.
// Risk thresholds and criterion cutoffs live here, never in code.
type InterviewProtocol struct {
	ID                 string
	Specialty          string
	Name               string
	OpeningQuestions   []string
	FollowUps          map[FactKey]string
	DefaultFollowUp    string
	ClosingStatement   string
	FactWeights        map[FactKey]float64
	Criteria           []CriterionConfig
	MaxTurns           int
	MaxSessionDuration time.Duration
	RetrievalK         int
}

// Validate checks that the protocol is complete enough to run interviews
func (p *InterviewProtocol) Validate() error {
	if p.ID == "" {
		return shared.NewDomainError("INVALID_PROTOCOL", "Protocol ID cannot be empty")
	}
	if p.Specialty == "" {
		return shared.NewDomainError("INVALID_PROTOCOL", "Protocol specialty cannot be empty")
	}
	if len(p.OpeningQuestions) == 0 {
		return shared.NewDomainError("INVALID_PROTOCOL", "Protocol needs at least one opening question")
	}
	if p.DefaultFollowUp == "" {
		return shared.NewDomainError("INVALID_PROTOCOL", "Protocol needs a default follow-up question")
	}
	if len(p.Criteria) == 0 {
		return shared.NewDomainError("INVALID_PROTOCOL", "Protocol needs at least one criterion")
	}
	if p.MaxTurns <= 0 {
		return shared.NewDomainError("INVALID_PROTOCOL", "Turn limit must be positive")
	}
	if p.MaxSessionDuration <= 0 {
		return shared.NewDomainError("INVALID_PROTOCOL", "Session duration limit must be positive")
	}
	if p.RetrievalK <= 0 {
		return shared.NewDomainError("INVALID_PROTOCOL", "Retrieval K must be positive")
	}
	for key := range p.FollowUps {
		if _, ok := KindOf(key); !ok {
			return shared.NewDomainError("INVALID_PROTOCOL", "Follow-up for unknown fact key "+string(key))
		}
	}
	for key := range p.FactWeights {
		if _, ok := KindOf(key); !ok {
			return shared.NewDomainError("INVALID_PROTOCOL", "Weight for unknown fact key "+string(key))
		}
	}
	if _, err := NewRuleSet(p.Criteria); err != nil {
		return err
	}
	return nil
}

// OpeningQuestion returns the scripted opening question at the given
// position, if the script has not been exhausted
func (p *InterviewProtocol) OpeningQuestion(index int) (string, bool) {
	if index < 0 || index >= len(p.OpeningQuestions) {
		return "", false
	}
	return p.OpeningQuestions[index], true
}

// FollowUpFor returns the scripted follow-up question that elicits the
// given fact, falling back to the protocol's generic probe
func (p *InterviewProtocol) FollowUpFor(key FactKey) string {
	if q, ok := p.FollowUps[key]; ok && q != "" {
		return q
	}
	return p.DefaultFollowUp
}

// NextTarget picks the unknown fact with the highest discriminative
// weight, the one whose answer moves the assessment most
func (p *InterviewProtocol) NextTarget(record ClinicalFactRecord) (FactKey, bool) {
	return HighestWeightUnknown(record, p.FactWeights)
}

// ProtocolProvider resolves interview protocols. Implementations load
// them from static configuration or remote stores.
type ProtocolProvider interface {
	Get(ctx context.Context, id string) (*InterviewProtocol, error)
	ForSpecialty(ctx context.Context, specialty string) (*InterviewProtocol, error)
}
