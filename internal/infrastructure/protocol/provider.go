// Package protocol provides static interview protocol registration.
// Protocols are validated at construction so a misconfigured criterion
// or follow-up key fails at startup rather than mid-interview.
package protocol

import (
	"context"
	"fmt"
	"sync"

	"github.com/genintake/backend/internal/domain/assessment"
	"github.com/genintake/backend/internal/domain/shared"
)

// StaticProvider resolves protocols from an in-process registry. The
// first protocol registered becomes the default for callers that do not
// name a specialty.
type StaticProvider struct {
	mu           sync.RWMutex
	byID         map[string]*assessment.InterviewProtocol
	bySpecialty  map[string]*assessment.InterviewProtocol
	defaultProto *assessment.InterviewProtocol
}

var _ assessment.ProtocolProvider = (*StaticProvider)(nil)

// NewStaticProvider builds a provider over the given protocols. Every
// protocol is validated, and duplicate IDs or specialties are rejected.
func NewStaticProvider(protocols ...*assessment.InterviewProtocol) (*StaticProvider, error) {
	p := &StaticProvider{
		byID:        make(map[string]*assessment.InterviewProtocol),
		bySpecialty: make(map[string]*assessment.InterviewProtocol),
	}
	for _, proto := range protocols {
		if err := p.Register(proto); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// NewDefaultProvider returns a provider preloaded with the built-in protocols
func NewDefaultProvider() (*StaticProvider, error) {
	return NewStaticProvider(HereditaryCancerProtocol())
}

// Register validates and adds a protocol to the registry
func (p *StaticProvider) Register(proto *assessment.InterviewProtocol) error {
	if proto == nil {
		return shared.NewDomainError("INVALID_PROTOCOL", "Protocol cannot be nil")
	}
	if err := proto.Validate(); err != nil {
		return fmt.Errorf("validate protocol '%s': %w", proto.ID, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.byID[proto.ID]; exists {
		return fmt.Errorf("%w: protocol '%s' already registered", shared.ErrAlreadyExists, proto.ID)
	}
	if _, exists := p.bySpecialty[proto.Specialty]; exists {
		return fmt.Errorf("%w: specialty '%s' already registered", shared.ErrAlreadyExists, proto.Specialty)
	}
	p.byID[proto.ID] = proto
	p.bySpecialty[proto.Specialty] = proto
	if p.defaultProto == nil {
		p.defaultProto = proto
	}
	return nil
}

// Get returns the protocol with the given ID
func (p *StaticProvider) Get(_ context.Context, id string) (*assessment.InterviewProtocol, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	proto, exists := p.byID[id]
	if !exists {
		return nil, fmt.Errorf("%w: protocol '%s' not found", shared.ErrNotFound, id)
	}
	return proto, nil
}

// ForSpecialty returns the protocol registered for the given specialty.
// An empty specialty resolves to the default protocol.
func (p *StaticProvider) ForSpecialty(_ context.Context, specialty string) (*assessment.InterviewProtocol, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if specialty == "" {
		if p.defaultProto == nil {
			return nil, fmt.Errorf("%w: no protocols registered", shared.ErrNotFound)
		}
		return p.defaultProto, nil
	}
	proto, exists := p.bySpecialty[specialty]
	if !exists {
		return nil, fmt.Errorf("%w: no protocol for specialty '%s'", shared.ErrNotFound, specialty)
	}
	return proto, nil
}

// IDs returns the registered protocol IDs
func (p *StaticProvider) IDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := make([]string, 0, len(p.byID))
	for id := range p.byID {
		ids = append(ids, id)
	}
	return ids
}
