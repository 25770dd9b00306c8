package shared

// BaseAggregateRoot extends BaseEntity with an optimistic-lock version
// and a buffer of domain events raised by state transitions. Events stay
// buffered until the application layer drains them after the write that
// produced them has committed.
type BaseAggregateRoot struct {
	BaseEntity
	Version int

	domainEvents []DomainEvent
}

// NewBaseAggregateRoot returns an aggregate at version 1 with no
// pending events.
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity: NewBaseEntity(),
		Version:    1,
	}
}

// IncrementVersion bumps the optimistic-lock version. Repositories call
// this once a guarded update succeeds so the in-memory aggregate tracks
// the stored row.
func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
}

// AddDomainEvent buffers an event for later publication.
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

// GetDomainEvents returns buffered events in the order they were raised.
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.domainEvents
}

// ClearDomainEvents empties the buffer. Callers clear before publishing
// so a publish failure cannot re-deliver the same events on the next
// write.
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.domainEvents = nil
}
