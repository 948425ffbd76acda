package alerting

import (
	"context"
	"slices"
	"sync"

	"aidchain/internal/priority/models"
)

// MemoryPublisher records escalation events in memory. Used in dev mode when
// no brokers are configured, and in tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []models.Escalation
}

var _ Publisher = (*MemoryPublisher)(nil)

func NewMemory() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) PublishEscalation(_ context.Context, event models.Escalation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns a copy of everything published so far.
func (p *MemoryPublisher) Events() []models.Escalation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.events)
}

func (p *MemoryPublisher) Close() error {
	return nil
}
