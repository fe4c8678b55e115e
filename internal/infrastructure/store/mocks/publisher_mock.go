package mocks

import (
	"context"
	"sync"
)

// PublishedMessage is one recorded Publish call.
type PublishedMessage struct {
	Key   string
	Event any
}

// MockPublisher records published events in memory.
type MockPublisher struct {
	mu         sync.Mutex
	Published  []PublishedMessage
	PublishErr error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (p *MockPublisher) Publish(ctx context.Context, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.PublishErr != nil {
		return p.PublishErr
	}
	p.Published = append(p.Published, PublishedMessage{Key: key, Event: event})
	return nil
}

// Messages returns a copy of everything published so far.
func (p *MockPublisher) Messages() []PublishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PublishedMessage, len(p.Published))
	copy(out, p.Published)
	return out
}
