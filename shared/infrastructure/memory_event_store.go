package infrastructure

import (
	"context"
	"sync"

	"github.com/boxoffice/ticket-system/shared/events"
	"github.com/boxoffice/ticket-system/shared/models"
)

// MemoryEventStore implements EventStore in memory for testing and local
// development
type MemoryEventStore struct {
	mu      sync.RWMutex
	streams map[models.ID][]*events.Event
}

// NewMemoryEventStore creates a new MemoryEventStore
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{
		streams: make(map[models.ID][]*events.Event),
	}
}

// SaveEvents appends events to the aggregate's stream
func (es *MemoryEventStore) SaveEvents(ctx context.Context, aggregateID models.ID, evts []*events.Event) error {
	es.mu.Lock()
	defer es.mu.Unlock()

	for _, event := range evts {
		es.streams[aggregateID] = append(es.streams[aggregateID], event.Clone())
	}
	return nil
}

// GetEvents retrieves all events for an aggregate in append order
func (es *MemoryEventStore) GetEvents(ctx context.Context, aggregateID models.ID) ([]*events.Event, error) {
	es.mu.RLock()
	defer es.mu.RUnlock()

	stream := es.streams[aggregateID]
	out := make([]*events.Event, len(stream))
	for i, event := range stream {
		out[i] = event.Clone()
	}
	return out, nil
}

// GetEventsByType retrieves events by type with pagination
func (es *MemoryEventStore) GetEventsByType(ctx context.Context, eventType string, offset, limit int) ([]*events.Event, error) {
	es.mu.RLock()
	defer es.mu.RUnlock()

	var matched []*events.Event
	for _, stream := range es.streams {
		for _, event := range stream {
			if event.EventType == eventType {
				matched = append(matched, event.Clone())
			}
		}
	}

	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}
