package application

import (
	"context"

	"github.com/boxoffice/ticket-system/shared/events"
	"github.com/pkg/errors"
)

const (
	defaultEventPageSize = 50
	maxEventPageSize     = 200
)

// ListEventsQuery filters the audit log by event type with pagination
type ListEventsQuery struct {
	EventType string `json:"event_type"`
	Offset    int    `json:"offset"`
	Limit     int    `json:"limit"`
}

// ListEvents use case pages through recorded events of one type. Operators
// use it to scan failed purchases across instances.
type ListEvents struct {
	eventStore events.EventStore
}

// NewListEvents creates a new ListEvents use case
func NewListEvents(eventStore events.EventStore) *ListEvents {
	return &ListEvents{eventStore: eventStore}
}

// Execute retrieves one page of events of the given type
func (uc *ListEvents) Execute(ctx context.Context, query *ListEventsQuery) ([]*events.Event, error) {
	if query.EventType == "" {
		return nil, errors.New("event type is required")
	}

	if query.Offset < 0 {
		return nil, errors.New("offset must not be negative")
	}

	limit := query.Limit
	if limit <= 0 {
		limit = defaultEventPageSize
	}
	if limit > maxEventPageSize {
		limit = maxEventPageSize
	}

	page, err := uc.eventStore.GetEventsByType(ctx, query.EventType, query.Offset, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list events")
	}

	return page, nil
}
