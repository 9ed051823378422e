package application

import (
	"context"

	"github.com/boxoffice/ticket-system/shared/events"
	"github.com/boxoffice/ticket-system/shared/models"
	"github.com/pkg/errors"
)

// GetPurchaseEventsQuery represents the query for a purchase's audit stream
type GetPurchaseEventsQuery struct {
	CorrelationID string `json:"correlation_id"`
}

// GetPurchaseEvents use case retrieves the lifecycle events recorded for one
// purchase, in stream order. Together with the instance view it reconstructs
// what happened to a purchase after the fact.
type GetPurchaseEvents struct {
	eventStore events.EventStore
}

// NewGetPurchaseEvents creates a new GetPurchaseEvents use case
func NewGetPurchaseEvents(eventStore events.EventStore) *GetPurchaseEvents {
	return &GetPurchaseEvents{eventStore: eventStore}
}

// Execute retrieves the audit stream by correlation ID
func (uc *GetPurchaseEvents) Execute(ctx context.Context, query *GetPurchaseEventsQuery) ([]*events.Event, error) {
	if query.CorrelationID == "" {
		return nil, errors.New("correlation ID is required")
	}

	correlationID, err := models.NewID(query.CorrelationID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid correlation ID")
	}

	stream, err := uc.eventStore.GetEvents(ctx, correlationID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load audit stream")
	}

	return stream, nil
}
