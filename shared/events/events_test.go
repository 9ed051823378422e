package events

import (
	"testing"

	"github.com/boxoffice/ticket-system/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopic_Matches(t *testing.T) {
	tests := []struct {
		topic    Topic
		pattern  Topic
		expected bool
	}{
		{"seat.booking.succeeded", "seat.booking.succeeded", true},
		{"seat.booking.succeeded", "seat.booking.failed", false},
		{"seat.booking.succeeded", "seat.*.succeeded", true},
		{"payment.charge.failed", "payment.*.failed", true},
		{"ticket.purchase.started", "#", true},
		{"ticket.purchase.started", "ticket.#", true},
		{"ticket.purchase.started", "#.started", true},
		{"ticket.purchase.started", "#purchase#", true},
		{"seat.release.requested", "payment.#", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.topic)+" vs "+string(tt.pattern), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.topic.Matches(tt.pattern))
		})
	}
}

func TestEvent_PayloadRoundTrip(t *testing.T) {
	type payload struct {
		Row  int `json:"row"`
		Seat int `json:"seat"`
	}

	event := NewEvent(models.GenerateUUID(), SeatBookingRequestedEvent, payload{Row: 5, Seat: 12})

	raw, err := event.MarshalPayload()
	require.NoError(t, err)

	restored := &Event{Data: raw}
	var got payload
	require.NoError(t, restored.UnmarshalPayload(&got))
	assert.Equal(t, payload{Row: 5, Seat: 12}, got)
}

func TestEvent_WithCorrelationID(t *testing.T) {
	aggregateID := models.GenerateUUID()
	correlationID := models.GenerateUUID()

	event := NewEvent(aggregateID, TicketPurchaseStartedEvent, nil).WithCorrelationID(correlationID)

	assert.Equal(t, aggregateID, event.AggregateID)
	assert.Equal(t, correlationID, event.CorrelationID)
	assert.Equal(t, Topic(TicketPurchaseStartedEvent), event.Topic)
	assert.NotEmpty(t, event.ID)
}

func TestMetadata_Set(t *testing.T) {
	t.Run("entries stick on an allocated map", func(t *testing.T) {
		event := NewEvent(models.GenerateUUID(), SeatBookingRequestedEvent, nil)
		event.Metadata.Set("sqs_message_id", "msg-1")

		got, ok := event.Metadata.Get("sqs_message_id")
		require.True(t, ok)
		assert.Equal(t, "msg-1", got)
	})

	t.Run("WithMetadata allocates a nil map", func(t *testing.T) {
		// Decoded events can arrive without metadata; WithMetadata must not
		// lose the entry.
		event := &Event{}
		event.WithMetadata("attempt", "1")

		got, ok := event.Metadata.Get("attempt")
		require.True(t, ok)
		assert.Equal(t, "1", got)
	})
}

func TestEvent_Clone(t *testing.T) {
	event := NewEvent(models.GenerateUUID(), PaymentChargeRequestedEvent, nil).
		WithMetadata("attempt", "1")

	clone := event.Clone()
	clone.Metadata.Set("attempt", "2")

	attempt, _ := event.Metadata.Get("attempt")
	assert.Equal(t, "1", attempt, "clone must not share metadata")
}
