package handlers

import (
	"context"
	"fmt"

	"github.com/boxoffice/ticket-system/orchestrator/application"
	"github.com/boxoffice/ticket-system/orchestrator/domain"
	"github.com/boxoffice/ticket-system/shared/events"
	"github.com/boxoffice/ticket-system/shared/models"
	"github.com/pkg/errors"
)

// stepRoute maps one inbound event type to the slot it resolves
type stepRoute struct {
	StepID  domain.StepID
	Outcome domain.StepOutcome
}

// stepOutcomeRoutes is the static routing table: every distinct step-outcome
// event type maps to exactly one (step, outcome) pair.
var stepOutcomeRoutes = map[string]stepRoute{
	events.SeatBookingSucceededEvent:    {StepID: domain.StepSeatBooking, Outcome: domain.StepOutcomeSucceeded},
	events.SeatBookingFailedEvent:       {StepID: domain.StepSeatBooking, Outcome: domain.StepOutcomeFailed},
	events.PaymentChargeSucceededEvent:  {StepID: domain.StepPayment, Outcome: domain.StepOutcomeSucceeded},
	events.PaymentChargeFailedEvent:     {StepID: domain.StepPayment, Outcome: domain.StepOutcomeFailed},
	events.TicketDocumentSucceededEvent: {StepID: domain.StepTicketDocument, Outcome: domain.StepOutcomeSucceeded},
	events.TicketDocumentFailedEvent:    {StepID: domain.StepTicketDocument, Outcome: domain.StepOutcomeFailed},
}

// RouteStepOutcome resolves an event type against the static routing table
func RouteStepOutcome(eventType string) (domain.StepID, domain.StepOutcome, bool) {
	route, ok := stepOutcomeRoutes[eventType]
	if !ok {
		return "", "", false
	}
	return route.StepID, route.Outcome, true
}

// SagaEventHandlers handles all saga-related events of the orchestrator
type SagaEventHandlers struct {
	startTicketPurchase *application.StartTicketPurchase
	processStepResult   *application.ProcessStepResult
}

// NewSagaEventHandlers creates new saga event handlers
func NewSagaEventHandlers(
	startTicketPurchase *application.StartTicketPurchase,
	processStepResult *application.ProcessStepResult,
) *SagaEventHandlers {
	return &SagaEventHandlers{
		startTicketPurchase: startTicketPurchase,
		processStepResult:   processStepResult,
	}
}

// HandlerID returns the unique identifier for this event handler
func (h *SagaEventHandlers) HandlerID() string {
	return "ticket-saga-orchestrator"
}

// Handle implements the events.EventHandler interface
func (h *SagaEventHandlers) Handle(ctx context.Context, event *events.Event) error {
	if event.EventType == events.TicketPurchaseRequestedEvent {
		return h.HandleTicketPurchaseRequested(ctx, event)
	}

	if _, _, ok := RouteStepOutcome(event.EventType); ok {
		return h.HandleStepOutcome(ctx, event)
	}

	// Unknown event type, ignore
	return nil
}

// HandleTicketPurchaseRequested handles the saga trigger event
func (h *SagaEventHandlers) HandleTicketPurchaseRequested(ctx context.Context, event *events.Event) error {
	var data TicketPurchaseRequestedData
	if err := h.parseEventData(event, &data); err != nil {
		return errors.Wrap(err, "failed to parse ticket purchase requested data")
	}

	cmd := &application.StartTicketPurchaseCommand{
		CorrelationID: triggerCorrelationID(event),
		Row:           data.Row,
		Seat:          data.Seat,
		Price:         data.Price,
	}

	if _, err := h.startTicketPurchase.Execute(ctx, cmd); err != nil {
		fmt.Printf("Failed to start ticket purchase for event %s: %v\n", event.ID, err)
		return err
	}

	purchasesStarted.Inc()
	return nil
}

// HandleStepOutcome handles every step success/failure event
func (h *SagaEventHandlers) HandleStepOutcome(ctx context.Context, event *events.Event) error {
	stepID, outcome, ok := RouteStepOutcome(event.EventType)
	if !ok {
		return nil
	}

	correlationID := event.CorrelationID
	if correlationID == "" {
		correlationID = event.AggregateID
	}

	var data StepOutcomeData
	if err := h.parseEventData(event, &data); err != nil {
		return errors.Wrap(err, "failed to parse step outcome data")
	}

	cmd := &application.ProcessStepResultCommand{
		CorrelationID: correlationID,
		StepID:        stepID,
		Outcome:       outcome,
		Reason:        data.Reason,
	}

	if err := h.processStepResult.Execute(ctx, cmd); err != nil {
		if errors.Is(err, domain.ErrUnroutableEvent) {
			// Late or duplicate delivery for an archived instance: drop it.
			fmt.Printf("Dropping unroutable event %s for correlation %s\n", event.EventType, correlationID)
			unroutableEvents.Inc()
			return nil
		}
		fmt.Printf("Failed to process %s for correlation %s: %v\n", event.EventType, correlationID, err)
		// Returned so the transport redelivers; reprocessing is idempotent.
		return err
	}

	stepEventsProcessed.WithLabelValues(stepID.String(), string(outcome)).Inc()
	return nil
}

// triggerCorrelationID derives the saga correlation ID from the trigger so a
// redelivered trigger maps to the same instance
func triggerCorrelationID(event *events.Event) models.ID {
	if event.CorrelationID != "" {
		return event.CorrelationID
	}
	return event.ID
}

// parseEventData parses event data into the specified struct
func (h *SagaEventHandlers) parseEventData(event *events.Event, target interface{}) error {
	if err := event.UnmarshalPayload(target); err != nil {
		return errors.Wrap(err, "failed to unmarshal event data")
	}
	return nil
}

// Event data structures
type TicketPurchaseRequestedData struct {
	Row   int          `json:"row"`
	Seat  int          `json:"seat"`
	Price models.Money `json:"price"`
}

type StepOutcomeData struct {
	CorrelationID models.ID `json:"correlation_id"`
	Reason        string    `json:"reason,omitempty"`
}
