package application

import (
	"context"
	"fmt"

	"github.com/boxoffice/ticket-system/orchestrator/domain"
	"github.com/boxoffice/ticket-system/shared/events"
	"github.com/boxoffice/ticket-system/shared/models"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// StartTicketPurchaseCommand represents the trigger for a new purchase saga.
// CorrelationID is optional: the event handler passes the trigger event's ID
// so a redelivered trigger resolves to the existing instance.
type StartTicketPurchaseCommand struct {
	CorrelationID models.ID    `json:"correlation_id,omitempty"`
	Row           int          `json:"row"`
	Seat          int          `json:"seat"`
	Price         models.Money `json:"price"`
}

// StartTicketPurchaseResponse is returned to the caller
type StartTicketPurchaseResponse struct {
	CorrelationID models.ID        `json:"correlation_id"`
	Phase         domain.SagaPhase `json:"phase"`
}

// StartTicketPurchase use case creates a saga instance and fans out the
// purchase commands to the seat booking, payment and document services.
type StartTicketPurchase struct {
	sagaRepository domain.SagaRepository
	eventPublisher events.Publisher
	eventStore     events.EventStore
	steps          []domain.StepID
}

// NewStartTicketPurchase creates a new StartTicketPurchase use case
func NewStartTicketPurchase(
	sagaRepository domain.SagaRepository,
	eventPublisher events.Publisher,
	eventStore events.EventStore,
) *StartTicketPurchase {
	return &StartTicketPurchase{
		sagaRepository: sagaRepository,
		eventPublisher: eventPublisher,
		eventStore:     eventStore,
		steps:          domain.TicketPurchaseSteps(),
	}
}

// Execute creates the instance with every step slot pending, persists it, and
// only then dispatches the commands. Persist-before-dispatch keeps the slot
// count equal to the dispatched-step count even when a dispatch fails: the
// undispatched step simply stays pending and the instance stays in
// awaiting_results until an operator intervenes.
func (uc *StartTicketPurchase) Execute(ctx context.Context, cmd *StartTicketPurchaseCommand) (*StartTicketPurchaseResponse, error) {
	if err := uc.validateCommand(cmd); err != nil {
		return nil, errors.Wrap(err, "invalid command")
	}

	saga, err := domain.StartTicketPurchase(cmd.CorrelationID, cmd.Row, cmd.Seat, cmd.Price, uc.steps)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start ticket purchase")
	}

	if err := uc.sagaRepository.Create(ctx, saga); err != nil {
		if errors.Is(err, domain.ErrDuplicateInstance) {
			// Trigger replay: the instance exists and its commands were
			// already dispatched. Re-dispatching would double-book the seat.
			existing, findErr := uc.sagaRepository.FindByCorrelationID(ctx, saga.CorrelationID)
			if findErr != nil {
				return nil, errors.Wrap(findErr, "failed to load existing saga instance")
			}
			return &StartTicketPurchaseResponse{
				CorrelationID: existing.CorrelationID,
				Phase:         existing.Phase,
			}, nil
		}
		return nil, errors.Wrap(err, "failed to create saga instance")
	}

	if err := uc.eventStore.SaveEvents(ctx, saga.CorrelationID, saga.Events()); err != nil {
		return nil, errors.Wrap(err, "failed to record saga events")
	}

	if err := uc.eventPublisher.Publish(ctx, saga.Events()...); err != nil {
		return nil, errors.Wrap(err, "failed to publish saga started event")
	}
	saga.ClearEvents()

	// Fan out. The commands target independent services and are dispatched in
	// parallel; a failed dispatch is surfaced but does not roll back the
	// instance or the other commands.
	commands := uc.buildCommands(saga)
	var g errgroup.Group
	for _, command := range commands {
		command := command
		g.Go(func() error {
			if err := uc.eventPublisher.Publish(ctx, command); err != nil {
				return errors.Wrapf(err, "failed to dispatch %s", command.Topic)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	purchasesInFlight.Inc()

	return &StartTicketPurchaseResponse{
		CorrelationID: saga.CorrelationID,
		Phase:         saga.Phase,
	}, nil
}

func (uc *StartTicketPurchase) buildCommands(saga *domain.TicketPurchase) []*events.Event {
	return []*events.Event{
		events.NewEvent(saga.CorrelationID, events.SeatBookingRequestedEvent, SeatBookingRequestData{
			CorrelationID: saga.CorrelationID,
			Row:           saga.Row,
			Seat:          saga.Seat,
		}).WithCorrelationID(saga.CorrelationID),
		events.NewEvent(saga.CorrelationID, events.PaymentChargeRequestedEvent, PaymentChargeRequestData{
			CorrelationID: saga.CorrelationID,
			Amount:        saga.Price,
			Reference:     fmt.Sprintf("Ticket purchase %s", saga.CorrelationID),
		}).WithCorrelationID(saga.CorrelationID),
		events.NewEvent(saga.CorrelationID, events.TicketDocumentRequestedEvent, TicketDocumentRequestData{
			CorrelationID: saga.CorrelationID,
			Row:           saga.Row,
			Seat:          saga.Seat,
		}).WithCorrelationID(saga.CorrelationID),
	}
}

// validateCommand validates the start ticket purchase command
func (uc *StartTicketPurchase) validateCommand(cmd *StartTicketPurchaseCommand) error {
	if cmd.Row <= 0 {
		return errors.New("row is required")
	}

	if cmd.Seat <= 0 {
		return errors.New("seat is required")
	}

	if cmd.Price.Amount <= 0 {
		return errors.New("price must be positive")
	}

	if cmd.Price.Currency == "" {
		return errors.New("currency is required")
	}

	return nil
}

// Command payload structures
type SeatBookingRequestData struct {
	CorrelationID models.ID `json:"correlation_id"`
	Row           int       `json:"row"`
	Seat          int       `json:"seat"`
}

type PaymentChargeRequestData struct {
	CorrelationID models.ID    `json:"correlation_id"`
	Amount        models.Money `json:"amount"`
	Reference     string       `json:"reference"`
}

type TicketDocumentRequestData struct {
	CorrelationID models.ID `json:"correlation_id"`
	Row           int       `json:"row"`
	Seat          int       `json:"seat"`
}
