package application

import (
	"context"
	"sync"
	"testing"

	"github.com/boxoffice/ticket-system/orchestrator/domain"
	"github.com/boxoffice/ticket-system/orchestrator/infrastructure"
	"github.com/boxoffice/ticket-system/shared/events"
	sharedinfra "github.com/boxoffice/ticket-system/shared/infrastructure"
	"github.com/boxoffice/ticket-system/shared/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturingPublisher records every published event instead of hitting a broker
type capturingPublisher struct {
	mu     sync.Mutex
	events []*events.Event
}

func (p *capturingPublisher) Publish(ctx context.Context, evts ...*events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evts...)
	return nil
}

func (p *capturingPublisher) typesOf(eventTypes ...string) []*events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	wanted := make(map[string]bool, len(eventTypes))
	for _, et := range eventTypes {
		wanted[et] = true
	}
	var matched []*events.Event
	for _, event := range p.events {
		if wanted[event.EventType] {
			matched = append(matched, event)
		}
	}
	return matched
}

// flakyPublisher records every attempt and refuses the configured event types
type flakyPublisher struct {
	capturingPublisher
	refuse map[string]bool
}

func (p *flakyPublisher) Publish(ctx context.Context, evts ...*events.Event) error {
	_ = p.capturingPublisher.Publish(ctx, evts...)
	for _, event := range evts {
		if p.refuse[event.EventType] {
			return errors.Wrapf(events.ErrDispatchFailed, "refused %s", event.EventType)
		}
	}
	return nil
}

type sagaTestEnv struct {
	repo      *infrastructure.MemorySagaRepository
	store     *sharedinfra.MemoryEventStore
	publisher *capturingPublisher
	start     *StartTicketPurchase
	process   *ProcessStepResult
}

func newSagaTestEnv() *sagaTestEnv {
	repo := infrastructure.NewMemorySagaRepository()
	store := sharedinfra.NewMemoryEventStore()
	publisher := &capturingPublisher{}

	return &sagaTestEnv{
		repo:      repo,
		store:     store,
		publisher: publisher,
		start:     NewStartTicketPurchase(repo, publisher, store),
		process:   NewProcessStepResult(repo, publisher, store, domain.DefaultCompensationTable(), testRetryConfig()),
	}
}

func (env *sagaTestEnv) startPurchase(t *testing.T) models.ID {
	t.Helper()
	response, err := env.start.Execute(context.Background(), &StartTicketPurchaseCommand{
		Row:   5,
		Seat:  12,
		Price: models.NewMoney(4500, "USD"),
	})
	require.NoError(t, err)
	return response.CorrelationID
}

func (env *sagaTestEnv) deliver(t *testing.T, correlationID models.ID, stepID domain.StepID, outcome domain.StepOutcome) {
	t.Helper()
	err := env.process.Execute(context.Background(), &ProcessStepResultCommand{
		CorrelationID: correlationID,
		StepID:        stepID,
		Outcome:       outcome,
	})
	require.NoError(t, err)
}

func TestSagaFlow_AllStepsSucceed(t *testing.T) {
	env := newSagaTestEnv()
	correlationID := env.startPurchase(t)

	// The fan-out dispatched one command per step.
	commands := env.publisher.typesOf(
		events.SeatBookingRequestedEvent,
		events.PaymentChargeRequestedEvent,
		events.TicketDocumentRequestedEvent,
	)
	require.Len(t, commands, 3)

	env.deliver(t, correlationID, domain.StepSeatBooking, domain.StepOutcomeSucceeded)
	env.deliver(t, correlationID, domain.StepPayment, domain.StepOutcomeSucceeded)

	saga, err := env.repo.FindByCorrelationID(context.Background(), correlationID)
	require.NoError(t, err)
	assert.Equal(t, domain.SagaPhaseAwaitingResults, saga.Phase, "must wait for the last step")

	env.deliver(t, correlationID, domain.StepTicketDocument, domain.StepOutcomeSucceeded)

	saga, err = env.repo.FindByCorrelationID(context.Background(), correlationID)
	require.NoError(t, err)
	assert.Equal(t, domain.SagaPhaseCompleted, saga.Phase)
	// One bump per persisted write: the create plus one per delivered outcome,
	// with the completing delivery and its finalization counted once.
	assert.Equal(t, 4, saga.Version.Value)

	assert.Len(t, env.publisher.typesOf(events.TicketPurchaseCompletedEvent), 1)
	assert.Empty(t, env.publisher.typesOf(events.SeatReleaseRequestedEvent, events.PaymentRefundRequestedEvent))
}

func TestSagaFlow_PaymentFailsAfterSeatBooked(t *testing.T) {
	env := newSagaTestEnv()
	correlationID := env.startPurchase(t)

	env.deliver(t, correlationID, domain.StepSeatBooking, domain.StepOutcomeSucceeded)
	env.deliver(t, correlationID, domain.StepTicketDocument, domain.StepOutcomeSucceeded)
	env.deliver(t, correlationID, domain.StepPayment, domain.StepOutcomeFailed)

	saga, err := env.repo.FindByCorrelationID(context.Background(), correlationID)
	require.NoError(t, err)
	assert.Equal(t, domain.SagaPhaseFailed, saga.Phase)

	// The booked seat is released; the failed payment is never refunded and
	// the document is simply discarded.
	assert.Len(t, env.publisher.typesOf(events.SeatReleaseRequestedEvent), 1)
	assert.Empty(t, env.publisher.typesOf(events.PaymentRefundRequestedEvent))
	assert.Len(t, env.publisher.typesOf(events.TicketPurchaseFailedEvent), 1)
}

func TestSagaFlow_FailureArrivesFirst(t *testing.T) {
	env := newSagaTestEnv()
	correlationID := env.startPurchase(t)

	// The failure lands before the remaining outcomes: the verdict must stay
	// pending until every slot resolves, then compensate exactly the
	// successes.
	env.deliver(t, correlationID, domain.StepPayment, domain.StepOutcomeFailed)

	saga, err := env.repo.FindByCorrelationID(context.Background(), correlationID)
	require.NoError(t, err)
	assert.Equal(t, domain.SagaPhaseAwaitingResults, saga.Phase)
	assert.Empty(t, env.publisher.typesOf(events.SeatReleaseRequestedEvent, events.PaymentRefundRequestedEvent))

	env.deliver(t, correlationID, domain.StepSeatBooking, domain.StepOutcomeSucceeded)
	env.deliver(t, correlationID, domain.StepTicketDocument, domain.StepOutcomeSucceeded)

	saga, err = env.repo.FindByCorrelationID(context.Background(), correlationID)
	require.NoError(t, err)
	assert.Equal(t, domain.SagaPhaseFailed, saga.Phase)
	assert.Len(t, env.publisher.typesOf(events.SeatReleaseRequestedEvent), 1)
	assert.Empty(t, env.publisher.typesOf(events.PaymentRefundRequestedEvent))
}

func TestSagaFlow_DuplicateAndLateDeliveries(t *testing.T) {
	env := newSagaTestEnv()
	correlationID := env.startPurchase(t)

	env.deliver(t, correlationID, domain.StepSeatBooking, domain.StepOutcomeSucceeded)
	// Redelivery of the same outcome.
	env.deliver(t, correlationID, domain.StepSeatBooking, domain.StepOutcomeSucceeded)

	env.deliver(t, correlationID, domain.StepPayment, domain.StepOutcomeFailed)
	env.deliver(t, correlationID, domain.StepTicketDocument, domain.StepOutcomeSucceeded)

	saga, err := env.repo.FindByCorrelationID(context.Background(), correlationID)
	require.NoError(t, err)
	require.Equal(t, domain.SagaPhaseFailed, saga.Phase)

	// Late redeliveries after finalization change nothing and dispatch no
	// second round of compensations.
	env.deliver(t, correlationID, domain.StepPayment, domain.StepOutcomeFailed)
	env.deliver(t, correlationID, domain.StepTicketDocument, domain.StepOutcomeSucceeded)

	assert.Len(t, env.publisher.typesOf(events.SeatReleaseRequestedEvent), 1)
	assert.Len(t, env.publisher.typesOf(events.TicketPurchaseFailedEvent), 1)

	saga, err = env.repo.FindByCorrelationID(context.Background(), correlationID)
	require.NoError(t, err)
	assert.Equal(t, domain.SagaPhaseFailed, saga.Phase)
}

func TestSagaFlow_CompensationRedeliveryAfterDispatchFailure(t *testing.T) {
	repo := infrastructure.NewMemorySagaRepository()
	store := sharedinfra.NewMemoryEventStore()
	publisher := &flakyPublisher{}
	start := NewStartTicketPurchase(repo, publisher, store)
	process := NewProcessStepResult(repo, publisher, store, domain.DefaultCompensationTable(), testRetryConfig())

	response, err := start.Execute(context.Background(), &StartTicketPurchaseCommand{
		Row:   5,
		Seat:  12,
		Price: models.NewMoney(4500, "USD"),
	})
	require.NoError(t, err)
	correlationID := response.CorrelationID

	paymentFailed := &ProcessStepResultCommand{
		CorrelationID: correlationID,
		StepID:        domain.StepPayment,
		Outcome:       domain.StepOutcomeFailed,
		Reason:        "card declined",
	}

	require.NoError(t, process.Execute(context.Background(), &ProcessStepResultCommand{
		CorrelationID: correlationID,
		StepID:        domain.StepSeatBooking,
		Outcome:       domain.StepOutcomeSucceeded,
	}))
	require.NoError(t, process.Execute(context.Background(), &ProcessStepResultCommand{
		CorrelationID: correlationID,
		StepID:        domain.StepTicketDocument,
		Outcome:       domain.StepOutcomeSucceeded,
	}))

	// The broker refuses the seat release while the payment failure finalizes
	// the purchase: the terminal state persists, the compensation does not.
	publisher.refuse = map[string]bool{events.SeatReleaseRequestedEvent: true}
	err = process.Execute(context.Background(), paymentFailed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to dispatch compensation")

	saga, err := repo.FindByCorrelationID(context.Background(), correlationID)
	require.NoError(t, err)
	assert.Equal(t, domain.SagaPhaseFailed, saga.Phase)
	assert.False(t, saga.CompensationsDispatched)
	assert.Equal(t, map[domain.StepID]string{domain.StepPayment: "card declined"}, saga.FailureReasons)

	// The broker heals and the transport redelivers the failed outcome: the
	// terminal instance still owes its compensation and dispatches it now.
	publisher.refuse = nil
	require.NoError(t, process.Execute(context.Background(), paymentFailed))

	saga, err = repo.FindByCorrelationID(context.Background(), correlationID)
	require.NoError(t, err)
	assert.True(t, saga.CompensationsDispatched)
	// One refused attempt plus the delivered one.
	assert.Len(t, publisher.typesOf(events.SeatReleaseRequestedEvent), 2)
	assert.Len(t, publisher.typesOf(events.TicketPurchaseFailedEvent), 1)

	// Once marked, further redeliveries change nothing.
	require.NoError(t, process.Execute(context.Background(), paymentFailed))
	assert.Len(t, publisher.typesOf(events.SeatReleaseRequestedEvent), 2)
}

func TestSagaFlow_AuditStreamRecordsLifecycle(t *testing.T) {
	env := newSagaTestEnv()
	correlationID := env.startPurchase(t)

	env.deliver(t, correlationID, domain.StepSeatBooking, domain.StepOutcomeSucceeded)
	env.deliver(t, correlationID, domain.StepPayment, domain.StepOutcomeSucceeded)
	env.deliver(t, correlationID, domain.StepTicketDocument, domain.StepOutcomeSucceeded)

	stream, err := env.store.GetEvents(context.Background(), correlationID)
	require.NoError(t, err)
	require.Len(t, stream, 2)
	assert.Equal(t, events.TicketPurchaseStartedEvent, stream[0].EventType)
	assert.Equal(t, events.TicketPurchaseCompletedEvent, stream[1].EventType)
}
