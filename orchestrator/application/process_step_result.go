package application

import (
	"context"
	"time"

	"github.com/boxoffice/ticket-system/orchestrator/domain"
	"github.com/boxoffice/ticket-system/shared/events"
	"github.com/boxoffice/ticket-system/shared/models"
	"github.com/pkg/errors"
)

// ProcessStepResultCommand represents one routed step-outcome event
type ProcessStepResultCommand struct {
	CorrelationID models.ID          `json:"correlation_id"`
	StepID        domain.StepID      `json:"step_id"`
	Outcome       domain.StepOutcome `json:"outcome"`
	Reason        string             `json:"reason,omitempty"`
}

// RetryConfig bounds the read-modify-write retry loop on concurrency
// conflicts.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	BackoffFactor  float64
}

// DefaultRetryConfig returns the deployment default retry budget
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     5,
		InitialBackoff: 50 * time.Millisecond,
		BackoffFactor:  2.0,
	}
}

// ProcessStepResult use case is the fan-in half of the coordinator: it
// resolves one step slot under optimistic concurrency, combines the outcomes,
// and on completion either finalizes the purchase or dispatches the planned
// compensations.
type ProcessStepResult struct {
	sagaRepository domain.SagaRepository
	eventPublisher events.Publisher
	eventStore     events.EventStore
	compensations  domain.CompensationTable
	retry          RetryConfig
}

// NewProcessStepResult creates a new ProcessStepResult use case
func NewProcessStepResult(
	sagaRepository domain.SagaRepository,
	eventPublisher events.Publisher,
	eventStore events.EventStore,
	compensations domain.CompensationTable,
	retry RetryConfig,
) *ProcessStepResult {
	return &ProcessStepResult{
		sagaRepository: sagaRepository,
		eventPublisher: eventPublisher,
		eventStore:     eventStore,
		compensations:  compensations,
		retry:          retry,
	}
}

// Execute runs one read-modify-write cycle, retrying with backoff while a
// concurrent writer wins the version check. Duplicate deliveries and events
// for terminal instances converge to a no-op.
func (uc *ProcessStepResult) Execute(ctx context.Context, cmd *ProcessStepResultCommand) error {
	if err := uc.validateCommand(cmd); err != nil {
		return errors.Wrap(err, "invalid command")
	}

	backoff := uc.retry.InitialBackoff
	for attempt := 0; ; attempt++ {
		err := uc.process(ctx, cmd)
		if !errors.Is(err, domain.ErrConcurrencyConflict) {
			return err
		}

		if attempt >= uc.retry.MaxRetries {
			// The instance keeps its last persisted state; the transport will
			// redeliver and the idempotent update converges then.
			return errors.Wrapf(err, "retry budget exhausted after %d attempts", attempt+1)
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "cancelled while retrying conflicting update")
		case <-time.After(backoff):
		}
		backoff = time.Duration(float64(backoff) * uc.retry.BackoffFactor)
	}
}

func (uc *ProcessStepResult) process(ctx context.Context, cmd *ProcessStepResultCommand) error {
	saga, err := uc.sagaRepository.FindByCorrelationID(ctx, cmd.CorrelationID)
	if err != nil {
		if errors.Is(err, domain.ErrSagaNotFound) {
			return errors.Wrapf(domain.ErrUnroutableEvent, "correlation id %s", cmd.CorrelationID)
		}
		return errors.Wrap(err, "failed to load saga instance")
	}

	// Late delivery for an already-finalized instance. A failed instance
	// whose compensations never made it out retries the dispatch here; the
	// terminal state itself never changes again.
	if saga.Phase.IsTerminal() {
		if saga.NeedsCompensationDispatch() {
			return uc.dispatchCompensations(ctx, saga)
		}
		return nil
	}

	changed, err := saga.RecordStepOutcome(cmd.StepID, cmd.Outcome, cmd.Reason)
	if err != nil {
		return errors.Wrap(err, "failed to record step outcome")
	}
	if !changed {
		// Duplicate delivery for an already-resolved step.
		return nil
	}

	verdict := saga.Verdict()
	switch verdict {
	case domain.VerdictStillPending:
		// Keep waiting for the remaining steps.
	case domain.VerdictAllSucceeded:
		if err := saga.Complete(); err != nil {
			return errors.Wrap(err, "failed to complete saga")
		}
	case domain.VerdictSomeFailed:
		if err := saga.Fail(); err != nil {
			return errors.Wrap(err, "failed to fail saga")
		}
	}

	// The version check makes exactly one writer win each transition; only
	// the winner publishes lifecycle events and dispatches compensations.
	if err := uc.sagaRepository.Update(ctx, saga); err != nil {
		return err
	}

	switch verdict {
	case domain.VerdictAllSucceeded:
		purchasesCompleted.Inc()
		purchasesInFlight.Dec()
	case domain.VerdictSomeFailed:
		purchasesFailed.Inc()
		purchasesInFlight.Dec()
	}

	if len(saga.Events()) > 0 {
		if err := uc.eventStore.SaveEvents(ctx, saga.CorrelationID, saga.Events()); err != nil {
			return errors.Wrap(err, "failed to record saga events")
		}
	}

	var dispatchErr error
	if verdict == domain.VerdictSomeFailed {
		dispatchErr = uc.dispatchCompensations(ctx, saga)
	}

	if len(saga.Events()) > 0 {
		if err := uc.eventPublisher.Publish(ctx, saga.Events()...); err != nil && dispatchErr == nil {
			dispatchErr = errors.Wrap(err, "failed to publish saga lifecycle events")
		}
		saga.ClearEvents()
	}

	return dispatchErr
}

// dispatchCompensations hands the planned compensations to the transport and
// then persists the dispatch mark in its own write cycle. A surfaced error
// leaves the mark unset, so the next redelivery plans and dispatches again;
// the compensation targets are expected to handle duplicates.
func (uc *ProcessStepResult) dispatchCompensations(ctx context.Context, saga *domain.TicketPurchase) error {
	var dispatchErr error
	for _, compensation := range domain.PlanCompensations(saga, uc.compensations) {
		if err := uc.eventPublisher.Publish(ctx, compensation); err != nil {
			// Keep going: a failure to dispatch one compensation must not
			// prevent attempting the others.
			if dispatchErr == nil {
				dispatchErr = errors.Wrapf(err, "failed to dispatch compensation %s", compensation.Topic)
			}
			continue
		}
		compensationsDispatched.WithLabelValues(compensation.EventType).Inc()
	}
	if dispatchErr != nil {
		return dispatchErr
	}

	saga.MarkCompensationsDispatched()
	if err := uc.sagaRepository.Update(ctx, saga); err != nil {
		if errors.Is(err, domain.ErrConcurrencyConflict) {
			// A concurrent delivery marked the instance first. The dispatch
			// itself happened, so there is nothing left to retry.
			return nil
		}
		return errors.Wrap(err, "failed to mark compensations dispatched")
	}
	return nil
}

// validateCommand validates the process step result command
func (uc *ProcessStepResult) validateCommand(cmd *ProcessStepResultCommand) error {
	if cmd.CorrelationID.String() == "" {
		return errors.New("correlation ID is required")
	}

	if cmd.StepID == "" {
		return errors.New("step ID is required")
	}

	if !cmd.Outcome.IsTerminal() {
		return errors.New("outcome must be either succeeded or failed")
	}

	return nil
}
