package domain

import (
	"context"
	"sort"
	"time"

	"github.com/boxoffice/ticket-system/shared/events"
	"github.com/boxoffice/ticket-system/shared/models"
	"github.com/pkg/errors"
)

// SagaPhase represents the coarse lifecycle of a saga instance
type SagaPhase string

const (
	SagaPhaseAwaitingResults SagaPhase = "awaiting_results"
	SagaPhaseCompleted       SagaPhase = "completed"
	SagaPhaseFailed          SagaPhase = "failed"
)

// IsTerminal checks whether the phase is final
func (p SagaPhase) IsTerminal() bool {
	return p == SagaPhaseCompleted || p == SagaPhaseFailed
}

// TicketPurchase aggregate root. One instance per business transaction,
// keyed by its correlation ID. The payload fields are captured from the
// trigger and read-only afterwards; the outcome map holds one slot per
// fanned-out step.
type TicketPurchase struct {
	CorrelationID models.ID
	Row           int
	Seat          int
	Price         models.Money
	Phase         SagaPhase
	StepOutcomes  map[StepID]StepOutcome

	// FailureReasons keeps the reason each failed step reported, keyed by
	// step. Allocated lazily on the first failure.
	FailureReasons map[StepID]string

	// CompensationsDispatched flips once the compensations planned for a
	// failed instance have been handed to the transport. A failed instance
	// with the flag down still owes its compensations.
	CompensationsDispatched bool

	Timestamps models.Timestamps
	Version    models.Version

	events []*events.Event
}

// StartTicketPurchase factory method. Initializes every step slot to pending:
// the slot set is fixed here and never shrinks, even if a later dispatch fails.
// The correlation ID is taken from the trigger when provided so a replayed
// trigger resolves to the same instance; an empty ID generates a fresh one.
func StartTicketPurchase(correlationID models.ID, row, seat int, price models.Money, steps []StepID) (*TicketPurchase, error) {
	if correlationID == "" {
		correlationID = models.GenerateUUID()
	}
	if row <= 0 || seat <= 0 {
		return nil, errors.New("row and seat must be positive")
	}
	if !price.IsPositive() {
		return nil, errors.New("price must be positive")
	}
	if len(steps) == 0 {
		return nil, errors.New("at least one step is required")
	}

	outcomes := make(map[StepID]StepOutcome, len(steps))
	for _, step := range steps {
		outcomes[step] = StepOutcomePending
	}

	saga := &TicketPurchase{
		CorrelationID: correlationID,
		Row:           row,
		Seat:          seat,
		Price:         price,
		Phase:         SagaPhaseAwaitingResults,
		StepOutcomes:  outcomes,
		Timestamps:    models.NewTimestamps(),
		Version:       models.NewVersion(),
	}

	event := events.NewEvent(saga.CorrelationID, events.TicketPurchaseStartedEvent, TicketPurchaseStartedData{
		CorrelationID: saga.CorrelationID,
		Row:           saga.Row,
		Seat:          saga.Seat,
		Price:         saga.Price,
		Steps:         steps,
	}).WithCorrelationID(saga.CorrelationID)

	saga.recordEvent(event)
	return saga, nil
}

// RecordStepOutcome resolves one step slot. Monotonic and idempotent:
// pending moves to succeeded or failed exactly once; re-applying an outcome
// to an already-resolved step, or to a terminal instance, is a no-op and
// reports changed=false so the caller skips downstream effects. The reason is
// kept only for failed outcomes and surfaces in the failed lifecycle event.
func (s *TicketPurchase) RecordStepOutcome(stepID StepID, outcome StepOutcome, reason string) (bool, error) {
	if !outcome.IsTerminal() {
		return false, errors.New("step outcome must be succeeded or failed")
	}

	current, ok := s.StepOutcomes[stepID]
	if !ok {
		return false, errors.Wrapf(ErrUnknownStep, "step %s", stepID)
	}

	if s.Phase.IsTerminal() || current.IsTerminal() {
		return false, nil
	}

	s.StepOutcomes[stepID] = outcome
	if outcome == StepOutcomeFailed && reason != "" {
		if s.FailureReasons == nil {
			s.FailureReasons = make(map[StepID]string)
		}
		s.FailureReasons[stepID] = reason
	}
	s.Timestamps = s.Timestamps.Update()
	s.Version = s.Version.Update()
	return true, nil
}

// Verdict combines the current step outcomes
func (s *TicketPurchase) Verdict() Verdict {
	return CombineOutcomes(s.StepOutcomes)
}

// Complete finalizes the instance after every step succeeded. Idempotent when
// already completed.
func (s *TicketPurchase) Complete() error {
	if s.Phase == SagaPhaseCompleted {
		return nil
	}
	if s.Phase.IsTerminal() {
		return errors.Wrapf(ErrAlreadyTerminal, "phase %s", s.Phase)
	}
	if s.Verdict() != VerdictAllSucceeded {
		return errors.New("cannot complete: not all steps succeeded")
	}

	// The version is not bumped here: finalizing happens in the same
	// read-modify-write cycle as the recording of the last step outcome, and
	// the repositories expect exactly one bump per persisted write.
	s.Phase = SagaPhaseCompleted
	s.Timestamps = s.Timestamps.Update()

	event := events.NewEvent(s.CorrelationID, events.TicketPurchaseCompletedEvent, TicketPurchaseCompletedData{
		CorrelationID: s.CorrelationID,
		Row:           s.Row,
		Seat:          s.Seat,
		Price:         s.Price,
		CompletedAt:   time.Now(),
	}).WithCorrelationID(s.CorrelationID)

	s.recordEvent(event)
	return nil
}

// Fail finalizes the instance after at least one step failed. Idempotent when
// already failed.
func (s *TicketPurchase) Fail() error {
	if s.Phase == SagaPhaseFailed {
		return nil
	}
	if s.Phase.IsTerminal() {
		return errors.Wrapf(ErrAlreadyTerminal, "phase %s", s.Phase)
	}
	if s.Verdict() != VerdictSomeFailed {
		return errors.New("cannot fail: no step has failed")
	}

	failedSteps := make([]StepID, 0, len(s.StepOutcomes))
	for _, step := range sortedSteps(s.StepOutcomes) {
		if s.StepOutcomes[step] == StepOutcomeFailed {
			failedSteps = append(failedSteps, step)
		}
	}

	reasons := make(map[StepID]string, len(s.FailureReasons))
	for step, reason := range s.FailureReasons {
		reasons[step] = reason
	}

	// Same as Complete: the recording of the deciding step outcome already
	// bumped the version for this write cycle.
	s.Phase = SagaPhaseFailed
	s.Timestamps = s.Timestamps.Update()

	event := events.NewEvent(s.CorrelationID, events.TicketPurchaseFailedEvent, TicketPurchaseFailedData{
		CorrelationID: s.CorrelationID,
		Row:           s.Row,
		Seat:          s.Seat,
		FailedSteps:   failedSteps,
		Reasons:       reasons,
		FailedAt:      time.Now(),
	}).WithCorrelationID(s.CorrelationID)

	s.recordEvent(event)
	return nil
}

// NeedsCompensationDispatch reports whether a failed instance still owes its
// compensations to the transport.
func (s *TicketPurchase) NeedsCompensationDispatch() bool {
	return s.Phase == SagaPhaseFailed && !s.CompensationsDispatched
}

// MarkCompensationsDispatched records that every planned compensation has been
// handed to the transport. Unlike finalization this opens its own write cycle:
// the mark is persisted separately, after the dispatch succeeded.
func (s *TicketPurchase) MarkCompensationsDispatched() {
	if s.CompensationsDispatched {
		return
	}
	s.CompensationsDispatched = true
	s.Timestamps = s.Timestamps.Update()
	s.Version = s.Version.Update()
}

// Events returns domain events
func (s *TicketPurchase) Events() []*events.Event {
	return s.events
}

// ClearEvents clears domain events
func (s *TicketPurchase) ClearEvents() {
	s.events = make([]*events.Event, 0)
}

// recordEvent records a domain event
func (s *TicketPurchase) recordEvent(event *events.Event) {
	s.events = append(s.events, event)
}

func sortedSteps(outcomes map[StepID]StepOutcome) []StepID {
	steps := make([]StepID, 0, len(outcomes))
	for step := range outcomes {
		steps = append(steps, step)
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i] < steps[j] })
	return steps
}

// Event Data Structures
type TicketPurchaseStartedData struct {
	CorrelationID models.ID    `json:"correlation_id"`
	Row           int          `json:"row"`
	Seat          int          `json:"seat"`
	Price         models.Money `json:"price"`
	Steps         []StepID     `json:"steps"`
}

type TicketPurchaseCompletedData struct {
	CorrelationID models.ID    `json:"correlation_id"`
	Row           int          `json:"row"`
	Seat          int          `json:"seat"`
	Price         models.Money `json:"price"`
	CompletedAt   time.Time    `json:"completed_at"`
}

type TicketPurchaseFailedData struct {
	CorrelationID models.ID         `json:"correlation_id"`
	Row           int               `json:"row"`
	Seat          int               `json:"seat"`
	FailedSteps   []StepID          `json:"failed_steps"`
	Reasons       map[StepID]string `json:"reasons,omitempty"`
	FailedAt      time.Time         `json:"failed_at"`
}

// SagaRepository persists saga instances under per-instance optimistic
// concurrency. Update compares the stored version against the version the
// instance was loaded with and returns ErrConcurrencyConflict when a
// concurrent writer got there first; the caller re-reads and retries.
type SagaRepository interface {
	Create(ctx context.Context, saga *TicketPurchase) error
	FindByCorrelationID(ctx context.Context, correlationID models.ID) (*TicketPurchase, error)
	Update(ctx context.Context, saga *TicketPurchase) error
}
