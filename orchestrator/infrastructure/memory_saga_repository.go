package infrastructure

import (
	"context"
	"sync"

	"github.com/boxoffice/ticket-system/orchestrator/domain"
	"github.com/boxoffice/ticket-system/shared/models"
	"github.com/pkg/errors"
)

// MemorySagaRepository implements SagaRepository in memory for testing and
// local development. It enforces the same version checks as the postgres
// implementation so concurrency bugs surface in tests too.
type MemorySagaRepository struct {
	mu    sync.RWMutex
	sagas map[models.ID]*domain.TicketPurchase
}

// NewMemorySagaRepository creates a new MemorySagaRepository
func NewMemorySagaRepository() *MemorySagaRepository {
	return &MemorySagaRepository{
		sagas: make(map[models.ID]*domain.TicketPurchase),
	}
}

// Create stores a new saga instance
func (r *MemorySagaRepository) Create(ctx context.Context, saga *domain.TicketPurchase) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sagas[saga.CorrelationID]; exists {
		return errors.Wrapf(domain.ErrDuplicateInstance, "correlation id %s", saga.CorrelationID)
	}

	r.sagas[saga.CorrelationID] = copySaga(saga)
	return nil
}

// FindByCorrelationID loads a saga instance
func (r *MemorySagaRepository) FindByCorrelationID(ctx context.Context, correlationID models.ID) (*domain.TicketPurchase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	saga, exists := r.sagas[correlationID]
	if !exists {
		return nil, errors.Wrapf(domain.ErrSagaNotFound, "correlation id %s", correlationID)
	}

	return copySaga(saga), nil
}

// Update writes the instance back if the stored version matches the version
// the caller loaded
func (r *MemorySagaRepository) Update(ctx context.Context, saga *domain.TicketPurchase) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, exists := r.sagas[saga.CorrelationID]
	if !exists {
		return errors.Wrapf(domain.ErrSagaNotFound, "correlation id %s", saga.CorrelationID)
	}

	if stored.Version.Value != saga.Version.Value-1 {
		return errors.Wrapf(domain.ErrConcurrencyConflict, "correlation id %s version %d", saga.CorrelationID, saga.Version.Value-1)
	}

	r.sagas[saga.CorrelationID] = copySaga(saga)
	return nil
}

// copySaga returns a deep copy so callers cannot mutate stored state
func copySaga(saga *domain.TicketPurchase) *domain.TicketPurchase {
	outcomes := make(map[domain.StepID]domain.StepOutcome, len(saga.StepOutcomes))
	for step, outcome := range saga.StepOutcomes {
		outcomes[step] = outcome
	}

	var reasons map[domain.StepID]string
	if saga.FailureReasons != nil {
		reasons = make(map[domain.StepID]string, len(saga.FailureReasons))
		for step, reason := range saga.FailureReasons {
			reasons[step] = reason
		}
	}

	clone := *saga
	clone.StepOutcomes = outcomes
	clone.FailureReasons = reasons
	clone.ClearEvents()
	return &clone
}
