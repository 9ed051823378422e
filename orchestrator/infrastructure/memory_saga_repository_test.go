package infrastructure

import (
	"context"
	"testing"

	"github.com/boxoffice/ticket-system/orchestrator/domain"
	"github.com/boxoffice/ticket-system/shared/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoredSaga(t *testing.T, repo *MemorySagaRepository) *domain.TicketPurchase {
	t.Helper()
	saga, err := domain.StartTicketPurchase("", 5, 12, models.NewMoney(4500, "USD"), domain.TicketPurchaseSteps())
	require.NoError(t, err)
	saga.ClearEvents()
	require.NoError(t, repo.Create(context.Background(), saga))
	return saga
}

func TestMemorySagaRepository_Create(t *testing.T) {
	repo := NewMemorySagaRepository()
	saga := newStoredSaga(t, repo)

	t.Run("duplicate correlation ID is rejected", func(t *testing.T) {
		err := repo.Create(context.Background(), saga)
		assert.True(t, errors.Is(err, domain.ErrDuplicateInstance))
	})

	t.Run("stored instance is isolated from the caller", func(t *testing.T) {
		saga.StepOutcomes[domain.StepPayment] = domain.StepOutcomeFailed

		stored, err := repo.FindByCorrelationID(context.Background(), saga.CorrelationID)
		require.NoError(t, err)
		assert.Equal(t, domain.StepOutcomePending, stored.StepOutcomes[domain.StepPayment])
	})
}

func TestMemorySagaRepository_FindByCorrelationID(t *testing.T) {
	repo := NewMemorySagaRepository()

	_, err := repo.FindByCorrelationID(context.Background(), models.GenerateUUID())
	assert.True(t, errors.Is(err, domain.ErrSagaNotFound))
}

func TestMemorySagaRepository_Update(t *testing.T) {
	t.Run("update with matching version succeeds", func(t *testing.T) {
		repo := NewMemorySagaRepository()
		saga := newStoredSaga(t, repo)

		loaded, err := repo.FindByCorrelationID(context.Background(), saga.CorrelationID)
		require.NoError(t, err)

		changed, err := loaded.RecordStepOutcome(domain.StepPayment, domain.StepOutcomeSucceeded, "")
		require.NoError(t, err)
		require.True(t, changed)

		require.NoError(t, repo.Update(context.Background(), loaded))

		stored, err := repo.FindByCorrelationID(context.Background(), saga.CorrelationID)
		require.NoError(t, err)
		assert.Equal(t, domain.StepOutcomeSucceeded, stored.StepOutcomes[domain.StepPayment])
		assert.Equal(t, 2, stored.Version.Value)
	})

	t.Run("concurrent writer loses the version check", func(t *testing.T) {
		repo := NewMemorySagaRepository()
		saga := newStoredSaga(t, repo)

		first, err := repo.FindByCorrelationID(context.Background(), saga.CorrelationID)
		require.NoError(t, err)
		second, err := repo.FindByCorrelationID(context.Background(), saga.CorrelationID)
		require.NoError(t, err)

		changed, err := first.RecordStepOutcome(domain.StepSeatBooking, domain.StepOutcomeSucceeded, "")
		require.NoError(t, err)
		require.True(t, changed)
		require.NoError(t, repo.Update(context.Background(), first))

		changed, err = second.RecordStepOutcome(domain.StepPayment, domain.StepOutcomeSucceeded, "")
		require.NoError(t, err)
		require.True(t, changed)

		err = repo.Update(context.Background(), second)
		assert.True(t, errors.Is(err, domain.ErrConcurrencyConflict))

		// The loser re-reads and retries against the winner's state.
		stored, err := repo.FindByCorrelationID(context.Background(), saga.CorrelationID)
		require.NoError(t, err)
		assert.Equal(t, domain.StepOutcomeSucceeded, stored.StepOutcomes[domain.StepSeatBooking])
		assert.Equal(t, domain.StepOutcomePending, stored.StepOutcomes[domain.StepPayment])
	})

	t.Run("update of unknown instance fails", func(t *testing.T) {
		repo := NewMemorySagaRepository()
		saga, err := domain.StartTicketPurchase("", 1, 1, models.NewMoney(100, "USD"), domain.TicketPurchaseSteps())
		require.NoError(t, err)

		err = repo.Update(context.Background(), saga)
		assert.True(t, errors.Is(err, domain.ErrSagaNotFound))
	})
}
