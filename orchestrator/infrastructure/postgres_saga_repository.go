package infrastructure

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/boxoffice/ticket-system/orchestrator/domain"
	"github.com/boxoffice/ticket-system/shared/models"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// PostgresSagaRepository implements SagaRepository using PostgreSQL
type PostgresSagaRepository struct {
	db *sqlx.DB
}

// NewPostgresSagaRepository creates a new PostgresSagaRepository
func NewPostgresSagaRepository(db *sqlx.DB) *PostgresSagaRepository {
	return &PostgresSagaRepository{db: db}
}

// postgresSagaInstance represents a saga instance in the database
type postgresSagaInstance struct {
	CorrelationID           string    `db:"correlation_id"`
	Row                     int       `db:"seat_row"`
	Seat                    int       `db:"seat_number"`
	Amount                  int64     `db:"amount"`
	Currency                string    `db:"currency"`
	Phase                   string    `db:"phase"`
	StepOutcomes            []byte    `db:"step_outcomes"`
	FailureReasons          []byte    `db:"failure_reasons"`
	CompensationsDispatched bool      `db:"compensations_dispatched"`
	CreatedAt               time.Time `db:"created_at"`
	UpdatedAt               time.Time `db:"updated_at"`
	Version                 int       `db:"version"`
}

// Create inserts a new saga instance. A primary-key violation on the
// correlation ID maps to ErrDuplicateInstance.
func (r *PostgresSagaRepository) Create(ctx context.Context, saga *domain.TicketPurchase) error {
	pgSaga, err := r.toPostgres(saga)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO saga_instances (
			correlation_id, seat_row, seat_number, amount, currency,
			phase, step_outcomes, failure_reasons, compensations_dispatched,
			created_at, updated_at, version
		) VALUES (
			:correlation_id, :seat_row, :seat_number, :amount, :currency,
			:phase, :step_outcomes, :failure_reasons, :compensations_dispatched,
			:created_at, :updated_at, :version
		)`

	_, err = r.db.NamedExecContext(ctx, query, pgSaga)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return errors.Wrapf(domain.ErrDuplicateInstance, "correlation id %s", saga.CorrelationID)
		}
		return errors.Wrap(err, "failed to insert saga instance")
	}

	return nil
}

// FindByCorrelationID loads a saga instance
func (r *PostgresSagaRepository) FindByCorrelationID(ctx context.Context, correlationID models.ID) (*domain.TicketPurchase, error) {
	query := `
		SELECT correlation_id, seat_row, seat_number, amount, currency,
			   phase, step_outcomes, failure_reasons, compensations_dispatched,
			   created_at, updated_at, version
		FROM saga_instances
		WHERE correlation_id = $1`

	var pgSaga postgresSagaInstance
	err := r.db.GetContext(ctx, &pgSaga, query, correlationID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Wrapf(domain.ErrSagaNotFound, "correlation id %s", correlationID)
		}
		return nil, errors.Wrap(err, "failed to find saga instance")
	}

	return r.toDomain(&pgSaga)
}

// Update writes the instance back under optimistic concurrency: the row is
// only updated when the stored version matches the version the instance was
// loaded with. Zero affected rows means a concurrent writer won.
func (r *PostgresSagaRepository) Update(ctx context.Context, saga *domain.TicketPurchase) error {
	outcomes, err := json.Marshal(saga.StepOutcomes)
	if err != nil {
		return errors.Wrap(err, "failed to marshal step outcomes")
	}
	reasons, err := json.Marshal(saga.FailureReasons)
	if err != nil {
		return errors.Wrap(err, "failed to marshal failure reasons")
	}

	query := `
		UPDATE saga_instances
		SET phase = :phase, step_outcomes = :step_outcomes,
			failure_reasons = :failure_reasons,
			compensations_dispatched = :compensations_dispatched,
			updated_at = :updated_at, version = :version
		WHERE correlation_id = :correlation_id AND version = :old_version`

	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"correlation_id":           saga.CorrelationID.String(),
		"phase":                    string(saga.Phase),
		"step_outcomes":            outcomes,
		"failure_reasons":          reasons,
		"compensations_dispatched": saga.CompensationsDispatched,
		"updated_at":               saga.Timestamps.UpdatedAt,
		"version":                  saga.Version.Value,
		"old_version":              saga.Version.Value - 1, // Optimistic locking
	})
	if err != nil {
		return errors.Wrap(err, "failed to update saga instance")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return errors.Wrapf(domain.ErrConcurrencyConflict, "correlation id %s version %d", saga.CorrelationID, saga.Version.Value-1)
	}

	return nil
}

// toPostgres converts a domain saga instance to the postgres model
func (r *PostgresSagaRepository) toPostgres(saga *domain.TicketPurchase) (*postgresSagaInstance, error) {
	outcomes, err := json.Marshal(saga.StepOutcomes)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal step outcomes")
	}
	reasons, err := json.Marshal(saga.FailureReasons)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal failure reasons")
	}

	return &postgresSagaInstance{
		CorrelationID:           saga.CorrelationID.String(),
		Row:                     saga.Row,
		Seat:                    saga.Seat,
		Amount:                  saga.Price.Amount,
		Currency:                saga.Price.Currency,
		Phase:                   string(saga.Phase),
		StepOutcomes:            outcomes,
		FailureReasons:          reasons,
		CompensationsDispatched: saga.CompensationsDispatched,
		CreatedAt:               saga.Timestamps.CreatedAt,
		UpdatedAt:               saga.Timestamps.UpdatedAt,
		Version:                 saga.Version.Value,
	}, nil
}

// toDomain converts a postgres model to a domain saga instance
func (r *PostgresSagaRepository) toDomain(pgSaga *postgresSagaInstance) (*domain.TicketPurchase, error) {
	correlationID, err := models.NewID(pgSaga.CorrelationID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid correlation ID")
	}

	var outcomes map[domain.StepID]domain.StepOutcome
	if err := json.Unmarshal(pgSaga.StepOutcomes, &outcomes); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal step outcomes")
	}

	var reasons map[domain.StepID]string
	if len(pgSaga.FailureReasons) > 0 {
		if err := json.Unmarshal(pgSaga.FailureReasons, &reasons); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal failure reasons")
		}
	}

	return &domain.TicketPurchase{
		CorrelationID:           correlationID,
		Row:                     pgSaga.Row,
		Seat:                    pgSaga.Seat,
		Price:                   models.NewMoney(pgSaga.Amount, pgSaga.Currency),
		Phase:                   domain.SagaPhase(pgSaga.Phase),
		StepOutcomes:            outcomes,
		FailureReasons:          reasons,
		CompensationsDispatched: pgSaga.CompensationsDispatched,
		Timestamps: models.Timestamps{
			CreatedAt: pgSaga.CreatedAt,
			UpdatedAt: pgSaga.UpdatedAt,
		},
		Version: models.Version{Value: pgSaga.Version},
	}, nil
}
