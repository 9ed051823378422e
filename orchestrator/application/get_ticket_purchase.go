package application

import (
	"context"
	"time"

	"github.com/boxoffice/ticket-system/orchestrator/domain"
	"github.com/boxoffice/ticket-system/shared/models"
	"github.com/pkg/errors"
)

// GetTicketPurchaseQuery represents the query to inspect a saga instance
type GetTicketPurchaseQuery struct {
	CorrelationID string `json:"correlation_id"`
}

// GetTicketPurchaseResponse is the operator-facing view of an instance. A
// stuck purchase shows up as awaiting_results with one or more pending slots.
type GetTicketPurchaseResponse struct {
	CorrelationID  models.ID                            `json:"correlation_id"`
	Row            int                                  `json:"row"`
	Seat           int                                  `json:"seat"`
	Price          models.Money                         `json:"price"`
	Phase          domain.SagaPhase                     `json:"phase"`
	StepOutcomes   map[domain.StepID]domain.StepOutcome `json:"step_outcomes"`
	FailureReasons map[domain.StepID]string             `json:"failure_reasons,omitempty"`
	CreatedAt      time.Time                            `json:"created_at"`
	UpdatedAt      time.Time                            `json:"updated_at"`
}

// GetTicketPurchase use case retrieves a saga instance for inspection
type GetTicketPurchase struct {
	sagaRepository domain.SagaRepository
}

// NewGetTicketPurchase creates a new GetTicketPurchase use case
func NewGetTicketPurchase(sagaRepository domain.SagaRepository) *GetTicketPurchase {
	return &GetTicketPurchase{sagaRepository: sagaRepository}
}

// Execute retrieves the saga instance by correlation ID
func (uc *GetTicketPurchase) Execute(ctx context.Context, query *GetTicketPurchaseQuery) (*GetTicketPurchaseResponse, error) {
	if query.CorrelationID == "" {
		return nil, errors.New("correlation ID is required")
	}

	correlationID, err := models.NewID(query.CorrelationID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid correlation ID")
	}

	saga, err := uc.sagaRepository.FindByCorrelationID(ctx, correlationID)
	if err != nil {
		return nil, err
	}

	outcomes := make(map[domain.StepID]domain.StepOutcome, len(saga.StepOutcomes))
	for step, outcome := range saga.StepOutcomes {
		outcomes[step] = outcome
	}

	var reasons map[domain.StepID]string
	if len(saga.FailureReasons) > 0 {
		reasons = make(map[domain.StepID]string, len(saga.FailureReasons))
		for step, reason := range saga.FailureReasons {
			reasons[step] = reason
		}
	}

	return &GetTicketPurchaseResponse{
		CorrelationID:  saga.CorrelationID,
		Row:            saga.Row,
		Seat:           saga.Seat,
		Price:          saga.Price,
		Phase:          saga.Phase,
		StepOutcomes:   outcomes,
		FailureReasons: reasons,
		CreatedAt:      saga.Timestamps.CreatedAt,
		UpdatedAt:      saga.Timestamps.UpdatedAt,
	}, nil
}
