package application

import (
	"context"
	"sync"
	"testing"

	"github.com/boxoffice/ticket-system/orchestrator/domain"
	"github.com/boxoffice/ticket-system/orchestrator/mocks"
	"github.com/boxoffice/ticket-system/shared/events"
	"github.com/boxoffice/ticket-system/shared/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestStartTicketPurchase_Execute(t *testing.T) {
	validCorrelationID := models.ID("550e8400-e29b-41d4-a716-446655440001")

	validCommand := &StartTicketPurchaseCommand{
		Row:   5,
		Seat:  12,
		Price: models.NewMoney(4500, "USD"),
	}

	tests := []struct {
		name          string
		command       *StartTicketPurchaseCommand
		setupMocks    func(*mocks.MockSagaRepository, *mocks.MockPublisher, *mocks.MockEventStore)
		expectedError string
		expectedPhase domain.SagaPhase
	}{
		{
			name:    "successful start dispatches all three commands",
			command: validCommand,
			setupMocks: func(repo *mocks.MockSagaRepository, publisher *mocks.MockPublisher, store *mocks.MockEventStore) {
				repo.EXPECT().Create(mock.Anything, mock.Anything).Return(nil).Once()
				store.EXPECT().SaveEvents(mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
				// One started event plus one dispatch per step.
				publisher.EXPECT().Publish(mock.Anything, mock.Anything).Return(nil).Times(4)
			},
			expectedPhase: domain.SagaPhaseAwaitingResults,
		},
		{
			name: "missing row",
			command: &StartTicketPurchaseCommand{
				Seat:  12,
				Price: models.NewMoney(4500, "USD"),
			},
			setupMocks:    func(*mocks.MockSagaRepository, *mocks.MockPublisher, *mocks.MockEventStore) {},
			expectedError: "row is required",
		},
		{
			name: "missing seat",
			command: &StartTicketPurchaseCommand{
				Row:   5,
				Price: models.NewMoney(4500, "USD"),
			},
			setupMocks:    func(*mocks.MockSagaRepository, *mocks.MockPublisher, *mocks.MockEventStore) {},
			expectedError: "seat is required",
		},
		{
			name: "non positive price",
			command: &StartTicketPurchaseCommand{
				Row:   5,
				Seat:  12,
				Price: models.NewMoney(0, "USD"),
			},
			setupMocks:    func(*mocks.MockSagaRepository, *mocks.MockPublisher, *mocks.MockEventStore) {},
			expectedError: "price must be positive",
		},
		{
			name: "missing currency",
			command: &StartTicketPurchaseCommand{
				Row:   5,
				Seat:  12,
				Price: models.Money{Amount: 4500},
			},
			setupMocks:    func(*mocks.MockSagaRepository, *mocks.MockPublisher, *mocks.MockEventStore) {},
			expectedError: "currency is required",
		},
		{
			name:    "repository error",
			command: validCommand,
			setupMocks: func(repo *mocks.MockSagaRepository, publisher *mocks.MockPublisher, store *mocks.MockEventStore) {
				repo.EXPECT().Create(mock.Anything, mock.Anything).Return(errors.New("database down")).Once()
			},
			expectedError: "failed to create saga instance",
		},
		{
			name: "duplicate trigger returns existing instance without re-dispatch",
			command: &StartTicketPurchaseCommand{
				CorrelationID: validCorrelationID,
				Row:           5,
				Seat:          12,
				Price:         models.NewMoney(4500, "USD"),
			},
			setupMocks: func(repo *mocks.MockSagaRepository, publisher *mocks.MockPublisher, store *mocks.MockEventStore) {
				repo.EXPECT().Create(mock.Anything, mock.Anything).
					Return(errors.Wrap(domain.ErrDuplicateInstance, "duplicate")).Once()

				existing, err := domain.StartTicketPurchase(validCorrelationID, 5, 12, models.NewMoney(4500, "USD"), domain.TicketPurchaseSteps())
				require.NoError(t, err)
				repo.EXPECT().FindByCorrelationID(mock.Anything, validCorrelationID).
					Return(existing, nil).Once()
				// No SaveEvents, no Publish: the commands went out on the first
				// delivery.
			},
			expectedPhase: domain.SagaPhaseAwaitingResults,
		},
		{
			name:    "command dispatch failure is surfaced",
			command: validCommand,
			setupMocks: func(repo *mocks.MockSagaRepository, publisher *mocks.MockPublisher, store *mocks.MockEventStore) {
				repo.EXPECT().Create(mock.Anything, mock.Anything).Return(nil).Once()
				store.EXPECT().SaveEvents(mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
				// The started event goes out, then every command dispatch fails.
				publisher.EXPECT().Publish(mock.Anything, mock.Anything).Return(nil).Once()
				publisher.EXPECT().Publish(mock.Anything, mock.Anything).
					Return(errors.Wrap(events.ErrDispatchFailed, "sns unavailable")).Times(3)
			},
			expectedError: "dispatch failed",
		},
		{
			name:    "lifecycle publish failure aborts before the fan-out",
			command: validCommand,
			setupMocks: func(repo *mocks.MockSagaRepository, publisher *mocks.MockPublisher, store *mocks.MockEventStore) {
				repo.EXPECT().Create(mock.Anything, mock.Anything).Return(nil).Once()
				store.EXPECT().SaveEvents(mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
				// Only the started-event publish happens; no commands follow it.
				publisher.EXPECT().Publish(mock.Anything, mock.Anything).
					Return(errors.Wrap(events.ErrDispatchFailed, "sns unavailable")).Once()
			},
			expectedError: "failed to publish saga started event",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := mocks.NewMockSagaRepository(t)
			mockPublisher := mocks.NewMockPublisher(t)
			mockStore := mocks.NewMockEventStore(t)
			tt.setupMocks(mockRepo, mockPublisher, mockStore)

			useCase := NewStartTicketPurchase(mockRepo, mockPublisher, mockStore)

			response, err := useCase.Execute(context.Background(), tt.command)

			if tt.expectedError != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				assert.Nil(t, response)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, response)
			assert.NotEmpty(t, response.CorrelationID)
		})
	}
}

func TestStartTicketPurchase_CommandFanOut(t *testing.T) {
	mockRepo := mocks.NewMockSagaRepository(t)
	mockPublisher := mocks.NewMockPublisher(t)
	mockStore := mocks.NewMockEventStore(t)

	var created *domain.TicketPurchase
	mockRepo.EXPECT().Create(mock.Anything, mock.Anything).
		Run(func(ctx context.Context, saga *domain.TicketPurchase) {
			created = saga
		}).Return(nil).Once()
	mockStore.EXPECT().SaveEvents(mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	var mu sync.Mutex
	var publishedTypes []string
	mockPublisher.EXPECT().Publish(mock.Anything, mock.Anything).
		Run(func(ctx context.Context, evts ...*events.Event) {
			mu.Lock()
			defer mu.Unlock()
			for _, event := range evts {
				publishedTypes = append(publishedTypes, event.EventType)
			}
		}).Return(nil).Times(4)

	useCase := NewStartTicketPurchase(mockRepo, mockPublisher, mockStore)

	response, err := useCase.Execute(context.Background(), &StartTicketPurchaseCommand{
		Row:   3,
		Seat:  7,
		Price: models.NewMoney(2000, "EUR"),
	})
	require.NoError(t, err)
	require.NotNil(t, created)

	// The slot set must match the dispatched command set exactly.
	assert.Len(t, created.StepOutcomes, 3)
	assert.Equal(t, created.CorrelationID, response.CorrelationID)

	assert.ElementsMatch(t, []string{
		events.TicketPurchaseStartedEvent,
		events.SeatBookingRequestedEvent,
		events.PaymentChargeRequestedEvent,
		events.TicketDocumentRequestedEvent,
	}, publishedTypes)
}
