package config

import (
	"context"
	"fmt"
	"log"

	"github.com/boxoffice/ticket-system/orchestrator/application"
	"github.com/boxoffice/ticket-system/orchestrator/domain"
	"github.com/boxoffice/ticket-system/orchestrator/handlers"
	"github.com/boxoffice/ticket-system/orchestrator/infrastructure"
	sharedinfra "github.com/boxoffice/ticket-system/shared/infrastructure"
	"github.com/boxoffice/ticket-system/shared/telemetry"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Dependencies struct {
	// Database
	DB *sqlx.DB

	// Repositories
	SagaRepository *infrastructure.PostgresSagaRepository
	EventStore     *sharedinfra.PostgresEventStore

	// Use Cases
	StartTicketPurchase *application.StartTicketPurchase
	ProcessStepResult   *application.ProcessStepResult
	GetTicketPurchase   *application.GetTicketPurchase
	GetPurchaseEvents   *application.GetPurchaseEvents
	ListEvents          *application.ListEvents

	// HTTP Handlers
	TicketPurchaseHandlers *handlers.TicketPurchaseHandlers

	// Event Handlers
	SagaEventHandlers *handlers.SagaEventHandlers

	// Infrastructure
	EventPublisher  *sharedinfra.SNSPublisherAdapter
	EventSubscriber *sharedinfra.SQSSubscriberAdapter

	// Telemetry
	Telemetry         *telemetry.Telemetry
	TelemetryShutdown func()
}

func BuildDependencies(ctx context.Context, config *Config) (*Dependencies, error) {
	deps := &Dependencies{}

	// Initialize telemetry first
	if config.Telemetry.Enabled {
		telConfig := telemetry.OrchestratorConfig.
			WithOTLPEndpoint(config.Telemetry.OTLPEndpoint).
			WithEnvironment(config.Env)
		tel, telemetryShutdown, err := telemetry.InitTelemetry(ctx, telConfig)
		if err != nil {
			log.Printf("Failed to initialize telemetry: %v", err)
			// Continue without telemetry rather than failing
		} else {
			deps.Telemetry = tel
			deps.TelemetryShutdown = telemetryShutdown
		}
	}

	// Initialize database
	db, err := sqlx.Connect("postgres", config.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	deps.DB = db

	// Initialize AWS infrastructure
	eventPublisher, err := sharedinfra.NewSNSPublisherAdapter(config.AWS.SNSTopicArn, config.AWS.EndpointSNS)
	if err != nil {
		return nil, fmt.Errorf("failed to create SNS publisher: %w", err)
	}
	deps.EventPublisher = eventPublisher

	eventSubscriber, err := sharedinfra.NewSQSSubscriberAdapter(config.AWS.SQSQueueURL, config.AWS.EndpointSQS)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQS subscriber: %w", err)
	}
	deps.EventSubscriber = eventSubscriber

	// Initialize repositories
	deps.SagaRepository = infrastructure.NewPostgresSagaRepository(db)
	deps.EventStore = sharedinfra.NewPostgresEventStore(db)

	retry := application.RetryConfig{
		MaxRetries:     config.Saga.MaxRetries,
		InitialBackoff: config.Saga.InitialBackoff(),
		BackoffFactor:  config.Saga.BackoffFactor,
	}

	// Initialize use cases
	deps.StartTicketPurchase = application.NewStartTicketPurchase(deps.SagaRepository, eventPublisher, deps.EventStore)
	deps.ProcessStepResult = application.NewProcessStepResult(
		deps.SagaRepository,
		eventPublisher,
		deps.EventStore,
		domain.DefaultCompensationTable(),
		retry,
	)
	deps.GetTicketPurchase = application.NewGetTicketPurchase(deps.SagaRepository)
	deps.GetPurchaseEvents = application.NewGetPurchaseEvents(deps.EventStore)
	deps.ListEvents = application.NewListEvents(deps.EventStore)

	// Initialize handlers
	deps.TicketPurchaseHandlers = handlers.NewTicketPurchaseHandlers(
		deps.StartTicketPurchase,
		deps.GetTicketPurchase,
		deps.GetPurchaseEvents,
		deps.ListEvents,
	)
	deps.SagaEventHandlers = handlers.NewSagaEventHandlers(deps.StartTicketPurchase, deps.ProcessStepResult)

	return deps, nil
}

// Close closes all dependencies
func (d *Dependencies) Close() error {
	var errs []error

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if d.EventPublisher != nil {
		if err := d.EventPublisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event publisher: %w", err))
		}
	}

	if d.EventSubscriber != nil {
		if err := d.EventSubscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event subscriber: %w", err))
		}
	}

	if d.TelemetryShutdown != nil {
		d.TelemetryShutdown()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing dependencies: %v", errs)
	}

	return nil
}
