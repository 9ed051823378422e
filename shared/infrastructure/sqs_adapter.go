package infrastructure

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/boxoffice/ticket-system/shared/events"
	"github.com/pkg/errors"
)

// SQSSubscriberAdapter adapts SQSEventSubscriber to the events.Subscriber interface
type SQSSubscriberAdapter struct {
	sqsSubscriber *SQSEventSubscriber
	isRunning     bool
	queueURL      string
	endpoint      string
}

// NewSQSSubscriberAdapter creates a new SQS subscriber adapter. An empty
// endpoint uses the default AWS resolution; a non-empty one points the client
// at LocalStack.
func NewSQSSubscriberAdapter(queueURL, endpoint string) (*SQSSubscriberAdapter, error) {
	return &SQSSubscriberAdapter{
		sqsSubscriber: nil, // created on Subscribe
		isRunning:     false,
		queueURL:      queueURL,
		endpoint:      endpoint,
	}, nil
}

// eventHandlerAdapter adapts events.EventHandler to the subscriber's
// EventHandler, passing the handler's own ID through when it has one
type eventHandlerAdapter struct {
	handler events.EventHandler
}

func (a *eventHandlerAdapter) HandlerID() string {
	if h, ok := a.handler.(interface{ HandlerID() string }); ok {
		return h.HandlerID()
	}
	return "event-handler"
}

func (a *eventHandlerAdapter) Handle(ctx context.Context, event *events.Event) error {
	return a.handler.Handle(ctx, event)
}

// Subscribe implements events.Subscriber interface. The orchestrator consumes
// a single queue fed by the shared topic, so eventType is ignored: routing by
// type happens in the handler.
func (s *SQSSubscriberAdapter) Subscribe(ctx context.Context, eventType string, handler events.EventHandler) error {
	if s.isRunning {
		return errors.New("subscriber is already running")
	}

	cfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		return errors.Wrap(err, "failed to load AWS config")
	}

	sqsClient := sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if s.endpoint != "" {
			o.BaseEndpoint = aws.String(s.endpoint)
		}
	})

	s.sqsSubscriber = NewSQSEventSubscriber(sqsClient, s.queueURL, &eventHandlerAdapter{handler: handler})

	if err := s.sqsSubscriber.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start SQS subscriber")
	}

	s.isRunning = true
	return nil
}

// Close stops the subscriber
func (s *SQSSubscriberAdapter) Close() error {
	if !s.isRunning || s.sqsSubscriber == nil {
		return nil
	}

	ctx := context.Background()
	if err := s.sqsSubscriber.Stop(ctx); err != nil {
		return errors.Wrap(err, "failed to stop SQS subscriber")
	}

	s.isRunning = false
	return nil
}
