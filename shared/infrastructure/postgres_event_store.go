package infrastructure

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/boxoffice/ticket-system/shared/events"
	"github.com/boxoffice/ticket-system/shared/models"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// PostgresEventStore persists the saga audit stream in the saga_events table.
// The stream is a log, not the source of truth: the saga row carries the
// concurrency control, so appends take the next stream position without a
// compare step.
type PostgresEventStore struct {
	db *sqlx.DB
}

// NewPostgresEventStore creates a new PostgresEventStore
func NewPostgresEventStore(db *sqlx.DB) *PostgresEventStore {
	return &PostgresEventStore{db: db}
}

type sagaEventRow struct {
	ID            string    `db:"id"`
	AggregateID   string    `db:"aggregate_id"`
	EventType     string    `db:"event_type"`
	Version       string    `db:"version"`
	Data          []byte    `db:"data"`
	Metadata      []byte    `db:"metadata"`
	Timestamp     time.Time `db:"timestamp"`
	CorrelationID string    `db:"correlation_id"`
	StreamPos     int       `db:"stream_pos"`
}

const insertEventQuery = `
	INSERT INTO saga_events (
		id, aggregate_id, event_type, version, data, metadata,
		timestamp, correlation_id, stream_pos
	) VALUES (
		:id, :aggregate_id, :event_type, :version, :data, :metadata,
		:timestamp, :correlation_id, :stream_pos
	)`

const selectEventColumns = `
	SELECT id, aggregate_id, event_type, version, data, metadata,
		   timestamp, correlation_id, stream_pos
	FROM saga_events`

// SaveEvents appends events to the aggregate's audit stream
func (es *PostgresEventStore) SaveEvents(ctx context.Context, aggregateID models.ID, evts []*events.Event) error {
	if len(evts) == 0 {
		return nil
	}

	tx, err := es.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var lastPos int
	err = tx.GetContext(ctx, &lastPos,
		"SELECT COALESCE(MAX(stream_pos), 0) FROM saga_events WHERE aggregate_id = $1",
		aggregateID.String())
	if err != nil && err != sql.ErrNoRows {
		return errors.Wrap(err, "failed to read stream position")
	}

	rows := make([]*sagaEventRow, 0, len(evts))
	for i, event := range evts {
		row, err := es.toRow(event, lastPos+i+1)
		if err != nil {
			return errors.Wrap(err, "failed to convert event")
		}
		rows = append(rows, row)
	}

	if _, err := tx.NamedExecContext(ctx, insertEventQuery, rows); err != nil {
		return errors.Wrap(err, "failed to insert events")
	}

	return tx.Commit()
}

// GetEvents retrieves the full stream for an aggregate, in append order
func (es *PostgresEventStore) GetEvents(ctx context.Context, aggregateID models.ID) ([]*events.Event, error) {
	var rows []sagaEventRow
	err := es.db.SelectContext(ctx, &rows,
		selectEventColumns+" WHERE aggregate_id = $1 ORDER BY stream_pos ASC",
		aggregateID.String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to get events")
	}

	return es.toDomainAll(rows)
}

// GetEventsByType retrieves events by type with pagination
func (es *PostgresEventStore) GetEventsByType(ctx context.Context, eventType string, offset, limit int) ([]*events.Event, error) {
	var rows []sagaEventRow
	err := es.db.SelectContext(ctx, &rows,
		selectEventColumns+" WHERE event_type = $1 ORDER BY timestamp ASC LIMIT $2 OFFSET $3",
		eventType, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get events by type")
	}

	return es.toDomainAll(rows)
}

func (es *PostgresEventStore) toRow(event *events.Event, streamPos int) (*sagaEventRow, error) {
	data, err := event.MarshalPayload()
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal event data")
	}

	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal event metadata")
	}

	return &sagaEventRow{
		ID:            event.ID.String(),
		AggregateID:   event.AggregateID.String(),
		EventType:     event.EventType,
		Version:       event.Version,
		Data:          data,
		Metadata:      metadata,
		Timestamp:     event.Timestamp,
		CorrelationID: event.CorrelationID.String(),
		StreamPos:     streamPos,
	}, nil
}

func (es *PostgresEventStore) toDomainAll(rows []sagaEventRow) ([]*events.Event, error) {
	result := make([]*events.Event, len(rows))
	for i := range rows {
		event, err := es.toDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		result[i] = event
	}
	return result, nil
}

func (es *PostgresEventStore) toDomain(row *sagaEventRow) (*events.Event, error) {
	id, err := models.NewID(row.ID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid event ID")
	}

	aggregateID, err := models.NewID(row.AggregateID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid aggregate ID")
	}

	metadata := make(events.Metadata)
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &metadata); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal event metadata")
		}
	}

	var correlationID models.ID
	if row.CorrelationID != "" {
		correlationID, err = models.NewID(row.CorrelationID)
		if err != nil {
			return nil, errors.Wrap(err, "invalid correlation ID")
		}
	}

	topic, _ := events.NewTopic(row.EventType)

	return &events.Event{
		ID:            id,
		AggregateID:   aggregateID,
		Topic:         topic,
		EventType:     row.EventType,
		Version:       row.Version,
		Data:          json.RawMessage(row.Data),
		Metadata:      metadata,
		Timestamp:     row.Timestamp,
		CorrelationID: correlationID,
	}, nil
}
