// Package events publishes run lifecycle events to Kafka. Publishing is
// best-effort: a broker outage must never fail or delay a discovery run, so
// all errors are logged and absorbed here.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/deepscience/research-graph-service/internal/config"
	"github.com/deepscience/research-graph-service/internal/domain"
)

// Event types emitted on the run lifecycle topic.
const (
	EventRunStarted   = "run.started"
	EventRunCompleted = "run.completed"
	EventRunFailed    = "run.failed"
)

// RunEvent is the wire format for run lifecycle events. Messages are keyed by
// run ID so all events for one run land on the same partition.
type RunEvent struct {
	EventType  string           `json:"event_type"`
	RunID      uuid.UUID        `json:"run_id"`
	Query      string           `json:"query"`
	Status     domain.RunStatus `json:"status"`
	NodeCount  int              `json:"node_count,omitempty"`
	Error      string           `json:"error,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// messageWriter abstracts kafka.Writer for testing.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher emits run lifecycle events to a Kafka topic.
type KafkaPublisher struct {
	writer messageWriter
	logger zerolog.Logger
}

// NewKafkaPublisher creates a publisher writing to the configured topic.
func NewKafkaPublisher(cfg config.KafkaConfig, logger zerolog.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		WriteTimeout:           cfg.WriteTimeout,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}

	return &KafkaPublisher{
		writer: writer,
		logger: logger.With().Str("component", "event_publisher").Logger(),
	}
}

// RunStarted emits a run.started event.
func (p *KafkaPublisher) RunStarted(ctx context.Context, run *domain.Run) {
	p.publish(ctx, RunEvent{
		EventType:  EventRunStarted,
		RunID:      run.ID,
		Query:      run.Query,
		Status:     run.Status,
		OccurredAt: time.Now().UTC(),
	})
}

// RunCompleted emits a run.completed event including the final graph size.
func (p *KafkaPublisher) RunCompleted(ctx context.Context, run *domain.Run) {
	event := RunEvent{
		EventType:  EventRunCompleted,
		RunID:      run.ID,
		Query:      run.Query,
		Status:     run.Status,
		OccurredAt: time.Now().UTC(),
	}
	if run.GraphData != nil {
		event.NodeCount = len(run.GraphData.Nodes)
	}
	p.publish(ctx, event)
}

// RunFailed emits a run.failed event carrying the failure message.
func (p *KafkaPublisher) RunFailed(ctx context.Context, run *domain.Run) {
	p.publish(ctx, RunEvent{
		EventType:  EventRunFailed,
		RunID:      run.ID,
		Query:      run.Query,
		Status:     run.Status,
		Error:      run.Error,
		OccurredAt: time.Now().UTC(),
	})
}

// Close flushes pending messages and releases the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func (p *KafkaPublisher) publish(ctx context.Context, event RunEvent) {
	value, err := json.Marshal(event)
	if err != nil {
		p.logger.Error().Err(err).
			Str("event_type", event.EventType).
			Msg("failed to marshal run event")
		return
	}

	msg := kafka.Message{
		Key:   []byte(event.RunID.String()),
		Value: value,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error().Err(err).
			Str("event_type", event.EventType).
			Str("run_id", event.RunID.String()).
			Msg("failed to publish run event")
		return
	}

	p.logger.Debug().
		Str("event_type", event.EventType).
		Str("run_id", event.RunID.String()).
		Msg("published run event")
}
