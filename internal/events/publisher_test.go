package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepscience/research-graph-service/internal/domain"
)

// fakeWriter records written messages and optionally fails.
type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func newTestPublisher(writer messageWriter) *KafkaPublisher {
	return &KafkaPublisher{
		writer: writer,
		logger: zerolog.Nop(),
	}
}

func decodeEvent(t *testing.T, msg kafka.Message) RunEvent {
	t.Helper()
	var event RunEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	return event
}

func TestKafkaPublisher_RunStarted(t *testing.T) {
	writer := &fakeWriter{}
	pub := newTestPublisher(writer)

	run := domain.NewRun("robotics at ETH Zurich", nil, 15)
	run.Status = domain.RunStatusRunning

	pub.RunStarted(context.Background(), run)

	require.Len(t, writer.messages, 1)
	event := decodeEvent(t, writer.messages[0])
	assert.Equal(t, EventRunStarted, event.EventType)
	assert.Equal(t, run.ID, event.RunID)
	assert.Equal(t, run.Query, event.Query)
	assert.Equal(t, domain.RunStatusRunning, event.Status)
	assert.False(t, event.OccurredAt.IsZero())

	// Messages are keyed by run ID for per-run ordering.
	assert.Equal(t, []byte(run.ID.String()), writer.messages[0].Key)
}

func TestKafkaPublisher_RunCompleted(t *testing.T) {
	writer := &fakeWriter{}
	pub := newTestPublisher(writer)

	run := domain.NewRun("robotics", nil, 15)
	run.Status = domain.RunStatusCompleted
	graph := domain.NewGraph()
	graph.AddNode(&domain.Node{ID: domain.UserNodeID, Type: domain.NodeTypeUser, Label: "You"})
	graph.AddNode(&domain.Node{ID: "inst:eth-zurich", Type: domain.NodeTypeInstitution, Label: "ETH Zurich"})
	run.GraphData = graph

	pub.RunCompleted(context.Background(), run)

	require.Len(t, writer.messages, 1)
	event := decodeEvent(t, writer.messages[0])
	assert.Equal(t, EventRunCompleted, event.EventType)
	assert.Equal(t, 2, event.NodeCount)
	assert.Empty(t, event.Error)
}

func TestKafkaPublisher_RunCompleted_NoGraph(t *testing.T) {
	writer := &fakeWriter{}
	pub := newTestPublisher(writer)

	run := domain.NewRun("robotics", nil, 15)
	run.Status = domain.RunStatusCompleted

	pub.RunCompleted(context.Background(), run)

	require.Len(t, writer.messages, 1)
	event := decodeEvent(t, writer.messages[0])
	assert.Equal(t, 0, event.NodeCount)
}

func TestKafkaPublisher_RunFailed(t *testing.T) {
	writer := &fakeWriter{}
	pub := newTestPublisher(writer)

	run := domain.NewRun("robotics", nil, 15)
	run.Status = domain.RunStatusFailed
	run.Error = "filters: service unavailable"

	pub.RunFailed(context.Background(), run)

	require.Len(t, writer.messages, 1)
	event := decodeEvent(t, writer.messages[0])
	assert.Equal(t, EventRunFailed, event.EventType)
	assert.Equal(t, domain.RunStatusFailed, event.Status)
	assert.Equal(t, "filters: service unavailable", event.Error)
}

func TestKafkaPublisher_WriteErrorIsAbsorbed(t *testing.T) {
	writer := &fakeWriter{err: errors.New("broker unreachable")}
	pub := newTestPublisher(writer)

	run := domain.NewRun("robotics", nil, 15)

	// Must not panic or surface the error.
	pub.RunStarted(context.Background(), run)
	pub.RunCompleted(context.Background(), run)
	pub.RunFailed(context.Background(), run)

	assert.Empty(t, writer.messages)
}

func TestKafkaPublisher_Close(t *testing.T) {
	writer := &fakeWriter{}
	pub := newTestPublisher(writer)

	require.NoError(t, pub.Close())
	assert.True(t, writer.closed)
}
