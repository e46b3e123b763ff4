// Package eventbus publishes the consumer and producer observable surface
// (state transitions, rebuffering, thread switches, new meta, verification
// outcomes) over Redis pub/sub so external dashboards and other processes
// can observe a running session without polling it.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventType names one kind of observable surface event.
type EventType string

const (
	EventStateUpdate        EventType = "state.update"
	EventRebuffering        EventType = "rebuffering"
	EventThreadSwitched     EventType = "thread.switched"
	EventNewMeta            EventType = "meta.new"
	EventVerificationResult EventType = "verification.result"
)

// Event is one envelope published on the bus.
type Event struct {
	Type      EventType       `json:"type"`
	SessionID string          `json:"session_id"`
	Timestamp time.Time       `json:"timestamp"`
	Stream    string          `json:"stream,omitempty"`
	Thread    string          `json:"thread,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Bus publishes and subscribes to session events over a single Redis
// pub/sub channel.
type Bus struct {
	client    *redis.Client
	sessionID string
	logger    *zap.SugaredLogger
	channel   string
	pubsub    *redis.PubSub
}

// New creates a Bus bound to client, publishing under sessionID (a fresh
// google/uuid value when the caller has none of its own) on channel.
func New(client *redis.Client, sessionID, channel string, logger *zap.Logger) *Bus {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{client: client, sessionID: sessionID, logger: logger.Sugar(), channel: channel}
}

// SessionID returns the identifier this bus stamps on every event it
// publishes.
func (b *Bus) SessionID() string {
	return b.sessionID
}

// Publish marshals payload and publishes an envelope of the given type.
func (b *Bus) Publish(ctx context.Context, evType EventType, stream, thread string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}
	event := Event{
		Type:      evType,
		SessionID: b.sessionID,
		Timestamp: time.Now(),
		Stream:    stream,
		Thread:    thread,
		Payload:   data,
	}
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, raw).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	b.logger.Debugw("published event", "type", evType, "stream", stream, "thread", thread)
	return nil
}

// StateUpdatePayload is published whenever the consumer state machine
// transitions.
type StateUpdatePayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// PublishStateUpdate reports a consumer state-machine transition.
func (b *Bus) PublishStateUpdate(ctx context.Context, thread, from, to string) error {
	return b.Publish(ctx, EventStateUpdate, "", thread, StateUpdatePayload{From: from, To: to})
}

// PublishRebuffering reports the playout queue falling back below its
// watermark after having reached it once.
func (b *Bus) PublishRebuffering(ctx context.Context, thread string) error {
	return b.Publish(ctx, EventRebuffering, "", thread, struct{}{})
}

// ThreadSwitchedPayload is published when the consumer switches which
// producer thread it is fetching from.
type ThreadSwitchedPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// PublishThreadSwitched reports a thread (bitrate ladder rung) switch.
func (b *Bus) PublishThreadSwitched(ctx context.Context, stream, from, to string) error {
	return b.Publish(ctx, EventThreadSwitched, stream, to, ThreadSwitchedPayload{From: from, To: to})
}

// NewMetaPayload mirrors a thread's republished meta on a dimension
// change.
type NewMetaPayload struct {
	Version uint64  `json:"version"`
	Codec   string  `json:"codec"`
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	FpsHz   float64 `json:"fps_hz"`
}

// PublishNewMeta reports a producer thread's meta republish.
func (b *Bus) PublishNewMeta(ctx context.Context, stream, thread string, p NewMetaPayload) error {
	return b.Publish(ctx, EventNewMeta, stream, thread, p)
}

// VerificationResultPayload mirrors validator.State for a single sample.
type VerificationResultPayload struct {
	SamplePrefix string `json:"sample_prefix"`
	State        string `json:"state"`
	FailReason   string `json:"fail_reason,omitempty"`
}

// PublishVerificationResult reports a sample's verification outcome.
// Matches consumer.EventPublisher so *Bus can be passed directly to
// consumer.New.
func (b *Bus) PublishVerificationResult(ctx context.Context, thread, samplePrefix, state, failReason string) error {
	return b.Publish(ctx, EventVerificationResult, "", thread, VerificationResultPayload{
		SamplePrefix: samplePrefix,
		State:        state,
		FailReason:   failReason,
	})
}

// Subscribe consumes events from the channel until ctx is cancelled,
// calling handler for each event originating from a different session.
func (b *Bus) Subscribe(ctx context.Context, handler func(Event)) error {
	if b.pubsub != nil {
		return fmt.Errorf("already subscribed")
	}
	b.pubsub = b.client.Subscribe(ctx, b.channel)
	defer func() {
		b.pubsub.Close()
		b.pubsub = nil
	}()

	ch := b.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-ch:
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warnw("failed to unmarshal event", "error", err)
				continue
			}
			if event.SessionID == b.sessionID {
				continue
			}
			handler(event)
		}
	}
}

// Close releases the subscription, if any.
func (b *Bus) Close() error {
	if b.pubsub != nil {
		return b.pubsub.Close()
	}
	return nil
}
