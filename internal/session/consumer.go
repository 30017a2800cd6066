package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/talktivity/voicebridge/internal/metrics"
	inats "github.com/talktivity/voicebridge/internal/nats"
	"github.com/talktivity/voicebridge/internal/notify"
	"github.com/talktivity/voicebridge/internal/quota"
	"github.com/talktivity/voicebridge/internal/transcript"
)

const msgQuotaDenied = "Time limit reached for this session type. Please upgrade your plan for more time."

// Consumer drives the session lifecycle from host events: a start event
// passes the quota gate and spawns a runner, transcript updates feed the
// runner's snapshot, and a disconnect ends it.
type Consumer struct {
	consumerMgr *inats.ConsumerManager
	quota       *quota.Service
	registry    *Registry
	saver       *Saver
	notifier    *notify.Notifier
	validate    *validator.Validate

	checkInterval time.Duration
}

func NewConsumer(
	consumerMgr *inats.ConsumerManager,
	q *quota.Service,
	registry *Registry,
	saver *Saver,
	notifier *notify.Notifier,
	checkInterval time.Duration,
) *Consumer {
	return &Consumer{
		consumerMgr:   consumerMgr,
		quota:         q,
		registry:      registry,
		saver:         saver,
		notifier:      notifier,
		validate:      validator.New(),
		checkInterval: checkInterval,
	}
}

// Start begins the session event loop. Blocks until ctx is canceled.
func (c *Consumer) Start(ctx context.Context) error {
	consumer, err := c.consumerMgr.EnsureConsumer(ctx, inats.StreamSessions, "session-lifecycle", "voice.sessions.>")
	if err != nil {
		return err
	}

	slog.Info("session consumer started", "consumer", "session-lifecycle")

	for {
		msgs, err := consumer.Fetch(10, jetstream.FetchMaxWait(inats.FetchTimeout))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Debug("fetching session events", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			c.processEvent(ctx, msg)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) processEvent(ctx context.Context, msg jetstream.Msg) {
	switch msg.Subject() {
	case inats.SubjectSessionStarted:
		c.handleStarted(ctx, msg)
	case inats.SubjectTranscript:
		c.handleTranscript(msg)
	case inats.SubjectDisconnected:
		c.handleDisconnected(msg)
	default:
		slog.Warn("session: unknown event subject", "subject", msg.Subject())
		_ = msg.Ack()
	}
}

func (c *Consumer) handleStarted(ctx context.Context, msg jetstream.Msg) {
	var event inats.SessionStarted
	if !c.decode(msg, &event) {
		return
	}

	kind, ok := quota.ParseKind(event.Kind)
	if !ok {
		slog.Warn("session: unknown kind in start event", "user_id", event.UserID, "kind", event.Kind)
		_ = msg.Ack()
		return
	}

	if !c.quota.CheckCanStart(ctx, event.UserID, kind) {
		metrics.QuotaDenialsTotal.WithLabelValues(string(kind)).Inc()
		slog.Info("session: start denied by quota", "user_id", event.UserID, "kind", kind, "room", event.RoomName)
		c.notifier.SessionState(ctx, event.UserID, notify.StateSaveFailed, msgQuotaDenied)
		_ = msg.Ack()
		return
	}

	startedAt := event.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	state := NewState(event.UserID, kind, event.RoomName, startedAt)
	if event.CallStartedAt != nil {
		state.CallStartedAt = *event.CallStartedAt
	}

	runner := NewRunner(state, c.quota, c.saver, c.checkInterval)
	if !c.registry.Register(event.UserID, runner) {
		slog.Warn("session: user already has a live session, refusing start",
			"user_id", event.UserID, "room", event.RoomName)
		_ = msg.Ack()
		return
	}

	metrics.SessionsStartedTotal.WithLabelValues(string(kind)).Inc()
	slog.Info("session: started", "user_id", event.UserID, "kind", kind, "room", event.RoomName)

	go func() {
		defer c.registry.Unregister(event.UserID)
		runner.Run(ctx)
	}()

	_ = msg.Ack()
}

func (c *Consumer) handleTranscript(msg jetstream.Msg) {
	var event inats.TranscriptUpdate
	if !c.decode(msg, &event) {
		return
	}

	runner := c.registry.Get(event.UserID)
	if runner == nil {
		slog.Debug("session: transcript for unknown session", "user_id", event.UserID, "room", event.RoomName)
		_ = msg.Ack()
		return
	}

	t, err := transcript.Parse(event.Transcript)
	if err != nil {
		slog.Warn("session: unparseable transcript update", "user_id", event.UserID, "error", err)
		_ = msg.Ack()
		return
	}

	runner.UpdateTranscript(t)
	_ = msg.Ack()
}

func (c *Consumer) handleDisconnected(msg jetstream.Msg) {
	var event inats.ParticipantDisconnected
	if !c.decode(msg, &event) {
		return
	}

	if runner := c.registry.Get(event.UserID); runner != nil {
		runner.Disconnect()
	} else {
		slog.Debug("session: disconnect for unknown session", "user_id", event.UserID, "room", event.RoomName)
	}
	_ = msg.Ack()
}

// decode unmarshals and validates an event. Malformed events are acked and
// dropped; they would never become valid on redelivery.
func (c *Consumer) decode(msg jetstream.Msg, v any) bool {
	if err := json.Unmarshal(msg.Data(), v); err != nil {
		slog.Error("session: unmarshaling event", "subject", msg.Subject(), "error", err)
		_ = msg.Ack()
		return false
	}
	if err := c.validate.Struct(v); err != nil {
		slog.Warn("session: invalid event", "subject", msg.Subject(), "error", err)
		_ = msg.Ack()
		return false
	}
	return true
}
