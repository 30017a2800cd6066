package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// Publisher provides typed methods for publishing session events to NATS JetStream.
type Publisher struct {
	js jetstream.JetStream
}

// NewPublisher creates a new Publisher.
func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// PublishSessionStarted announces a newly connected session room.
func (p *Publisher) PublishSessionStarted(ctx context.Context, event SessionStarted) error {
	return p.publish(ctx, SubjectSessionStarted, event)
}

// PublishTranscriptUpdate publishes a full transcript snapshot for a live session.
func (p *Publisher) PublishTranscriptUpdate(ctx context.Context, event TranscriptUpdate) error {
	return p.publish(ctx, SubjectTranscript, event)
}

// PublishParticipantDisconnected announces that the learner left the room.
func (p *Publisher) PublishParticipantDisconnected(ctx context.Context, event ParticipantDisconnected) error {
	return p.publish(ctx, SubjectDisconnected, event)
}

func (p *Publisher) publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling event for %s: %w", subject, err)
	}
	_, err = p.js.Publish(ctx, subject, payload)
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}
