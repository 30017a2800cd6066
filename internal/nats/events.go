package nats

import (
	"encoding/json"
	"time"
)

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// Stream names.
const (
	StreamSessions = "VOICE_SESSIONS"
)

// Subject constants.
const (
	SubjectSessionStarted = "voice.sessions.started"
	SubjectTranscript     = "voice.sessions.transcript"
	SubjectDisconnected   = "voice.sessions.disconnected"
)

// SessionStarted is published by a session host when a room connects.
// CallStartedAt carries the billing start for call sessions where the room
// was created ahead of the participant joining; when set it overrides
// StartedAt for elapsed-time accounting.
type SessionStarted struct {
	UserID        int64      `json:"user_id" validate:"required,gt=0"`
	Kind          string     `json:"kind" validate:"required"`
	RoomName      string     `json:"room_name" validate:"required"`
	StartedAt     time.Time  `json:"started_at"`
	CallStartedAt *time.Time `json:"call_started_at,omitempty"`
}

// TranscriptUpdate carries the latest full transcript snapshot for a live
// session. Hosts send the whole transcript each time, not a delta.
type TranscriptUpdate struct {
	UserID     int64           `json:"user_id" validate:"required,gt=0"`
	RoomName   string          `json:"room_name" validate:"required"`
	Transcript json.RawMessage `json:"transcript" validate:"required"`
	CapturedAt time.Time       `json:"captured_at"`
}

// ParticipantDisconnected is published when the learner leaves the room.
type ParticipantDisconnected struct {
	UserID   int64     `json:"user_id" validate:"required,gt=0"`
	RoomName string    `json:"room_name" validate:"required"`
	LeftAt   time.Time `json:"left_at"`
}
