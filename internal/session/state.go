package session

import (
	"sync"
	"time"

	"github.com/talktivity/voicebridge/internal/quota"
	"github.com/talktivity/voicebridge/internal/transcript"
)

// State tracks one live session. The immutable identity fields are set at
// start; the transcript snapshot is replaced wholesale on every update from
// the session host.
type State struct {
	UserID   int64
	Kind     quota.Kind
	RoomName string

	// StartedAt is when the room connected. CallStartedAt, when non-zero,
	// is the earlier billing start for call sessions whose room existed
	// before the learner joined.
	StartedAt     time.Time
	CallStartedAt time.Time

	mu   sync.Mutex
	last *transcript.Transcript
}

func NewState(userID int64, kind quota.Kind, roomName string, startedAt time.Time) *State {
	return &State{
		UserID:    userID,
		Kind:      kind,
		RoomName:  roomName,
		StartedAt: startedAt,
	}
}

// ElapsedSeconds returns the billable seconds since the session began.
func (s *State) ElapsedSeconds(now time.Time) int64 {
	start := s.StartedAt
	if s.Kind == quota.KindCall && !s.CallStartedAt.IsZero() {
		start = s.CallStartedAt
	}
	elapsed := int64(now.Sub(start).Seconds())
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// SetTranscript replaces the current transcript snapshot.
func (s *State) SetTranscript(t *transcript.Transcript) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = t
}

// Transcript returns the latest snapshot, or nil if none arrived yet.
func (s *State) Transcript() *transcript.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
