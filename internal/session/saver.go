package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/talktivity/voicebridge/internal/notify"
	"github.com/talktivity/voicebridge/internal/progress"
	"github.com/talktivity/voicebridge/internal/quota"
	"github.com/talktivity/voicebridge/internal/transcript"
)

// Messages shown to the learner through the session-state channel.
const (
	msgEmptyTranscript = "No conversation content to save."
	msgSaveFailed      = "Failed to save conversation. Please try again later."
)

// UsageRecorder commits a finished session's duration to the quota ledger.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, rec quota.UsageRecord) error
}

// Saver runs the end-of-session persistence sequence: announce the save,
// hand the transcript to any waiting report request, write the conversation
// and usage rows, bump course progress, and announce the outcome.
type Saver struct {
	conversations transcript.Repository
	usage         UsageRecorder
	progress      *progress.Service
	handoff       *transcript.Store
	notifier      *notify.Notifier
	now           func() time.Time
}

func NewSaver(
	conversations transcript.Repository,
	usage UsageRecorder,
	prog *progress.Service,
	handoff *transcript.Store,
	notifier *notify.Notifier,
) *Saver {
	return &Saver{
		conversations: conversations,
		usage:         usage,
		progress:      prog,
		handoff:       handoff,
		notifier:      notifier,
		now:           time.Now,
	}
}

// Save persists one finished session. Callers guarantee it runs at most once
// per session and pass a context that survives the session's own cancellation.
func (s *Saver) Save(ctx context.Context, st *State, reason string) {
	s.notifier.SessionState(ctx, st.UserID, notify.StateSaving, "")

	snapshot := st.Transcript()
	durationSeconds := st.ElapsedSeconds(s.now())

	// The handoff happens before persistence so a report request blocked on
	// Await is released even if the database write below fails.
	if !snapshot.Empty() {
		s.handoff.Publish(st.UserID, snapshot)
	}

	if err := s.recordUsage(ctx, st, durationSeconds); err != nil {
		slog.Error("session: recording usage", "user_id", st.UserID, "kind", st.Kind, "error", err)
		s.notifier.SessionState(ctx, st.UserID, notify.StateSaveFailed, msgSaveFailed)
		return
	}

	if snapshot.Empty() {
		slog.Info("session: nothing to save", "user_id", st.UserID, "room", st.RoomName, "reason", reason)
		s.notifier.SessionState(ctx, st.UserID, notify.StateSaveFailed, msgEmptyTranscript)
		return
	}

	conv := &transcript.Conversation{
		UserID:          st.UserID,
		RoomName:        st.RoomName,
		SessionKind:     string(st.Kind),
		Transcript:      snapshot,
		DurationSeconds: durationSeconds,
	}
	if err := s.conversations.SaveConversation(ctx, conv); err != nil {
		slog.Error("session: saving conversation", "user_id", st.UserID, "room", st.RoomName, "error", err)
		s.notifier.SessionState(ctx, st.UserID, notify.StateSaveFailed, msgSaveFailed)
		return
	}

	// Course progress counts subscription speaking time only, and a failed
	// bump never fails the save.
	if st.Kind != quota.KindCall {
		if err := s.progress.RecordSpeaking(ctx, st.UserID, durationSeconds); err != nil {
			slog.Warn("session: updating course progress", "user_id", st.UserID, "error", err)
		}
	}

	slog.Info("session: conversation saved",
		"user_id", st.UserID,
		"room", st.RoomName,
		"kind", st.Kind,
		"duration_seconds", durationSeconds,
		"reason", reason,
	)
	s.notifier.SessionState(ctx, st.UserID, notify.StateSaved, "")
}

func (s *Saver) recordUsage(ctx context.Context, st *State, durationSeconds int64) error {
	if durationSeconds <= 0 {
		return nil
	}
	return s.usage.RecordUsage(ctx, quota.UsageRecord{
		UserID:          st.UserID,
		Kind:            st.Kind,
		DurationSeconds: durationSeconds,
		Day:             s.now().UTC(),
	})
}
