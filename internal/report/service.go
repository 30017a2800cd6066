package report

import (
	"context"
	"log/slog"
	"time"

	"github.com/talktivity/voicebridge/internal/api"
	"github.com/talktivity/voicebridge/internal/transcript"
)

const recentLookback = 5

// Service turns a finished conversation into a speaking report. Generation
// pulls the transcript from the in-process handoff store, waiting out the
// gap between the client requesting a report and the session save landing.
type Service struct {
	handoff       *transcript.Store
	conversations transcript.Repository
	reports       Repository
	waitTimeout   time.Duration
}

func NewService(handoff *transcript.Store, conversations transcript.Repository, reports Repository, waitTimeout time.Duration) *Service {
	return &Service{
		handoff:       handoff,
		conversations: conversations,
		reports:       reports,
		waitTimeout:   waitTimeout,
	}
}

// Generate produces and persists a report for the user's latest session.
// With no transcript available inside the wait window it returns
// api.ErrNoTranscript.
func (s *Service) Generate(ctx context.Context, userID int64) (*Report, error) {
	t := s.handoff.Await(ctx, userID, s.waitTimeout)
	if t == nil || t.Empty() {
		slog.Info("report: no transcript available", "user_id", userID)
		return nil, api.ErrNoTranscript
	}

	rep := Analyze(userID, t)

	// Recent history feeds the trend figure; losing it degrades the
	// report, it does not fail it.
	if recent, err := s.conversations.RecentConversations(ctx, userID, recentLookback); err != nil {
		slog.Warn("report: loading recent conversations", "user_id", userID, "error", err)
	} else {
		rep.RecentSessions = len(recent)
	}

	if err := s.reports.SaveReport(ctx, rep); err != nil {
		return nil, err
	}

	// The transcript is consumed; the next report needs a new session.
	s.handoff.Remove(userID)

	slog.Info("report: generated",
		"user_id", userID,
		"turn_count", rep.TurnCount,
		"word_count", rep.WordCount,
	)
	return rep, nil
}

// Latest returns the user's most recent stored report, or api.ErrNotFound.
func (s *Service) Latest(ctx context.Context, userID int64) (*Report, error) {
	rep, err := s.reports.LatestReport(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rep == nil {
		return nil, api.ErrNotFound
	}
	return rep, nil
}
