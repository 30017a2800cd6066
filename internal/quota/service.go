package quota

import (
	"context"
	"log/slog"
	"time"

	"github.com/talktivity/voicebridge/internal/config"
)

// Service answers the two quota questions: may a session of this kind start
// now, and how many seconds remain while one is running. Store errors never
// propagate; a broken database denies starts and reports zero remaining, so
// nobody runs unmetered and nobody's call crashes mid-flight.
type Service struct {
	store  Store
	limits config.LimitsConfig
	now    func() time.Time
}

// NewService creates a new quota Service.
func NewService(store Store, limits config.LimitsConfig) *Service {
	return &Service{store: store, limits: limits, now: time.Now}
}

// CheckCanStart reports whether the user may begin a session of the given
// kind. Call sessions are metered against the lifetime cap and need no
// subscription; practice and roleplay need an active subscription and are
// metered against the plan's daily cap.
func (s *Service) CheckCanStart(ctx context.Context, userID int64, kind Kind) bool {
	return s.Remaining(ctx, userID, kind, 0) > 0
}

// Remaining returns max(0, cap − (used + elapsedSeconds)) for the user and
// kind. elapsedSeconds is the in-progress session's uncommitted time; pass 0
// for a pre-start check.
func (s *Service) Remaining(ctx context.Context, userID int64, kind Kind, elapsedSeconds int64) int64 {
	if elapsedSeconds < 0 {
		elapsedSeconds = 0
	}

	switch kind {
	case KindCall:
		used, err := s.store.LifetimeCallSeconds(ctx, userID)
		if err != nil {
			slog.Warn("quota: lifetime usage lookup failed, treating as exhausted", "user_id", userID, "error", err)
			return 0
		}
		return clamp(s.limits.CallLifetimeSeconds - (used + elapsedSeconds))

	case KindPractice, KindRoleplay:
		sub, err := s.store.ActiveSubscription(ctx, userID)
		if err != nil {
			slog.Warn("quota: subscription lookup failed, treating as exhausted", "user_id", userID, "error", err)
			return 0
		}
		if sub == nil {
			slog.Info("quota: no active subscription", "user_id", userID, "kind", kind)
			return 0
		}

		usage, err := s.store.DailyUsage(ctx, userID, s.now().UTC())
		if err != nil {
			slog.Warn("quota: daily usage lookup failed, treating as exhausted", "user_id", userID, "error", err)
			return 0
		}

		used := usage.PracticeSeconds
		if kind == KindRoleplay {
			used = usage.RoleplaySeconds
		}
		return clamp(s.capFor(kind, sub.PlanType) - (used + elapsedSeconds))
	}

	slog.Warn("quota: unknown session kind", "user_id", userID, "kind", kind)
	return 0
}

// Status returns the full quota picture for one kind, for API display.
func (s *Service) Status(ctx context.Context, userID int64, kind Kind) Status {
	remaining := s.Remaining(ctx, userID, kind, 0)
	cap := s.limits.CallLifetimeSeconds
	if kind != KindCall {
		plan := ""
		if sub, err := s.store.ActiveSubscription(ctx, userID); err == nil && sub != nil {
			plan = sub.PlanType
		}
		cap = s.capFor(kind, plan)
	}
	return Status{
		Kind:             kind,
		CapSeconds:       cap,
		RemainingSeconds: remaining,
		CanStart:         remaining > 0,
	}
}

func (s *Service) capFor(kind Kind, planType string) int64 {
	if kind == KindPractice {
		return s.limits.PracticeDailySeconds
	}
	// Roleplay: Pro gets the larger cap, Basic and FreeTrial share the base one.
	if planType == PlanPro {
		return s.limits.RoleplayProSeconds
	}
	return s.limits.RoleplayBasicSeconds
}

func clamp(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
