package quota

import (
	"strings"
	"time"
)

// Kind is the session category a quota applies to.
type Kind string

const (
	KindCall     Kind = "call"
	KindPractice Kind = "practice"
	KindRoleplay Kind = "roleplay"
)

// ParseKind normalizes a raw session kind. The second return is false for
// anything outside the supported set; callers treat that as a denial.
func ParseKind(raw string) (Kind, bool) {
	switch Kind(strings.ToLower(raw)) {
	case KindCall:
		return KindCall, true
	case KindPractice:
		return KindPractice, true
	case KindRoleplay:
		return KindRoleplay, true
	}
	return "", false
}

// Subscription plan types as stored by the Node API.
const (
	PlanPro       = "Pro"
	PlanBasic     = "Basic"
	PlanFreeTrial = "FreeTrial"
)

// Subscription matches the active row of the subscriptions table.
type Subscription struct {
	UserID    int64     `json:"user_id"`
	PlanType  string    `json:"plan_type"`
	Status    string    `json:"status"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// DailyUsage holds one user's accumulated practice/roleplay seconds for a
// single UTC calendar day.
type DailyUsage struct {
	PracticeSeconds int64 `json:"practice_seconds"`
	RoleplaySeconds int64 `json:"roleplay_seconds"`
}

// UsageRecord is one completed session's contribution to the ledger.
type UsageRecord struct {
	UserID          int64
	Kind            Kind
	DurationSeconds int64
	Day             time.Time // UTC calendar day, practice/roleplay only
}

// Status is the API response showing remaining time for one session kind.
type Status struct {
	Kind             Kind  `json:"kind"`
	CapSeconds       int64 `json:"cap_seconds"`
	RemainingSeconds int64 `json:"remaining_seconds"`
	CanStart         bool  `json:"can_start"`
}
