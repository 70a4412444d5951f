// Package quota bounds how many interviews a free user may start per UTC day.
package quota

import (
	"context"
	"time"

	"github.com/prepwise/progression-engine/internal/domain/shared"
	"github.com/prepwise/progression-engine/pkg/timeutil"
)

// DailyLimit is the number of interviews a non-pro user may start per UTC day.
const DailyLimit = 2

// Plan is the billing plan of a user.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// SubscriptionStatus mirrors the billing provider status.
type SubscriptionStatus string

const (
	StatusNone     SubscriptionStatus = "none"
	StatusActive   SubscriptionStatus = "active"
	StatusPastDue  SubscriptionStatus = "past_due"
	StatusCanceled SubscriptionStatus = "canceled"
)

// Subscription is the billing subset of a user record.
type Subscription struct {
	Plan   Plan
	Status SubscriptionStatus
}

// Unlimited reports whether the subscription bypasses the daily limit.
// Only an active pro plan does; a lapsed pro plan counts as free.
func (s Subscription) Unlimited() bool {
	return s.Plan == PlanPro && s.Status == StatusActive
}

// Usage is the persisted per-user daily counter.
type Usage struct {
	InterviewCount  int
	PeriodStart     time.Time
	LastInterviewAt *time.Time
}

// CountAt returns the count that applies at now.
// A zero PeriodStart or a different UTC day yields 0.
func (u Usage) CountAt(now time.Time) int {
	if u.PeriodStart.IsZero() || !timeutil.SameUTCDay(now, u.PeriodStart) {
		return 0
	}
	return u.InterviewCount
}

// Account is everything the guard reads for one user.
type Account struct {
	UserID       shared.UserID
	Subscription Subscription
	Usage        Usage
}

// Decision is the outcome of one check-and-increment.
type Decision struct {
	Allowed   bool
	Unlimited bool

	// Write is true when Usage must be persisted.
	Write bool
	Usage Usage

	// Remaining is -1 for unlimited plans.
	Remaining int

	// ResetsAt is set on denial: the next UTC midnight after PeriodStart.
	ResetsAt *time.Time
}

// Decide runs the quota rule without I/O.
func Decide(now time.Time, sub Subscription, usage Usage) Decision {
	if sub.Unlimited() {
		return Decision{Allowed: true, Unlimited: true, Usage: usage, Remaining: -1}
	}

	rolled := usage.PeriodStart.IsZero() || !timeutil.SameUTCDay(now, usage.PeriodStart)
	current := usage.CountAt(now)

	if current >= DailyLimit {
		resets := timeutil.NextUTCMidnight(usage.PeriodStart)
		return Decision{Allowed: false, Usage: usage, Remaining: 0, ResetsAt: &resets}
	}

	next := usage
	next.InterviewCount = current + 1
	at := now
	next.LastInterviewAt = &at
	if rolled {
		next.PeriodStart = now
	}

	return Decision{
		Allowed:   true,
		Write:     true,
		Usage:     next,
		Remaining: DailyLimit - next.InterviewCount,
	}
}

// Status is a read-only view of the quota for display.
type Status struct {
	Unlimited bool
	Used      int
	Limit     int
	Remaining int
	ResetsAt  time.Time
}

// StatusAt summarizes acc at now without changing it.
func StatusAt(now time.Time, acc Account) Status {
	if acc.Subscription.Unlimited() {
		return Status{Unlimited: true, Remaining: -1, Limit: -1}
	}
	used := acc.Usage.CountAt(now)
	start := acc.Usage.PeriodStart
	if used == 0 {
		start = now
	}
	return Status{
		Used:      used,
		Limit:     DailyLimit,
		Remaining: max(DailyLimit-used, 0),
		ResetsAt:  timeutil.NextUTCMidnight(start),
	}
}

// Repository persists accounts.
type Repository interface {
	// Get returns the account; missing usage is returned zeroed.
	Get(ctx context.Context, userID shared.UserID) (*Account, error)

	// CheckAndIncrement locks the account row, calls decide and writes the new
	// usage when the decision asks for it, all in one transaction. decide may
	// run more than once if the transaction is retried.
	CheckAndIncrement(ctx context.Context, userID shared.UserID, decide func(Account) Decision) (Decision, error)
}
