package command

import (
	"context"
	"fmt"
	"time"

	"github.com/prepwise/progression-engine/internal/domain/quota"
	"github.com/prepwise/progression-engine/internal/domain/shared"
	"github.com/prepwise/progression-engine/pkg/logger"
	"github.com/prepwise/progression-engine/pkg/retry"
	"github.com/prepwise/progression-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHECK QUOTA COMMAND
// Admits or denies one interview start against the daily limit.
// ══════════════════════════════════════════════════════════════════════════════

// CheckQuotaCommand asks whether a user may start another interview.
type CheckQuotaCommand struct {
	UserID string
}

// CheckQuotaResult is the admission decision.
type CheckQuotaResult struct {
	Allowed   bool
	Unlimited bool

	// Remaining is -1 when unlimited or unknown.
	Remaining int

	// ResetsAt is set on denial.
	ResetsAt *time.Time

	// FailOpen marks a decision taken without consulting the store.
	FailOpen bool
}

// QuotaPolicy decides what happens when the quota store is unavailable.
type QuotaPolicy struct {
	// FailOpen admits every request when the store is missing or misconfigured.
	// When false such requests fail with a configuration error.
	FailOpen bool
}

// CheckQuotaHandler handles the CheckQuotaCommand.
type CheckQuotaHandler struct {
	repo           quota.Repository
	policy         QuotaPolicy
	eventPublisher shared.EventPublisher
	retrier        *retry.Retrier
	clock          timeutil.Clock
	log            *logger.Logger
}

// NewCheckQuotaHandler creates a new CheckQuotaHandler. A nil repo means the
// transactional store could not be configured at startup.
func NewCheckQuotaHandler(
	repo quota.Repository,
	policy QuotaPolicy,
	eventPublisher shared.EventPublisher,
	clock timeutil.Clock,
	log *logger.Logger,
) *CheckQuotaHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NopPublisher{}
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	h := &CheckQuotaHandler{
		repo:           repo,
		policy:         policy,
		eventPublisher: eventPublisher,
		clock:          clock,
		log:            log.With(logger.Component("quota_guard")),
	}

	if repo == nil {
		if policy.FailOpen {
			h.log.Error("quota store unavailable: QUOTA GUARD IS FAILING OPEN, every interview request will be admitted",
				logger.Err(shared.ErrQuotaStoreUnavailable),
				logger.Bool("fail_open", true),
			)
		} else {
			h.log.Error("quota store unavailable: quota guard is failing closed",
				logger.Err(shared.ErrQuotaStoreUnavailable),
				logger.Bool("fail_open", false),
			)
		}
	}
	return h
}

// WithContentionRetry makes Handle retry the transaction under r when it fails
// on contention. Without it contention is returned to the caller.
func (h *CheckQuotaHandler) WithContentionRetry(r *retry.Retrier) *CheckQuotaHandler {
	h.retrier = r
	return h
}

// Degraded reports whether the guard runs without a store.
func (h *CheckQuotaHandler) Degraded() bool {
	return h.repo == nil
}

// Handle runs the check-and-increment transaction.
func (h *CheckQuotaHandler) Handle(ctx context.Context, cmd CheckQuotaCommand) (*CheckQuotaResult, error) {
	userID, err := shared.NewUserID(cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("check_quota: validation failed: %w", err)
	}

	if h.repo == nil {
		return h.unavailable(userID, shared.ErrQuotaStoreUnavailable)
	}

	now := h.clock.Now()
	decide := func(acc quota.Account) quota.Decision {
		return quota.Decide(now, acc.Subscription, acc.Usage)
	}

	decision, err := runTx(ctx, h.retrier, func(ctx context.Context) (quota.Decision, error) {
		return h.repo.CheckAndIncrement(ctx, userID, decide)
	})
	if err != nil {
		if shared.IsConfiguration(err) {
			return h.unavailable(userID, err)
		}
		return nil, fmt.Errorf("check_quota: %w", err)
	}

	if !decision.Allowed {
		resets := timeutil.NextUTCMidnight(now)
		if decision.ResetsAt != nil {
			resets = *decision.ResetsAt
		}
		_ = h.eventPublisher.Publish(shared.NewQuotaDeniedEvent(userID.String(), resets, now))
		h.log.Info("interview denied by daily limit",
			logger.UserID(userID.String()),
			logger.Time("resets_at", resets),
		)
	}

	return &CheckQuotaResult{
		Allowed:   decision.Allowed,
		Unlimited: decision.Unlimited,
		Remaining: decision.Remaining,
		ResetsAt:  decision.ResetsAt,
	}, nil
}

func (h *CheckQuotaHandler) unavailable(userID shared.UserID, cause error) (*CheckQuotaResult, error) {
	if !h.policy.FailOpen {
		return nil, fmt.Errorf("check_quota: %w", cause)
	}
	h.log.Warn("quota check skipped, admitting request (fail-open)",
		logger.UserID(userID.String()),
		logger.Err(cause),
	)
	return &CheckQuotaResult{Allowed: true, Remaining: -1, FailOpen: true}, nil
}
