package query

import (
	"context"
	"fmt"
	"time"

	"github.com/prepwise/progression-engine/internal/domain/quota"
	"github.com/prepwise/progression-engine/internal/domain/shared"
	"github.com/prepwise/progression-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET QUOTA STATUS QUERY
// Read-only view of today's usage. Never writes.
// ══════════════════════════════════════════════════════════════════════════════

// GetQuotaStatusQuery identifies the user.
type GetQuotaStatusQuery struct {
	UserID string
}

// QuotaStatusDTO is the quota view returned to clients.
type QuotaStatusDTO struct {
	Unlimited bool       `json:"unlimited"`
	Used      int        `json:"used"`
	Limit     int        `json:"limit"`
	Remaining int        `json:"remaining"`
	ResetsAt  *time.Time `json:"resets_at,omitempty"`
	Plan      string     `json:"plan"`
}

// GetQuotaStatusHandler handles GetQuotaStatusQuery.
type GetQuotaStatusHandler struct {
	repo  quota.Repository
	clock timeutil.Clock
}

// NewGetQuotaStatusHandler creates a new GetQuotaStatusHandler.
func NewGetQuotaStatusHandler(repo quota.Repository, clock timeutil.Clock) *GetQuotaStatusHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &GetQuotaStatusHandler{repo: repo, clock: clock}
}

// Handle executes the query.
func (h *GetQuotaStatusHandler) Handle(ctx context.Context, q GetQuotaStatusQuery) (*QuotaStatusDTO, error) {
	userID, err := shared.NewUserID(q.UserID)
	if err != nil {
		return nil, err
	}
	if h.repo == nil {
		return nil, fmt.Errorf("get_quota_status: %w", shared.ErrQuotaStoreUnavailable)
	}

	acc, err := h.repo.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get_quota_status: %w", err)
	}

	st := quota.StatusAt(h.clock.Now(), *acc)
	dto := &QuotaStatusDTO{
		Unlimited: st.Unlimited,
		Used:      st.Used,
		Limit:     st.Limit,
		Remaining: st.Remaining,
		Plan:      string(acc.Subscription.Plan),
	}
	if !st.Unlimited {
		resets := st.ResetsAt
		dto.ResetsAt = &resets
	}
	return dto, nil
}
