package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/prepwise/progression-engine/internal/domain/quota"
	"github.com/prepwise/progression-engine/internal/domain/shared"
)

// QuotaRepository implements quota.Repository for PostgreSQL. Usage lives on
// the user row; the row lock taken by CheckAndIncrement serializes concurrent
// checks for one user.
type QuotaRepository struct {
	conn *Connection
}

// NewQuotaRepository creates a new QuotaRepository.
func NewQuotaRepository(conn *Connection) *QuotaRepository {
	return &QuotaRepository{conn: conn}
}

const selectAccount = `
		SELECT plan, subscription_status, interview_count, period_start, last_interview_at
		FROM users WHERE id = $1`

// Get returns the user's subscription and usage.
func (r *QuotaRepository) Get(ctx context.Context, userID shared.UserID) (*quota.Account, error) {
	acc, err := scanAccount(r.conn.q().QueryRow(ctx, selectAccount, userID.String()))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProfileNotFound
		}
		return nil, mapError("quota", "Get", err)
	}
	acc.UserID = userID
	return acc, nil
}

// CheckAndIncrement locks the user row, asks decide for a verdict and persists
// the new usage when the verdict says so. Read, decision and write commit together.
func (r *QuotaRepository) CheckAndIncrement(
	ctx context.Context,
	userID shared.UserID,
	decide func(quota.Account) quota.Decision,
) (quota.Decision, error) {
	var d quota.Decision

	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		acc, err := scanAccount(tx.QueryRow(ctx, selectAccount+" FOR UPDATE", userID.String()))
		if err != nil {
			if IsNoRows(err) {
				return shared.ErrProfileNotFound
			}
			return err
		}
		acc.UserID = userID

		d = decide(*acc)
		if !d.Write {
			return nil
		}

		if _, err := tx.Exec(ctx, `
			UPDATE users SET
				interview_count = $2, period_start = $3, last_interview_at = $4, updated_at = NOW()
			WHERE id = $1`,
			userID.String(),
			d.Usage.InterviewCount,
			d.Usage.PeriodStart.UTC(),
			utcOrNil(d.Usage.LastInterviewAt),
		); err != nil {
			return fmt.Errorf("failed to update usage: %w", err)
		}
		return nil
	})
	if err != nil {
		return quota.Decision{}, mapError("quota", "CheckAndIncrement", err)
	}
	return d, nil
}

func scanAccount(row pgx.Row) (*quota.Account, error) {
	var (
		acc         quota.Account
		plan        string
		status      string
		periodStart *time.Time
	)
	if err := row.Scan(&plan, &status, &acc.Usage.InterviewCount, &periodStart, &acc.Usage.LastInterviewAt); err != nil {
		return nil, err
	}
	acc.Subscription = quota.Subscription{Plan: quota.Plan(plan), Status: quota.SubscriptionStatus(status)}
	if periodStart != nil {
		acc.Usage.PeriodStart = periodStart.UTC()
	}
	return &acc, nil
}

func utcOrNil(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

var _ quota.Repository = (*QuotaRepository)(nil)
