package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"

	"github.com/prepwise/progression-engine/internal/domain/progression"
	"github.com/prepwise/progression-engine/internal/domain/shared"
	"github.com/prepwise/progression-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ProfileRepository implements progression.ProfileRepository for PostgreSQL.
type ProfileRepository struct {
	conn  *Connection
	clock timeutil.Clock
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(conn *Connection, clock timeutil.Clock) *ProfileRepository {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &ProfileRepository{conn: conn, clock: clock}
}

const selectProfile = `
		SELECT experience_points, level, title, total_interviews, average_score, badges_unlocked, updated_at
		FROM users WHERE id = $1`

// Get returns the progression state of a user.
func (r *ProfileRepository) Get(ctx context.Context, userID shared.UserID) (*progression.Profile, error) {
	p, err := scanProfile(r.conn.q().QueryRow(ctx, selectProfile, userID.String()))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProfileNotFound
		}
		return nil, mapError("progression", "GetProfile", err)
	}
	p.UserID = userID
	return p, nil
}

// ApplyReward rewards one session inside a transaction holding the user row
// and the session row. A session rewarded before returns its stored result.
func (r *ProfileRepository) ApplyReward(
	ctx context.Context,
	userID shared.UserID,
	sessionID string,
	fn progression.RewardFunc,
) (progression.XPResult, bool, error) {
	var (
		result   progression.XPResult
		replayed bool
	)

	err := r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		profile, err := scanProfile(tx.QueryRow(ctx, selectProfile+" FOR UPDATE", userID.String()))
		if err != nil {
			if IsNoRows(err) {
				return shared.ErrProfileNotFound
			}
			return err
		}

		sess, err := scanSession(tx.QueryRow(ctx, selectSession+" FOR UPDATE", sessionID))
		if err != nil {
			if IsNoRows(err) {
				return errSessionNotFound("ApplyReward")
			}
			return err
		}
		if sess.UserID != userID {
			return errSessionNotFound("ApplyReward")
		}

		if sess.IsRewarded() && sess.Reward != nil {
			result, replayed = *sess.Reward, true
			return nil
		}

		reward, err := fn(profile.State, *sess)
		if err != nil {
			return err
		}

		next := reward.Next
		if _, err := tx.Exec(ctx, `
			UPDATE users SET
				experience_points = $2, level = $3, title = $4,
				total_interviews = $5, average_score = $6, badges_unlocked = $7,
				updated_at = $8
			WHERE id = $1`,
			userID.String(),
			next.ExperiencePoints,
			next.Level,
			next.Title,
			next.TotalInterviews,
			next.AverageScore,
			badgesOrEmpty(next.BadgesUnlocked),
			r.clock.Now().UTC(),
		); err != nil {
			return fmt.Errorf("failed to update profile: %w", err)
		}

		stored, err := sonic.ConfigDefault.Marshal(reward.Result)
		if err != nil {
			return fmt.Errorf("failed to encode reward: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE interview_sessions SET rewarded_at = $2, reward = $3 WHERE id = $1`,
			sessionID, r.clock.Now().UTC(), stored,
		); err != nil {
			return fmt.Errorf("failed to mark session rewarded: %w", err)
		}

		result = reward.Result
		return nil
	})
	if err != nil {
		return progression.XPResult{}, false, mapError("progression", "ApplyReward", err)
	}
	return result, replayed, nil
}

func scanProfile(row pgx.Row) (*progression.Profile, error) {
	var (
		p      progression.Profile
		badges []string
	)
	if err := row.Scan(
		&p.State.ExperiencePoints,
		&p.State.Level,
		&p.State.Title,
		&p.State.TotalInterviews,
		&p.State.AverageScore,
		&badges,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.State.BadgesUnlocked = badges
	return &p, nil
}

func badgesOrEmpty(b []string) []string {
	if b == nil {
		return []string{}
	}
	return b
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// SessionRepository implements progression.SessionRepository for PostgreSQL.
type SessionRepository struct {
	conn *Connection
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(conn *Connection) *SessionRepository {
	return &SessionRepository{conn: conn}
}

const selectSession = `
		SELECT id, user_id, score, duration_minutes, completed_at, rewarded_at, reward
		FROM interview_sessions WHERE id = $1`

func errSessionNotFound(op string) error {
	return shared.NewDomainError("progression", op, shared.ErrNotFound, "session not found")
}

// Create stores a completed session.
func (r *SessionRepository) Create(ctx context.Context, s *progression.Session) error {
	_, err := r.conn.q().Exec(ctx, `
		INSERT INTO interview_sessions (id, user_id, score, duration_minutes, completed_at)
		VALUES ($1, $2, $3, $4, $5)`,
		s.ID,
		s.UserID.String(),
		s.Score,
		s.DurationMinutes,
		s.CompletedAt.UTC(),
	)
	if err != nil {
		switch {
		case IsForeignKeyViolation(err):
			return shared.ErrProfileNotFound
		case IsUniqueViolation(err):
			return shared.WrapError("progression", "CreateSession", shared.ErrAlreadyExists, "session already exists", err)
		}
		return mapError("progression", "CreateSession", err)
	}
	return nil
}

// Get returns a session by id.
func (r *SessionRepository) Get(ctx context.Context, id string) (*progression.Session, error) {
	s, err := scanSession(r.conn.q().QueryRow(ctx, selectSession, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, errSessionNotFound("GetSession")
		}
		return nil, mapError("progression", "GetSession", err)
	}
	return s, nil
}

// ListByUser returns the user's session history oldest first.
func (r *SessionRepository) ListByUser(ctx context.Context, userID shared.UserID) ([]progression.SessionRecord, error) {
	rows, err := r.conn.q().Query(ctx, `
		SELECT score, duration_minutes, completed_at
		FROM interview_sessions
		WHERE user_id = $1
		ORDER BY completed_at ASC, id ASC`,
		userID.String(),
	)
	if err != nil {
		return nil, mapError("progression", "ListSessions", err)
	}
	defer rows.Close()

	var out []progression.SessionRecord
	for rows.Next() {
		var rec progression.SessionRecord
		if err := rows.Scan(&rec.Score, &rec.DurationMinutes, &rec.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("progression", "ListSessions", err)
	}
	return out, nil
}

// ListPendingRewards returns unrewarded sessions completed before olderThan, oldest first.
func (r *SessionRepository) ListPendingRewards(ctx context.Context, olderThan time.Time, limit int) ([]*progression.Session, error) {
	rows, err := r.conn.q().Query(ctx, `
		SELECT id, user_id, score, duration_minutes, completed_at, rewarded_at, reward
		FROM interview_sessions
		WHERE rewarded_at IS NULL AND completed_at < $1
		ORDER BY completed_at ASC
		LIMIT $2`,
		olderThan.UTC(), limit,
	)
	if err != nil {
		return nil, mapError("progression", "ListPendingRewards", err)
	}
	defer rows.Close()

	var out []*progression.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("progression", "ListPendingRewards", err)
	}
	return out, nil
}

func scanSession(row pgx.Row) (*progression.Session, error) {
	var (
		s      progression.Session
		userID string
		stored []byte
	)
	if err := row.Scan(&s.ID, &userID, &s.Score, &s.DurationMinutes, &s.CompletedAt, &s.RewardedAt, &stored); err != nil {
		return nil, err
	}
	s.UserID = shared.UserID(userID)
	if len(stored) > 0 {
		var res progression.XPResult
		if err := sonic.ConfigDefault.Unmarshal(stored, &res); err != nil {
			return nil, fmt.Errorf("failed to decode stored reward: %w", err)
		}
		s.Reward = &res
	}
	return &s, nil
}

var (
	_ progression.ProfileRepository = (*ProfileRepository)(nil)
	_ progression.SessionRepository = (*SessionRepository)(nil)
)
