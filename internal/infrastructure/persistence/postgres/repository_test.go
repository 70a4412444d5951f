package postgres_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepwise/progression-engine/internal/domain/progression"
	"github.com/prepwise/progression-engine/internal/domain/quota"
	"github.com/prepwise/progression-engine/internal/domain/roadmap"
	"github.com/prepwise/progression-engine/internal/domain/shared"
	"github.com/prepwise/progression-engine/internal/infrastructure/persistence/postgres"
	"github.com/prepwise/progression-engine/pkg/timeutil"
)

var (
	noon       = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	profileCol = []string{"experience_points", "level", "title", "total_interviews", "average_score", "badges_unlocked", "updated_at"}
	sessionCol = []string{"id", "user_id", "score", "duration_minutes", "completed_at", "rewarded_at", "reward"}
	accountCol = []string{"plan", "subscription_status", "interview_count", "period_start", "last_interview_at"}
	ideaCol    = []string{"id", "title", "description", "audience", "status", "created_by_uid", "vote_count", "created_at"}
)

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *postgres.Connection) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return mock, postgres.NewConnectionWithPool(mock)
}

func q(s string) string { return regexp.QuoteMeta(s) }

func f(v float64) *float64 { return &v }

func TestProfileRepository_Get(t *testing.T) {
	mock, conn := newMock(t)
	repo := postgres.NewProfileRepository(conn, timeutil.NewFixedClock(noon))
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(q("FROM users WHERE id = $1")).
			WithArgs("alice").
			WillReturnRows(pgxmock.NewRows(profileCol).
				AddRow(135, 2, "Apprentice", 1, 90.0, []string{"first_interview"}, noon))

		p, err := repo.Get(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, shared.UserID("alice"), p.UserID)
		assert.Equal(t, 135, p.State.ExperiencePoints)
		assert.Equal(t, []string{"first_interview"}, p.State.BadgesUnlocked)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(q("FROM users WHERE id = $1")).
			WithArgs("ghost").
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.Get(ctx, "ghost")
		assert.True(t, shared.IsNotFound(err))
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepository_ApplyReward(t *testing.T) {
	mock, conn := newMock(t)
	repo := postgres.NewProfileRepository(conn, timeutil.NewFixedClock(noon))
	ctx := context.Background()

	expectLocks := func(rewardedAt *time.Time, stored []byte, owner string) {
		mock.ExpectBegin()
		mock.ExpectQuery(q("FROM users WHERE id = $1 FOR UPDATE")).
			WithArgs("alice").
			WillReturnRows(pgxmock.NewRows(profileCol).AddRow(0, 1, "Beginner", 0, 0.0, []string{}, noon))
		mock.ExpectQuery(q("FROM interview_sessions WHERE id = $1 FOR UPDATE")).
			WithArgs("s1").
			WillReturnRows(pgxmock.NewRows(sessionCol).AddRow("s1", owner, f(85), 40, noon, rewardedAt, stored))
	}

	t.Run("applies and marks the session", func(t *testing.T) {
		expectLocks(nil, nil, "alice")
		mock.ExpectExec(q("UPDATE users SET")).
			WithArgs("alice", 135, 2, "Apprentice", 1, 85.0, []string{"first_interview"}, noon).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec(q("UPDATE interview_sessions SET rewarded_at = $2, reward = $3 WHERE id = $1")).
			WithArgs("s1", noon, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		var seen progression.Session
		res, replayed, err := repo.ApplyReward(ctx, "alice", "s1", func(cur progression.State, s progression.Session) (progression.Reward, error) {
			seen = s
			return progression.ApplySession(cur, progression.SessionInput{Score: 85, DurationMinutes: 40}, progression.UserStats{}), nil
		})
		require.NoError(t, err)
		assert.False(t, replayed)
		assert.Equal(t, 135, res.TotalXP)
		assert.Equal(t, 40, seen.DurationMinutes)
	})

	t.Run("replays a rewarded session", func(t *testing.T) {
		stored, err := sonic.ConfigDefault.Marshal(progression.XPResult{Level: 2, Title: "Apprentice", TotalXP: 135, XPGained: 135})
		require.NoError(t, err)
		at := noon
		expectLocks(&at, stored, "alice")
		mock.ExpectCommit()

		res, replayed, err := repo.ApplyReward(ctx, "alice", "s1", func(progression.State, progression.Session) (progression.Reward, error) {
			t.Fatal("reward must not be recomputed")
			return progression.Reward{}, nil
		})
		require.NoError(t, err)
		assert.True(t, replayed)
		assert.Equal(t, 135, res.TotalXP)
	})

	t.Run("session of another user", func(t *testing.T) {
		expectLocks(nil, nil, "bob")
		mock.ExpectRollback()

		_, _, err := repo.ApplyReward(ctx, "alice", "s1", nil)
		assert.True(t, shared.IsNotFound(err))
	})

	t.Run("lock conflict maps to contention", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(q("FROM users WHERE id = $1 FOR UPDATE")).
			WithArgs("alice").
			WillReturnError(&pgconn.PgError{Code: "40P01"})
		mock.ExpectRollback()

		_, _, err := repo.ApplyReward(ctx, "alice", "s1", nil)
		assert.True(t, shared.IsContention(err))
	})

	t.Run("compute error rolls back", func(t *testing.T) {
		expectLocks(nil, nil, "alice")
		mock.ExpectRollback()

		boom := errors.New("boom")
		_, _, err := repo.ApplyReward(ctx, "alice", "s1", func(progression.State, progression.Session) (progression.Reward, error) {
			return progression.Reward{}, boom
		})
		assert.ErrorIs(t, err, boom)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository(t *testing.T) {
	mock, conn := newMock(t)
	repo := postgres.NewSessionRepository(conn)
	ctx := context.Background()
	insert := q("INSERT INTO interview_sessions")
	sess := &progression.Session{ID: "s1", UserID: "alice", Score: f(80), DurationMinutes: 20, CompletedAt: noon}

	t.Run("create", func(t *testing.T) {
		mock.ExpectExec(insert).
			WithArgs("s1", "alice", f(80), 20, noon).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		assert.NoError(t, repo.Create(ctx, sess))
	})

	t.Run("duplicate id", func(t *testing.T) {
		mock.ExpectExec(insert).WillReturnError(&pgconn.PgError{Code: "23505"})
		assert.ErrorIs(t, repo.Create(ctx, sess), shared.ErrAlreadyExists)
	})

	t.Run("unknown user", func(t *testing.T) {
		mock.ExpectExec(insert).WillReturnError(&pgconn.PgError{Code: "23503"})
		assert.ErrorIs(t, repo.Create(ctx, sess), shared.ErrProfileNotFound)
	})

	t.Run("list by user", func(t *testing.T) {
		mock.ExpectQuery(q("ORDER BY completed_at ASC, id ASC")).
			WithArgs("alice").
			WillReturnRows(pgxmock.NewRows([]string{"score", "duration_minutes", "completed_at"}).
				AddRow(f(70), 10, noon.Add(-time.Hour)).
				AddRow((*float64)(nil), 5, noon))

		history, err := repo.ListByUser(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, 70.0, *history[0].Score)
		assert.Nil(t, history[1].Score)
	})

	t.Run("pending rewards", func(t *testing.T) {
		mock.ExpectQuery(q("WHERE rewarded_at IS NULL AND completed_at < $1")).
			WithArgs(noon, 50).
			WillReturnRows(pgxmock.NewRows(sessionCol).
				AddRow("s9", "bob", f(60), 30, noon.Add(-time.Hour), (*time.Time)(nil), []byte(nil)))

		pending, err := repo.ListPendingRewards(ctx, noon, 50)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, shared.UserID("bob"), pending[0].UserID)
		assert.False(t, pending[0].IsRewarded())
		assert.Nil(t, pending[0].Reward)
	})

	t.Run("get missing", func(t *testing.T) {
		mock.ExpectQuery(q("FROM interview_sessions WHERE id = $1")).
			WithArgs("nope").
			WillReturnError(pgx.ErrNoRows)
		_, err := repo.Get(ctx, "nope")
		assert.True(t, shared.IsNotFound(err))
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQuotaRepository_CheckAndIncrement(t *testing.T) {
	mock, conn := newMock(t)
	repo := postgres.NewQuotaRepository(conn)
	ctx := context.Background()
	decide := func(acc quota.Account) quota.Decision { return quota.Decide(noon, acc.Subscription, acc.Usage) }
	lock := q("FROM users WHERE id = $1 FOR UPDATE")

	t.Run("allowed writes usage", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lock).
			WithArgs("alice").
			WillReturnRows(pgxmock.NewRows(accountCol).AddRow("free", "none", 0, (*time.Time)(nil), (*time.Time)(nil)))
		mock.ExpectExec(q("UPDATE users SET")).
			WithArgs("alice", 1, noon, pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		d, err := repo.CheckAndIncrement(ctx, "alice", decide)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 1, d.Remaining)
	})

	t.Run("denied writes nothing", func(t *testing.T) {
		start := noon.Add(-2 * time.Hour)
		mock.ExpectBegin()
		mock.ExpectQuery(lock).
			WithArgs("alice").
			WillReturnRows(pgxmock.NewRows(accountCol).AddRow("free", "none", 2, &start, &start))
		mock.ExpectCommit()

		d, err := repo.CheckAndIncrement(ctx, "alice", decide)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		require.NotNil(t, d.ResetsAt)
		assert.Equal(t, time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC), *d.ResetsAt)
	})

	t.Run("pro skips the write", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lock).
			WithArgs("carol").
			WillReturnRows(pgxmock.NewRows(accountCol).AddRow("pro", "active", 7, (*time.Time)(nil), (*time.Time)(nil)))
		mock.ExpectCommit()

		d, err := repo.CheckAndIncrement(ctx, "carol", decide)
		require.NoError(t, err)
		assert.True(t, d.Unlimited)
	})

	t.Run("serialization failure", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lock).WithArgs("alice").WillReturnError(&pgconn.PgError{Code: "40001"})
		mock.ExpectRollback()

		_, err := repo.CheckAndIncrement(ctx, "alice", decide)
		assert.True(t, shared.IsContention(err))
	})

	t.Run("unknown user", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lock).WithArgs("ghost").WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()

		_, err := repo.CheckAndIncrement(ctx, "ghost", decide)
		assert.ErrorIs(t, err, shared.ErrProfileNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoadmapRepository_Toggle(t *testing.T) {
	mock, conn := newMock(t)
	repo := postgres.NewRoadmapRepository(conn)
	ctx := context.Background()
	lock := q("SELECT vote_count FROM roadmap_ideas WHERE id = $1 FOR UPDATE")
	del := q("DELETE FROM idea_votes WHERE idea_id = $1 AND user_id = $2")

	t.Run("first toggle adds a vote", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lock).WithArgs("idea-1").WillReturnRows(pgxmock.NewRows([]string{"vote_count"}).AddRow(0))
		mock.ExpectExec(del).WithArgs("idea-1", "alice").WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mock.ExpectExec(q("INSERT INTO idea_votes")).WithArgs("idea-1", "alice").WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectQuery(q("SET vote_count = vote_count + 1")).WithArgs("idea-1").
			WillReturnRows(pgxmock.NewRows([]string{"vote_count"}).AddRow(1))
		mock.ExpectCommit()

		res, err := repo.Toggle(ctx, "idea-1", "alice")
		require.NoError(t, err)
		assert.Equal(t, roadmap.ToggleResult{IdeaID: "idea-1", VoteCount: 1, Upvoted: true}, res)
	})

	t.Run("second toggle removes it", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lock).WithArgs("idea-1").WillReturnRows(pgxmock.NewRows([]string{"vote_count"}).AddRow(1))
		mock.ExpectExec(del).WithArgs("idea-1", "alice").WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectQuery(q("GREATEST(vote_count - 1, 0)")).WithArgs("idea-1").
			WillReturnRows(pgxmock.NewRows([]string{"vote_count"}).AddRow(0))
		mock.ExpectCommit()

		res, err := repo.Toggle(ctx, "idea-1", "alice")
		require.NoError(t, err)
		assert.Equal(t, roadmap.ToggleResult{IdeaID: "idea-1", VoteCount: 0, Upvoted: false}, res)
	})

	t.Run("missing idea", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lock).WithArgs("nope").WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()

		_, err := repo.Toggle(ctx, "nope", "alice")
		assert.ErrorIs(t, err, shared.ErrIdeaNotFound)
	})

	t.Run("lock timeout", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lock).WithArgs("idea-1").WillReturnError(&pgconn.PgError{Code: "55P03"})
		mock.ExpectRollback()

		_, err := repo.Toggle(ctx, "idea-1", "alice")
		assert.True(t, shared.IsContention(err))
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoadmapRepository_Reads(t *testing.T) {
	mock, conn := newMock(t)
	repo := postgres.NewRoadmapRepository(conn)
	ctx := context.Background()

	t.Run("create", func(t *testing.T) {
		mock.ExpectExec(q("INSERT INTO roadmap_ideas")).
			WithArgs("idea-1", "Dark mode", "Please add dark mode", "candidate", "planned", "carol", 0, noon).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		require.NoError(t, repo.Create(ctx, &roadmap.Idea{
			ID: "idea-1", Title: "Dark mode", Description: "Please add dark mode",
			Audience: roadmap.AudienceCandidate, Status: roadmap.StatusPlanned, CreatedByUID: "carol", CreatedAt: noon,
		}))
	})

	t.Run("list keeps database order", func(t *testing.T) {
		mock.ExpectQuery(q("ORDER BY vote_count DESC, created_at DESC")).
			WithArgs(100).
			WillReturnRows(pgxmock.NewRows(ideaCol).
				AddRow("hot", "Hot", "hot idea here", "candidate", "planned", "u1", 5, noon.Add(-time.Hour)).
				AddRow("new", "New", "new idea here", "recruiter", "in_progress", "u2", 0, noon))

		ideas, err := repo.List(ctx, 100)
		require.NoError(t, err)
		require.Len(t, ideas, 2)
		assert.Equal(t, "hot", ideas[0].ID)
		assert.Equal(t, roadmap.AudienceRecruiter, ideas[1].Audience)
		assert.Equal(t, roadmap.StatusInProgress, ideas[1].Status)
	})

	t.Run("upvoted by", func(t *testing.T) {
		mock.ExpectQuery(q("SELECT idea_id FROM idea_votes WHERE user_id = $1")).
			WithArgs("alice").
			WillReturnRows(pgxmock.NewRows([]string{"idea_id"}).AddRow("hot"))

		up, err := repo.UpvotedBy(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, map[string]bool{"hot": true}, up)
	})

	t.Run("divergences", func(t *testing.T) {
		mock.ExpectQuery(q("HAVING i.vote_count <> COUNT(v.user_id)")).
			WillReturnRows(pgxmock.NewRows([]string{"id", "vote_count", "actual"}).AddRow("hot", 5, 4))

		div, err := repo.Divergences(ctx)
		require.NoError(t, err)
		require.Len(t, div, 1)
		assert.Equal(t, roadmap.Divergence{IdeaID: "hot", VoteCount: 5, Actual: 4}, div[0])
		assert.True(t, shared.IsConsistency(div[0].Err()))
	})

	t.Run("get missing", func(t *testing.T) {
		mock.ExpectQuery(q("FROM roadmap_ideas WHERE id = $1")).WithArgs("nope").WillReturnError(pgx.ErrNoRows)
		_, err := repo.Get(ctx, "nope")
		assert.ErrorIs(t, err, shared.ErrIdeaNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConnection_Closed(t *testing.T) {
	mock, conn := newMock(t)
	mock.ExpectClose()
	conn.Close()
	conn.Close()

	assert.ErrorIs(t, conn.Ping(context.Background()), postgres.ErrConnectionClosed)
	_, err := postgres.NewQuotaRepository(conn).CheckAndIncrement(context.Background(), "alice", nil)
	assert.True(t, shared.IsConfiguration(err))
}
