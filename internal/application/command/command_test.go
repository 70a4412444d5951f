package command

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepwise/progression-engine/internal/domain/progression"
	"github.com/prepwise/progression-engine/internal/domain/quota"
	"github.com/prepwise/progression-engine/internal/domain/roadmap"
	"github.com/prepwise/progression-engine/internal/domain/shared"
	"github.com/prepwise/progression-engine/internal/infrastructure/persistence/memory"
	"github.com/prepwise/progression-engine/pkg/logger"
	"github.com/prepwise/progression-engine/pkg/retry"
	"github.com/prepwise/progression-engine/pkg/timeutil"
)

const alice = shared.UserID("alice")

var noon = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD SESSION
// ══════════════════════════════════════════════════════════════════════════════

func newRecordSession(t *testing.T) (*RecordSessionHandler, *memory.Store, *memory.Recorder, *timeutil.FixedClock) {
	t.Helper()
	store := memory.NewStore()
	store.AddUser(alice)
	rec := &memory.Recorder{}
	clock := timeutil.NewFixedClock(noon)
	h := NewRecordSessionHandler(store.Profiles(), store.Sessions(), rec, clock, logger.Nop())
	return h, store, rec, clock
}

func TestRecordSession_FirstSession(t *testing.T) {
	h, store, rec, _ := newRecordSession(t)
	ctx := context.Background()

	res, err := h.Handle(ctx, RecordSessionCommand{UserID: "alice", Score: 85, DurationMinutes: 40})
	require.NoError(t, err)
	require.False(t, res.RewardPending)
	require.NotNil(t, res.Result)

	assert.Equal(t, 135, res.Result.XPGained)
	assert.Equal(t, 135, res.Result.TotalXP)
	assert.Equal(t, []string{"first_interview"}, res.Result.NewAchievements)
	assert.True(t, res.Result.LeveledUp)

	profile, err := store.Profiles().Get(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 135, profile.State.ExperiencePoints)
	assert.Equal(t, 1, profile.State.TotalInterviews)

	assert.Equal(t, []shared.EventType{
		shared.EventSessionCompleted,
		shared.EventAchievementUnlocked,
		shared.EventLevelUp,
	}, rec.Types())
}

func TestRecordSession_IdempotentOnSessionID(t *testing.T) {
	h, store, rec, _ := newRecordSession(t)
	ctx := context.Background()
	id := uuid.NewString()

	first, err := h.Handle(ctx, RecordSessionCommand{UserID: "alice", SessionID: id, Score: 70, DurationMinutes: 10})
	require.NoError(t, err)
	second, err := h.Handle(ctx, RecordSessionCommand{UserID: "alice", SessionID: id, Score: 70, DurationMinutes: 10})
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, first.Result, second.Result)

	profile, _ := store.Profiles().Get(ctx, alice)
	assert.Equal(t, 1, profile.State.TotalInterviews)
	assert.Equal(t, first.Result.TotalXP, profile.State.ExperiencePoints)
	assert.Len(t, rec.Types(), 3, "replay publishes nothing")
}

func TestRecordSession_RewardFailureKeepsSession(t *testing.T) {
	h, store, rec, clock := newRecordSession(t)
	ctx := context.Background()
	store.FailNext(errors.New("connection reset"), 1)

	res, err := h.Handle(ctx, RecordSessionCommand{UserID: "alice", Score: 90, DurationMinutes: 20})
	require.NoError(t, err)
	assert.True(t, res.RewardPending)
	assert.Nil(t, res.Result)
	assert.Empty(t, rec.Types())

	pending, err := store.Sessions().ListPendingRewards(ctx, clock.Now().Add(time.Second), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	replayed, wasReplayed, err := h.Reward(ctx, alice, res.SessionID)
	require.NoError(t, err)
	assert.False(t, wasReplayed)
	assert.Equal(t, 10+90+20+10, replayed.XPGained)

	pending, _ = store.Sessions().ListPendingRewards(ctx, clock.Now().Add(time.Second), 10)
	assert.Empty(t, pending)
}

func contention(domain, op string) error {
	return shared.NewDomainError(domain, op, shared.ErrTransactionContention, "deadlock")
}

func fastRetrier() *retry.Retrier {
	return retry.TransactionRetrier(shared.IsContention, retry.WithInitialDelay(time.Millisecond), retry.WithJitter(0))
}

func TestRecordSession_ContentionLeavesRewardPending(t *testing.T) {
	h, store, _, _ := newRecordSession(t)
	store.FailNext(contention("progression", "ApplyReward"), 1)

	res, err := h.Handle(context.Background(), RecordSessionCommand{UserID: "alice", Score: 50, DurationMinutes: 5})
	require.NoError(t, err)
	assert.True(t, res.RewardPending)
}

func TestRecordSession_RetriesContentionWhenEnabled(t *testing.T) {
	h, store, _, _ := newRecordSession(t)
	h.WithContentionRetry(fastRetrier())
	store.FailNext(contention("progression", "ApplyReward"), 2)

	res, err := h.Handle(context.Background(), RecordSessionCommand{UserID: "alice", Score: 50, DurationMinutes: 5})
	require.NoError(t, err)
	assert.False(t, res.RewardPending)
}

func TestRecordSession_Validation(t *testing.T) {
	h, _, _, _ := newRecordSession(t)
	cases := []RecordSessionCommand{
		{UserID: "", Score: 50},
		{UserID: "alice", Score: -1},
		{UserID: "alice", Score: 100.5},
		{UserID: "alice", Score: 50, DurationMinutes: -3},
		{UserID: "alice", Score: 50, SessionID: "not-a-uuid"},
	}
	for _, cmd := range cases {
		_, err := h.Handle(context.Background(), cmd)
		assert.True(t, shared.IsValidation(err), "%+v: %v", cmd, err)
	}
}

func TestRecordSession_SessionOfAnotherUser(t *testing.T) {
	h, store, _, _ := newRecordSession(t)
	store.AddUser("bob")
	id := uuid.NewString()

	_, err := h.Handle(context.Background(), RecordSessionCommand{UserID: "alice", SessionID: id, Score: 60})
	require.NoError(t, err)
	_, err = h.Handle(context.Background(), RecordSessionCommand{UserID: "bob", SessionID: id, Score: 60})
	assert.True(t, shared.IsValidation(err))
}

func TestRecordSession_StreakFeedsAchievements(t *testing.T) {
	h, _, _, clock := newRecordSession(t)
	ctx := context.Background()

	var last *progression.XPResult
	for day := 0; day < 3; day++ {
		res, err := h.Handle(ctx, RecordSessionCommand{UserID: "alice", Score: 40, DurationMinutes: 5})
		require.NoError(t, err)
		last = res.Result
		clock.Advance(24 * time.Hour)
	}
	assert.Contains(t, last.NewAchievements, "on_a_roll")
}

// ══════════════════════════════════════════════════════════════════════════════
// CHECK QUOTA
// ══════════════════════════════════════════════════════════════════════════════

func TestCheckQuota_DailyBoundAndReset(t *testing.T) {
	store := memory.NewStore()
	store.AddUser(alice)
	rec := &memory.Recorder{}
	clock := timeutil.NewFixedClock(time.Date(2026, 10, 15, 22, 0, 0, 0, time.UTC))
	h := NewCheckQuotaHandler(store.Quota(), QuotaPolicy{FailOpen: true}, rec, clock, logger.Nop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := h.Handle(ctx, CheckQuotaCommand{UserID: "alice"})
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}

	denied, err := h.Handle(ctx, CheckQuotaCommand{UserID: "alice"})
	require.NoError(t, err)
	assert.False(t, denied.Allowed)
	require.NotNil(t, denied.ResetsAt)
	assert.Equal(t, time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC), *denied.ResetsAt)
	assert.Contains(t, rec.Types(), shared.EventQuotaDenied)

	clock.Advance(2*time.Hour + time.Minute)
	after, err := h.Handle(ctx, CheckQuotaCommand{UserID: "alice"})
	require.NoError(t, err)
	assert.True(t, after.Allowed)
	assert.Equal(t, 1, after.Remaining)
}

func TestCheckQuota_ConcurrentCallers(t *testing.T) {
	for _, n := range []int{2, 3, 10, 50} {
		store := memory.NewStore()
		store.AddUser(alice)
		h := NewCheckQuotaHandler(store.Quota(), QuotaPolicy{FailOpen: true}, nil, timeutil.NewFixedClock(noon), logger.Nop())

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			allowed int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				res, err := h.Handle(context.Background(), CheckQuotaCommand{UserID: "alice"})
				if err == nil && res.Allowed {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, quota.DailyLimit, allowed, "n=%d", n)
	}
}

func TestCheckQuota_ProUnlimited(t *testing.T) {
	store := memory.NewStore()
	store.AddUser(alice)
	store.SetSubscription(alice, quota.Subscription{Plan: quota.PlanPro, Status: quota.StatusActive})
	h := NewCheckQuotaHandler(store.Quota(), QuotaPolicy{FailOpen: true}, nil, timeutil.NewFixedClock(noon), logger.Nop())

	for i := 0; i < 5; i++ {
		res, err := h.Handle(context.Background(), CheckQuotaCommand{UserID: "alice"})
		require.NoError(t, err)
		assert.True(t, res.Unlimited)
	}
	acc, _ := store.Quota().Get(context.Background(), alice)
	assert.Equal(t, 0, acc.Usage.InterviewCount)
}

func TestCheckQuota_MissingStore(t *testing.T) {
	open := NewCheckQuotaHandler(nil, QuotaPolicy{FailOpen: true}, nil, nil, logger.Nop())
	assert.True(t, open.Degraded())
	res, err := open.Handle(context.Background(), CheckQuotaCommand{UserID: "alice"})
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.True(t, res.FailOpen)

	closed := NewCheckQuotaHandler(nil, QuotaPolicy{FailOpen: false}, nil, nil, logger.Nop())
	_, err = closed.Handle(context.Background(), CheckQuotaCommand{UserID: "alice"})
	assert.True(t, shared.IsConfiguration(err))
}

func TestCheckQuota_ErrorsPropagate(t *testing.T) {
	store := memory.NewStore()
	h := NewCheckQuotaHandler(store.Quota(), QuotaPolicy{FailOpen: true}, nil, nil, logger.Nop())

	_, err := h.Handle(context.Background(), CheckQuotaCommand{UserID: "ghost"})
	assert.True(t, shared.IsNotFound(err))

	_, err = h.Handle(context.Background(), CheckQuotaCommand{UserID: "  "})
	assert.True(t, shared.IsValidation(err))
}

// ══════════════════════════════════════════════════════════════════════════════
// ROADMAP
// ══════════════════════════════════════════════════════════════════════════════

func TestToggleVote_RoundTrip(t *testing.T) {
	repo := memory.NewRoadmap()
	rec := &memory.Recorder{}
	create := NewCreateIdeaHandler(repo, rec, timeutil.NewFixedClock(noon))
	toggle := NewToggleVoteHandler(repo, rec, nil, logger.Nop())
	ctx := context.Background()

	idea, err := create.Handle(ctx, CreateIdeaCommand{
		Title:        "Salary negotiation drills",
		Description:  "Practice negotiating offers with a recruiter persona.",
		Audience:     "candidate",
		Status:       "planned",
		CreatedByUID: "alice",
	})
	require.NoError(t, err)

	on, err := toggle.Handle(ctx, ToggleVoteCommand{IdeaID: idea.ID, UserID: "bob"})
	require.NoError(t, err)
	assert.Equal(t, 1, on.VoteCount)
	assert.True(t, on.Upvoted)

	off, err := toggle.Handle(ctx, ToggleVoteCommand{IdeaID: idea.ID, UserID: "bob"})
	require.NoError(t, err)
	assert.Equal(t, 0, off.VoteCount)
	assert.False(t, off.Upvoted)

	assert.Equal(t, []shared.EventType{
		shared.EventIdeaCreated,
		shared.EventVoteToggled,
		shared.EventVoteToggled,
	}, rec.Types())
}

func seedIdea(t *testing.T, repo *memory.Roadmap) *roadmap.Idea {
	t.Helper()
	idea, err := NewCreateIdeaHandler(repo, nil, nil).Handle(context.Background(), CreateIdeaCommand{
		Title: "Recruiter dashboards", Description: "Shortlists for recruiters.", Audience: "recruiter",
		Status: "in_progress", CreatedByUID: "carol",
	})
	require.NoError(t, err)
	return idea
}

func TestToggleVote_ContentionReachesCaller(t *testing.T) {
	repo := memory.NewRoadmap()
	idea := seedIdea(t, repo)
	h := NewToggleVoteHandler(repo, nil, nil, logger.Nop())

	repo.ContendNext(1)
	_, err := h.Handle(context.Background(), ToggleVoteCommand{IdeaID: idea.ID, UserID: "bob"})
	assert.True(t, shared.IsContention(err))

	res, err := h.Handle(context.Background(), ToggleVoteCommand{IdeaID: idea.ID, UserID: "bob"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.VoteCount)
}

func TestToggleVote_RetriesContentionWhenEnabled(t *testing.T) {
	repo := memory.NewRoadmap()
	idea := seedIdea(t, repo)
	h := NewToggleVoteHandler(repo, nil, nil, logger.Nop()).WithContentionRetry(fastRetrier())

	repo.ContendNext(2)
	res, err := h.Handle(context.Background(), ToggleVoteCommand{IdeaID: idea.ID, UserID: "bob"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.VoteCount)

	repo.ContendNext(10)
	_, err = h.Handle(context.Background(), ToggleVoteCommand{IdeaID: idea.ID, UserID: "bob"})
	assert.True(t, shared.IsContention(err))
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) InvalidateFeed(context.Context) error {
	c.calls++
	return nil
}

func TestToggleVote_InvalidatesFeedOnCommit(t *testing.T) {
	repo := memory.NewRoadmap()
	idea := seedIdea(t, repo)
	feed := &countingInvalidator{}
	h := NewToggleVoteHandler(repo, nil, nil, logger.Nop()).WithFeedCache(feed)

	_, err := h.Handle(context.Background(), ToggleVoteCommand{IdeaID: idea.ID, UserID: "bob"})
	require.NoError(t, err)
	assert.Equal(t, 1, feed.calls)

	_, err = h.Handle(context.Background(), ToggleVoteCommand{IdeaID: "missing", UserID: "bob"})
	require.Error(t, err)
	assert.Equal(t, 1, feed.calls, "failed toggles leave the cache alone")
}

func TestToggleVote_Errors(t *testing.T) {
	h := NewToggleVoteHandler(memory.NewRoadmap(), nil, nil, logger.Nop())

	_, err := h.Handle(context.Background(), ToggleVoteCommand{IdeaID: "missing", UserID: "bob"})
	assert.True(t, shared.IsNotFound(err))

	_, err = h.Handle(context.Background(), ToggleVoteCommand{IdeaID: "", UserID: "bob"})
	assert.True(t, shared.IsValidation(err))
}

func TestCreateIdea_ValidationBeforeIO(t *testing.T) {
	repo := memory.NewRoadmap()
	_, err := NewCreateIdeaHandler(repo, nil, nil).Handle(context.Background(), CreateIdeaCommand{
		Title: "ok", Description: "long enough text", Audience: "candidate", Status: "planned", CreatedByUID: "alice",
	})
	assert.True(t, shared.IsValidation(err))

	ideas, _ := repo.List(context.Background(), 0)
	assert.Empty(t, ideas)
}
