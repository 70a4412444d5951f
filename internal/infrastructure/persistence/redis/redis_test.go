package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/prepwise/progression-engine/internal/application/query"
	"github.com/prepwise/progression-engine/internal/domain/roadmap"
	"github.com/prepwise/progression-engine/pkg/circuitbreaker"
)

func TestKeys(t *testing.T) {
	k := NewKeys("prepwise")
	assert.Equal(t, "prepwise:progression:alice", k.Progression("alice"))
	assert.Equal(t, "prepwise:roadmap:feed:100", k.Feed(100))
	assert.Equal(t, "prepwise:roadmap:feed:*", k.FeedPattern())
	assert.Equal(t, "prepwise:pubsub:roadmap.votes", k.Channel(TopicVotes))

	bare := NewKeys("")
	assert.Equal(t, "progression:alice", bare.Progression("alice"))
}

func TestCodec(t *testing.T) {
	in := roadmap.VoteUpdate{IdeaID: "idea-1", VoteCount: 4, At: time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)}
	data, err := encode(in)
	require.NoError(t, err)

	var out roadmap.VoteUpdate
	require.NoError(t, decode(data, &out))
	assert.Equal(t, in.IdeaID, out.IdeaID)
	assert.Equal(t, in.VoteCount, out.VoteCount)
	assert.True(t, in.At.Equal(out.At))

	assert.ErrorIs(t, decode([]byte("{not json"), &out), ErrCacheSerialization)
}

func TestCache_ArgumentChecks(t *testing.T) {
	c := NewCacheFromClient(goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1"}), "t")
	ctx := context.Background()

	assert.ErrorIs(t, c.Set(ctx, "", 1, time.Second), ErrCacheKeyEmpty)
	assert.ErrorIs(t, c.Set(ctx, "k", nil, time.Second), ErrCacheNilValue)
	assert.ErrorIs(t, c.Set(ctx, "k", 1, -time.Second), ErrCacheInvalidTTL)
	assert.ErrorIs(t, c.Get(ctx, "", new(int)), ErrCacheKeyEmpty)
	assert.ErrorIs(t, c.DeleteByPattern(ctx, ""), ErrCacheKeyEmpty)
	assert.NoError(t, c.Delete(ctx))

	_, _, err := NewLocker(c).TryLock(ctx, "", time.Second)
	assert.ErrorIs(t, err, ErrCacheKeyEmpty)
}

func TestCache_BreakerShortCircuitsOutage(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	breaker := circuitbreaker.ForCache("redis", IsOutage, nil)
	c := NewCacheFromClient(client, "t").WithBreaker(breaker)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := c.Get(ctx, "k", new(int))
		require.Error(t, err)
		assert.False(t, circuitbreaker.IsRejected(err))
	}
	require.Equal(t, circuitbreaker.StateOpen, breaker.State())

	assert.ErrorIs(t, c.Get(ctx, "k", new(int)), circuitbreaker.ErrOpen)
	assert.ErrorIs(t, c.Set(ctx, "k", 1, time.Second), circuitbreaker.ErrOpen)
	assert.ErrorIs(t, c.Delete(ctx, "k"), circuitbreaker.ErrOpen)

	// argument errors never reach the breaker
	assert.ErrorIs(t, c.Set(ctx, "", 1, time.Second), ErrCacheKeyEmpty)
}

func TestIsOutage(t *testing.T) {
	assert.False(t, IsOutage(nil))
	assert.False(t, IsOutage(ErrCacheMiss))
	assert.False(t, IsOutage(fmt.Errorf("%w: bad json", ErrCacheSerialization)))
	assert.False(t, IsOutage(context.Canceled))
	assert.True(t, IsOutage(context.DeadlineExceeded))
	assert.True(t, IsOutage(ErrCacheConnection))
}

// setupRedis starts a throwaway Redis. Set INTEGRATION_TESTS=1 to run.
func setupRedis(t *testing.T) *Cache {
	t.Helper()
	if os.Getenv("INTEGRATION_TESTS") == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run against a Redis container")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := goredis.NewClient(&goredis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheFromClient(client, "test")
}

func TestIntegration_Caches(t *testing.T) {
	cache := setupRedis(t)
	ctx := context.Background()

	progression := NewProgressionCache(cache, 0)
	_, ok, err := progression.GetProgression(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	view := &query.ProgressionDTO{UserID: "alice", Title: "Apprentice", Badges: []string{"first_interview"}}
	require.NoError(t, progression.SetProgression(ctx, view))
	got, ok, err := progression.GetProgression(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Apprentice", got.Title)
	assert.Equal(t, []string{"first_interview"}, got.Badges)

	require.NoError(t, progression.InvalidateProgression(ctx, "alice"))
	_, ok, err = progression.GetProgression(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	feed := NewFeedCache(cache, 0)
	require.NoError(t, feed.SetFeed(ctx, 10, nil))
	require.NoError(t, feed.SetFeed(ctx, 100, []query.IdeaDTO{{ID: "idea-1", VoteCount: 2}}))

	empty, ok, err := feed.GetFeed(ctx, 10)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, empty)

	require.NoError(t, feed.InvalidateFeed(ctx))
	for _, limit := range []int{10, 100} {
		_, ok, err := feed.GetFeed(ctx, limit)
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestIntegration_LiveFeed(t *testing.T) {
	cache := setupRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	live := NewLiveFeed(cache, nil)
	updates, err := live.Subscribe(ctx)
	require.NoError(t, err)

	want := roadmap.VoteUpdate{IdeaID: "idea-1", VoteCount: 1, At: time.Now().UTC().Truncate(time.Second)}
	require.NoError(t, live.Publish(ctx, want))

	select {
	case got := <-updates:
		assert.Equal(t, want.IdeaID, got.IdeaID)
		assert.Equal(t, want.VoteCount, got.VoteCount)
	case <-time.After(5 * time.Second):
		t.Fatal("no update received")
	}

	cancel()
	require.Eventually(t, func() bool {
		_, open := <-updates
		return !open
	}, 5*time.Second, 10*time.Millisecond)
}

func TestIntegration_Locker(t *testing.T) {
	cache := setupRedis(t)
	ctx := context.Background()
	locker := NewLocker(cache)

	release, ok, err := locker.TryLock(ctx, "replay_rewards", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, "replay_rewards", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, release(ctx))
	_, ok, err = locker.TryLock(ctx, "replay_rewards", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
