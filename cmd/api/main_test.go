package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepwise/progression-engine/config"
	"github.com/prepwise/progression-engine/internal/application/command"
	"github.com/prepwise/progression-engine/internal/domain/shared"
	"github.com/prepwise/progression-engine/internal/interface/http/handlers"
	"github.com/prepwise/progression-engine/pkg/logger"
	"github.com/prepwise/progression-engine/pkg/timeutil"
)

func postgresCfg(url string, failOpen bool) *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{
			Storage:         config.StoragePostgres,
			URL:             url,
			MaxConns:        2,
			TxRetryAttempts: 4,
		},
		Quota: config.QuotaConfig{FailOpen: failOpen},
	}
}

func TestOpenStores_DatabaseDownWithFailOpenQuota(t *testing.T) {
	urls := map[string]string{
		"missing url":      "",
		"unreachable host": "postgres://prep:pw@127.0.0.1:1/prep?sslmode=disable&connect_timeout=2",
	}
	for name, url := range urls {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cfg := postgresCfg(url, true)

			st, err := openStores(ctx, cfg, timeutil.SystemClock{}, logger.Nop())
			require.NoError(t, err)
			require.Error(t, st.unavailable)
			defer st.close()

			services := newServices(cfg, st, readModels{}, shared.NopPublisher{}, timeutil.SystemClock{}, logger.Nop())
			require.NotNil(t, services.Quota)

			for i := 0; i < 3; i++ {
				res, err := services.Quota.Handle(ctx, command.CheckQuotaCommand{UserID: "alice"})
				require.NoError(t, err)
				assert.True(t, res.Allowed)
				assert.True(t, res.FailOpen)
			}

			assert.Nil(t, services.Sessions)
			assert.Nil(t, services.Progression)
			assert.Nil(t, services.QuotaStatus)
			assert.Nil(t, services.Vote)
			assert.Nil(t, services.Feed)

			health := handlers.NewCompositeHealthChecker("test")
			registerStoreChecks(health, st)
			status := health.Check(ctx)
			assert.True(t, status.Ready)
			assert.True(t, status.Degraded)
			assert.False(t, status.Checks["postgres"].Healthy)
		})
	}
}

func TestOpenStores_DatabaseDownFailClosedExits(t *testing.T) {
	_, err := openStores(context.Background(), postgresCfg("", false), timeutil.SystemClock{}, logger.Nop())
	require.Error(t, err)
	assert.True(t, shared.IsConfiguration(err))
}

func TestNewServices_MemoryStorage(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		Database: config.DatabaseConfig{Storage: config.StorageMemory, SeedUsers: []string{"alice"}, TxRetryAttempts: 1},
		Quota:    config.QuotaConfig{FailOpen: false},
	}

	st, err := openStores(ctx, cfg, timeutil.SystemClock{}, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, st.unavailable)

	services := newServices(cfg, st, readModels{}, shared.NopPublisher{}, timeutil.SystemClock{}, logger.Nop())
	assert.NotNil(t, services.Sessions)
	assert.NotNil(t, services.Progression)
	assert.NotNil(t, services.QuotaStatus)
	assert.NotNil(t, services.CreateIdea)
	assert.NotNil(t, services.Vote)
	assert.NotNil(t, services.Feed)

	for i := 0; i < 2; i++ {
		res, err := services.Quota.Handle(ctx, command.CheckQuotaCommand{UserID: "alice"})
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.False(t, res.FailOpen)
	}
	denied, err := services.Quota.Handle(ctx, command.CheckQuotaCommand{UserID: "alice"})
	require.NoError(t, err)
	assert.False(t, denied.Allowed)
}
