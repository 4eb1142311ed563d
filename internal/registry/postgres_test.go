package registry

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The integration test needs a disposable database; it creates the table itself.
const testSchema = `
CREATE SCHEMA IF NOT EXISTS polymarket;
CREATE TABLE IF NOT EXISTS polymarket.user_budgets (
    user_id BIGINT PRIMARY KEY,
    budget_threshold NUMERIC,
    liquidity_threshold NUMERIC DEFAULT 5,
    max_markets_traded INT DEFAULT 0,
    is_monitoring_active BOOLEAN DEFAULT TRUE
);
TRUNCATE polymarket.user_budgets;
`

func TestPostgresRegistry(t *testing.T) {
	dsn := os.Getenv("REGISTRY_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("REGISTRY_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := Connect(ctx, dsn)
	if err != nil {
		t.Skipf("PostgreSQL not available: %v", err)
	}
	defer pool.Close()

	_, err = pool.Exec(ctx, testSchema)
	require.NoError(t, err)

	r := NewPostgres(pool, false)

	require.NoError(t, r.SaveSettings(ctx, 1, Settings{BudgetThreshold: 4000, LiquidityThreshold: 50}))
	require.NoError(t, r.SaveSettings(ctx, 2, Settings{BudgetThreshold: 9000, LiquidityThreshold: 10}))
	require.NoError(t, r.SaveSettings(ctx, 3, Settings{BudgetThreshold: 9000, LiquidityThreshold: 50, MaxMarketsTraded: 50}))

	subs, err := r.CandidatesFor(ctx, 5000, 12.5)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2}, ids(subs))

	// Blocking is idempotent and excludes the subscriber from later queries.
	require.NoError(t, r.MarkBlocked(ctx, 1))
	require.NoError(t, r.MarkBlocked(ctx, 1))
	s, err := r.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, s.MonitoringActive)

	subs, err = r.CandidatesFor(ctx, 5000, 12.5)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{2}, ids(subs))

	// Single-column upsert creates a row with defaults; NULL budget never matches.
	require.NoError(t, r.SetMaxMarketsTraded(ctx, 4, 7))
	s, err = r.Get(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, 7, s.MaxMarketsTraded)
	assert.Equal(t, 5.0, s.LiquidityThreshold)
	assert.True(t, s.MonitoringActive)

	_, err = r.Get(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	zero := NewPostgres(pool, true)
	require.NoError(t, r.SaveSettings(ctx, 5, Settings{BudgetThreshold: 1e9, LiquidityThreshold: 0}))
	subs, err = zero.CandidatesFor(ctx, 1, 0)
	require.NoError(t, err)
	assert.NotContains(t, ids(subs), int64(5))

	subs, err = r.CandidatesFor(ctx, 1, 0)
	require.NoError(t, err)
	assert.Contains(t, ids(subs), int64(5))
}
