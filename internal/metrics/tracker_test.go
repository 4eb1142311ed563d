package metrics

import (
	"testing"
	"time"

	"github.com/polyinsider/hunter/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsTracker(reg)

	buy := store.TradeEvent{ConditionID: "0xc1", Title: "Will it rain?", Side: store.SideBuy, Size: 100, Price: 0.5}
	sell := store.TradeEvent{ConditionID: "0xc1", Title: "Will it rain?", Side: store.SideSell, Size: 10, Price: 0.5}

	m.RecordTrade(buy)
	m.RecordTrade(sell)
	m.RecordEvaluation(3, 12.5)
	m.RecordSkip(SkipActivityCap)
	m.RecordSkip(SkipHistoryError)
	m.RecordAlert(store.Alert{Title: "Will it rain?", Result: store.Delivered}, 20*time.Millisecond)
	m.RecordAlert(store.Alert{Title: "Will it rain?", Result: store.PermanentFailure}, 10*time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.TradesTotal)
	assert.Equal(t, int64(1), snap.BuyTrades)
	assert.Equal(t, int64(3), snap.Candidates)
	assert.Equal(t, int64(1), snap.SkippedByReason[SkipActivityCap])
	assert.Equal(t, int64(1), snap.AlertsByResult["delivered"])
	assert.Equal(t, int64(1), snap.AlertsByResult["permanent_failure"])

	require.Contains(t, snap.MarketActivities, "0xc1")
	activity := snap.MarketActivities["0xc1"]
	assert.Equal(t, 2, activity.TradeCount)
	assert.InDelta(t, 55.0, activity.Volume, 1e-9)
	assert.Equal(t, 2, activity.Alerts)

	require.Len(t, snap.RecentTrades, 2)
	assert.Equal(t, store.SideSell, snap.RecentTrades[0].Side)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.prom.alerts.WithLabelValues("delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.prom.trades.WithLabelValues(store.SideBuy)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.prom.evaluations))
}

func TestRecentTradesCapped(t *testing.T) {
	m := NewMetricsTracker(nil)
	for i := 0; i < recentTradesCap+10; i++ {
		m.RecordTrade(store.TradeEvent{Title: "m", Side: store.SideBuy})
	}
	assert.Len(t, m.Snapshot().RecentTrades, recentTradesCap)
}

func TestWebSocketStatus(t *testing.T) {
	m := NewMetricsTracker(nil)
	m.SetWebSocketStatus("connected")
	assert.Equal(t, "connected", m.Snapshot().WebSocketStatus)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.prom.wsConnected))

	m.SetWebSocketStatus("reconnecting")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.prom.wsConnected))
}

func TestCleanup(t *testing.T) {
	m := NewMetricsTracker(nil)
	m.RecordTrade(store.TradeEvent{ConditionID: "old", Title: "old"})
	m.mu.Lock()
	m.marketActivity["old"].LastUpdate = time.Now().Add(-2 * activityTTL)
	m.mu.Unlock()

	m.Cleanup()
	assert.Empty(t, m.Snapshot().MarketActivities)
}
