package ui

import (
	"testing"
	"time"

	"github.com/polyinsider/hunter/internal/metrics"
	"github.com/polyinsider/hunter/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLargestTrades(t *testing.T) {
	recent := []store.TradeEvent{
		{Title: "a", Size: 10, Price: 0.5},
		{Title: "b", Size: 1000, Price: 0.9},
		{Title: "c", Size: 100, Price: 0.5},
	}

	top := largestTrades(recent, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "b", top[0].Title)
	assert.Equal(t, "c", top[1].Title)
	assert.Equal(t, "a", recent[0].Title, "input order is preserved")
}

func TestMostActive(t *testing.T) {
	markets := map[string]*metrics.MarketActivity{
		"x": {Title: "quiet", TradeCount: 1},
		"y": {Title: "busy", TradeCount: 50},
		"z": {Title: "alerted", TradeCount: 3, Alerts: 2},
	}

	got := mostActive(markets, 10)
	require.Len(t, got, 3)
	assert.Equal(t, "alerted", got[0].Title)
	assert.Equal(t, "busy", got[1].Title)
	assert.Len(t, mostActive(markets, 1), 1)
}

func TestTradeRow(t *testing.T) {
	ts := time.Date(2025, 3, 1, 14, 5, 9, 0, time.UTC)
	row := tradeRow(store.TradeEvent{
		Title:       "Will it rain?",
		Outcome:     "Yes",
		Side:        store.SideBuy,
		Size:        200,
		Price:       0.25,
		ProxyWallet: "0x1234567890abcdef",
		Timestamp:   ts,
	})
	assert.Equal(t, []string{"14:05:09", "Will it rain?", "Yes", "BUY", "0.250", "$50", "0x1234...cdef"}, row)
}

func TestTraderLabel(t *testing.T) {
	tests := []struct {
		name  string
		trade store.TradeEvent
		want  string
	}{
		{"profile name", store.TradeEvent{Name: "whale", Pseudonym: "Bright-Otter", ProxyWallet: "0x1234567890abcdef"}, "whale"},
		{"pseudonym", store.TradeEvent{Pseudonym: "Bright-Otter", ProxyWallet: "0x1234567890abcdef"}, "Bright-Otter"},
		{"wallet", store.TradeEvent{ProxyWallet: "0x1234567890abcdef"}, "0x1234...cdef"},
		{"anonymous", store.TradeEvent{}, "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, traderLabel(tt.trade))
		})
	}
}

func TestFormatAlert(t *testing.T) {
	main, secondary := formatAlert(store.Alert{
		SubscriberID: 42,
		Title:        "Market",
		Wallet:       "0xabc",
		ValueUSD:     5000,
		Liquidity:    12.5,
		Trigger:      store.TriggerBudget | store.TriggerLiquidity,
		Result:       store.PermanentFailure,
		SentAt:       time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC),
	})
	assert.Contains(t, main, "09:00:00")
	assert.Contains(t, main, "→ 42")
	assert.Contains(t, secondary, "$5000.00 | 12.50% | budget + liquidity | permanent_failure")
}

func TestStatsText(t *testing.T) {
	out := statsText(metrics.MetricsSnapshot{
		WebSocketStatus:  "connected",
		ChannelBufferCap: 100,
		SkippedByReason:  map[string]int64{metrics.SkipActivityCap: 3},
		AlertsByResult:   map[string]int64{"delivered": 7},
	})
	assert.Contains(t, out, "[green]connected[-]")
	assert.Contains(t, out, "Activity cap: 3")
	assert.Contains(t, out, "Delivered: [green]7[-]")
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", truncateText("short", 10))
	assert.Equal(t, "abcdefg...", truncateText("abcdefghijklmnop", 10))
}
