package ingest

import (
	"testing"
	"time"

	"github.com/polyinsider/hunter/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tradeMessage = `{
  "topic": "activity",
  "type": "trades",
  "timestamp": 1760000000123,
  "payload": {
    "asset": "7177216",
    "conditionId": "0xcond",
    "eventSlug": "fed-decision",
    "slug": "fed-cuts-rates",
    "outcome": "Yes",
    "price": 0.42,
    "size": 12000,
    "side": "BUY",
    "proxyWallet": "0xwallet",
    "title": "Fed cuts rates?",
    "name": "whale",
    "pseudonym": "Quiet-Otter",
    "transactionHash": "0xtx",
    "timestamp": 1760000000
  }
}`

func TestParseTradeMessage(t *testing.T) {
	ev, kind, ok, err := ParseMessage([]byte(tradeMessage))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "activity/trades", kind)

	assert.Equal(t, "7177216", ev.AssetID)
	assert.Equal(t, "0xcond", ev.ConditionID)
	assert.Equal(t, store.SideBuy, ev.Side)
	assert.InDelta(t, 12000, ev.Size, 1e-9)
	assert.InDelta(t, 0.42, ev.Price, 1e-9)
	assert.InDelta(t, 5040, ev.Value(), 1e-6)
	assert.Equal(t, "fed-decision", ev.EventSlug)
	assert.Equal(t, "fed-cuts-rates", ev.MarketSlug)
	assert.Equal(t, "0xwallet", ev.ProxyWallet)
	assert.Equal(t, "whale", ev.Name)
	assert.Equal(t, time.Unix(1760000000, 0), ev.Timestamp)
}

func TestParseStringNumbers(t *testing.T) {
	msg := `{"topic":"activity","type":"trades","payload":{"asset":"1","price":"0.5","size":"10","side":"sell"}}`
	ev, _, ok, err := ParseMessage([]byte(msg))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, store.SideSell, ev.Side)
	assert.InDelta(t, 5, ev.Value(), 1e-9)
}

func TestParseIgnoredMessages(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind string
	}{
		{"pong", "pong", "pong"},
		{"empty", "  ", ""},
		{"other topic", `{"topic":"comments","type":"comment_created","payload":{}}`, "comments/comment_created"},
		{"zero size", `{"topic":"activity","type":"trades","payload":{"price":0.5,"size":0}}`, "activity/trades"},
		{"zero price", `{"topic":"activity","type":"trades","payload":{"price":0,"size":10}}`, "activity/trades"},
		{"missing payload", `{"topic":"activity","type":"trades"}`, "activity/trades"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, kind, ok, err := ParseMessage([]byte(tt.raw))
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestParseMalformed(t *testing.T) {
	_, _, ok, err := ParseMessage([]byte(`{"topic":`))
	assert.Error(t, err)
	assert.False(t, ok)

	_, _, ok, err = ParseMessage([]byte(`{"topic":"activity","type":"trades","payload":{"price":"abc","size":1}}`))
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestParseTimestampFallback(t *testing.T) {
	assert.Equal(t, time.UnixMilli(1760000000123), parseTimestamp(0, 1760000000123))
	assert.WithinDuration(t, time.Now(), parseTimestamp(0, 0), time.Second)
}
