// Package ingest handles the Polymarket real-time feed connection and message parsing.
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/polyinsider/hunter/internal/store"
)

// Feed topics and message types carrying trades.
const (
	TopicActivity = "activity"
	TypeTrades    = "trades"
)

// FeedMessage is the envelope of every real-time data message.
type FeedMessage struct {
	Topic     string          `json:"topic"`
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// TradePayload is the payload of an activity/trades message.
type TradePayload struct {
	Asset           string    `json:"asset"`
	ConditionID     string    `json:"conditionId"`
	EventSlug       string    `json:"eventSlug"`
	Slug            string    `json:"slug"`
	Outcome         string    `json:"outcome"`
	Price           flexFloat `json:"price"`
	Size            flexFloat `json:"size"`
	Side            string    `json:"side"`
	ProxyWallet     string    `json:"proxyWallet"`
	Title           string    `json:"title"`
	Name            string    `json:"name"`
	Pseudonym       string    `json:"pseudonym"`
	TransactionHash string    `json:"transactionHash"`
	Timestamp       int64     `json:"timestamp"`
}

// flexFloat accepts both JSON numbers and numeric strings.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", b, err)
	}
	*f = flexFloat(v)
	return nil
}

// ParseMessage parses a raw feed message. It returns the trade and true
// for activity/trades messages with a usable size and price, and the
// message kind for logging otherwise.
func ParseMessage(data []byte) (store.TradeEvent, string, bool, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return store.TradeEvent{}, "", false, nil
	}
	// Keepalive replies are plain text.
	if trimmed[0] != '{' {
		return store.TradeEvent{}, strings.ToLower(string(trimmed)), false, nil
	}

	var msg FeedMessage
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return store.TradeEvent{}, "", false, fmt.Errorf("failed to unmarshal message: %w", err)
	}

	kind := msg.Topic + "/" + msg.Type
	if msg.Topic != TopicActivity || msg.Type != TypeTrades || len(msg.Payload) == 0 {
		return store.TradeEvent{}, kind, false, nil
	}

	var p TradePayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return store.TradeEvent{}, kind, false, fmt.Errorf("failed to parse trade payload: %w", err)
	}

	// Events without a positive size and price carry no tradable value.
	if p.Size <= 0 || p.Price <= 0 {
		return store.TradeEvent{}, kind, false, nil
	}

	return convertPayload(p, msg.Timestamp), kind, true, nil
}

// convertPayload converts a TradePayload to store.TradeEvent.
func convertPayload(p TradePayload, envelopeTS int64) store.TradeEvent {
	return store.TradeEvent{
		AssetID:         p.Asset,
		ConditionID:     p.ConditionID,
		Side:            strings.ToUpper(p.Side),
		Size:            float64(p.Size),
		Price:           float64(p.Price),
		Outcome:         p.Outcome,
		Title:           p.Title,
		EventSlug:       p.EventSlug,
		MarketSlug:      p.Slug,
		ProxyWallet:     p.ProxyWallet,
		Name:            p.Name,
		Pseudonym:       p.Pseudonym,
		TransactionHash: p.TransactionHash,
		Timestamp:       parseTimestamp(p.Timestamp, envelopeTS),
	}
}

// parseTimestamp takes the first non-zero Unix timestamp, in seconds or
// milliseconds.
func parseTimestamp(values ...int64) time.Time {
	for _, ts := range values {
		if ts <= 0 {
			continue
		}
		if ts > 1e12 {
			return time.UnixMilli(ts)
		}
		return time.Unix(ts, 0)
	}
	return time.Now()
}
