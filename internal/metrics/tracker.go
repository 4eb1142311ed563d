// Package metrics provides real-time metrics tracking for the pipeline.
package metrics

import (
	"sync"
	"time"

	"github.com/polyinsider/hunter/internal/store"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	recentTradesCap = 100
	recentAlertsCap = 50
	rateWindow      = 60 * time.Second
	activityTTL     = 60 * time.Minute
)

// Skip reasons reported by the evaluator.
const (
	SkipActivityCap  = "activity_cap"
	SkipHistoryError = "history_error"
	SkipNoTrigger    = "no_trigger"
)

// MarketActivity tracks activity for a single market.
type MarketActivity struct {
	Title      string
	EventSlug  string
	TradeCount int
	Volume     float64
	LastPrice  float64
	Alerts     int
	LastUpdate time.Time
}

// MetricsSnapshot is a point-in-time view of metrics.
type MetricsSnapshot struct {
	TradesTotal       int64
	BuyTrades         int64
	Evaluations       int64
	Candidates        int64
	SkippedByReason   map[string]int64
	AlertsByResult    map[string]int64
	RegistryErrors    int64
	TradeRate         float64 // trades per second
	MarketActivities  map[string]*MarketActivity
	RecentTrades      []store.TradeEvent
	RecentAlerts      []store.Alert
	Uptime            time.Duration
	WebSocketStatus   string
	ChannelBufferUsed int
	ChannelBufferCap  int
}

// MetricsTracker provides thread-safe metrics tracking and mirrors
// counters into Prometheus collectors.
type MetricsTracker struct {
	mu                sync.RWMutex
	tradesTotal       int64
	buyTrades         int64
	evaluations       int64
	candidates        int64
	registryErrors    int64
	skipped           map[string]int64
	alerts            map[string]int64
	marketActivity    map[string]*MarketActivity
	recentTrades      []store.TradeEvent
	recentAlerts      []store.Alert
	startTime         time.Time
	tradeTimestamps   []time.Time // for rate calculation
	wsStatus          string
	channelBufferUsed int
	channelBufferCap  int

	prom *promCollectors
}

// NewMetricsTracker creates a new MetricsTracker registering its collectors on reg.
// A nil reg keeps the collectors unregistered.
func NewMetricsTracker(reg prometheus.Registerer) *MetricsTracker {
	return &MetricsTracker{
		skipped:         make(map[string]int64),
		alerts:          make(map[string]int64),
		marketActivity:  make(map[string]*MarketActivity),
		recentTrades:    make([]store.TradeEvent, 0, recentTradesCap),
		recentAlerts:    make([]store.Alert, 0, recentAlertsCap),
		startTime:       time.Now(),
		tradeTimestamps: make([]time.Time, 0, 1000),
		wsStatus:        "disconnected",
		prom:            newPromCollectors(reg),
	}
}

// RecordTrade records an inbound trade event.
func (m *MetricsTracker) RecordTrade(event store.TradeEvent) {
	m.prom.trades.WithLabelValues(event.Side).Inc()

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	m.tradesTotal++
	if event.IsBuy() {
		m.buyTrades++
	}

	m.tradeTimestamps = append(m.tradeTimestamps, now)
	cutoff := now.Add(-rateWindow)
	validIdx := 0
	for i, ts := range m.tradeTimestamps {
		if ts.After(cutoff) {
			validIdx = i
			break
		}
	}
	if validIdx > 0 {
		m.tradeTimestamps = m.tradeTimestamps[validIdx:]
	}

	m.recentTrades = prepend(m.recentTrades, event, recentTradesCap)

	key := marketKey(event)
	activity, exists := m.marketActivity[key]
	if !exists {
		activity = &MarketActivity{Title: event.Title, EventSlug: event.EventSlug}
		m.marketActivity[key] = activity
	}
	activity.TradeCount++
	activity.Volume += event.Value()
	activity.LastPrice = event.Price
	activity.LastUpdate = now
}

// RecordEvaluation records one evaluated BUY event and its candidate count.
func (m *MetricsTracker) RecordEvaluation(candidates int, liquidityPercent float64) {
	m.prom.evaluations.Inc()
	m.prom.candidates.Add(float64(candidates))
	m.prom.liquidity.Observe(liquidityPercent)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.evaluations++
	m.candidates += int64(candidates)
}

// RecordRegistryError records a failed candidate query.
func (m *MetricsTracker) RecordRegistryError() {
	m.prom.registryErrors.Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.registryErrors++
}

// RecordSkip records a candidate that was not alerted.
func (m *MetricsTracker) RecordSkip(reason string) {
	m.prom.skipped.WithLabelValues(reason).Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.skipped[reason]++
}

// RecordAlert records a dispatch attempt.
func (m *MetricsTracker) RecordAlert(alert store.Alert, latency time.Duration) {
	result := alert.Result.String()
	m.prom.alerts.WithLabelValues(result).Inc()
	m.prom.sendLatency.Observe(latency.Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts[result]++
	m.recentAlerts = prepend(m.recentAlerts, alert, recentAlertsCap)

	for _, activity := range m.marketActivity {
		if activity.Title == alert.Title {
			activity.Alerts++
			break
		}
	}
}

// SetWebSocketStatus sets the WebSocket connection status.
func (m *MetricsTracker) SetWebSocketStatus(status string) {
	connected := 0.0
	if status == "connected" {
		connected = 1
	}
	m.prom.wsConnected.Set(connected)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.wsStatus = status
}

// SetChannelBuffer sets the channel buffer usage.
func (m *MetricsTracker) SetChannelBuffer(used, capacity int) {
	m.prom.queueDepth.Set(float64(used))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.channelBufferUsed = used
	m.channelBufferCap = capacity
}

// Snapshot returns a point-in-time snapshot of metrics.
func (m *MetricsTracker) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Calculate trade rate (trades per second over last 60s)
	tradeRate := 0.0
	if len(m.tradeTimestamps) > 0 {
		duration := time.Since(m.tradeTimestamps[0]).Seconds()
		if duration > 0 {
			tradeRate = float64(len(m.tradeTimestamps)) / duration
		}
	}

	activitiesCopy := make(map[string]*MarketActivity, len(m.marketActivity))
	for k, v := range m.marketActivity {
		activityCopy := *v
		activitiesCopy[k] = &activityCopy
	}

	return MetricsSnapshot{
		TradesTotal:       m.tradesTotal,
		BuyTrades:         m.buyTrades,
		Evaluations:       m.evaluations,
		Candidates:        m.candidates,
		SkippedByReason:   copyCounts(m.skipped),
		AlertsByResult:    copyCounts(m.alerts),
		RegistryErrors:    m.registryErrors,
		TradeRate:         tradeRate,
		MarketActivities:  activitiesCopy,
		RecentTrades:      append([]store.TradeEvent(nil), m.recentTrades...),
		RecentAlerts:      append([]store.Alert(nil), m.recentAlerts...),
		Uptime:            time.Since(m.startTime),
		WebSocketStatus:   m.wsStatus,
		ChannelBufferUsed: m.channelBufferUsed,
		ChannelBufferCap:  m.channelBufferCap,
	}
}

// Cleanup removes stale data from the tracker.
func (m *MetricsTracker) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-activityTTL)
	for key, activity := range m.marketActivity {
		if activity.LastUpdate.Before(cutoff) {
			delete(m.marketActivity, key)
		}
	}
}

func marketKey(event store.TradeEvent) string {
	if event.ConditionID != "" {
		return event.ConditionID
	}
	return event.Title
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// prepend puts item at the front of list, trimming to maxLen.
func prepend[T any](list []T, item T, maxLen int) []T {
	list = append([]T{item}, list...)
	if len(list) > maxLen {
		list = list[:maxLen]
	}
	return list
}
