package registry

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/polyinsider/hunter/internal/store"
)

// Memory is an in-process Registry used for development and tests.
type Memory struct {
	mu           sync.RWMutex
	subs         map[int64]store.Subscriber
	zeroDisables bool
}

// NewMemory creates an empty in-memory registry. zeroDisables selects the
// interpretation of a liquidity threshold of exactly 0.
func NewMemory(zeroDisables bool) *Memory {
	return &Memory{
		subs:         make(map[int64]store.Subscriber),
		zeroDisables: zeroDisables,
	}
}

// Put stores a subscriber as-is.
func (m *Memory) Put(s store.Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[s.ID] = s
}

// CandidatesFor returns active subscribers whose budget or liquidity threshold the trade meets.
func (m *Memory) CandidatesFor(ctx context.Context, tradeValue, liquidityPercent float64) ([]store.Subscriber, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []store.Subscriber
	for _, s := range m.subs {
		if s.Qualifies(tradeValue, liquidityPercent, m.zeroDisables) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MarkBlocked deactivates a subscriber that can no longer be reached. Repeated calls are no-ops.
func (m *Memory) MarkBlocked(ctx context.Context, id int64) error {
	return m.SetMonitoring(ctx, id, false)
}

// Get returns the subscriber with id, or ErrNotFound.
func (m *Memory) Get(ctx context.Context, id int64) (store.Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.subs[id]
	if !ok {
		return store.Subscriber{}, ErrNotFound
	}
	return s, nil
}

// SaveSettings stores all thresholds at once and re-activates monitoring.
func (m *Memory) SaveSettings(ctx context.Context, id int64, s Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.subs[id] = store.Subscriber{
		ID:                 id,
		BudgetThreshold:    s.BudgetThreshold,
		LiquidityThreshold: s.LiquidityThreshold,
		MaxMarketsTraded:   s.MaxMarketsTraded,
		MonitoringActive:   true,
	}
	return nil
}

// SetBudgetThreshold updates the trade-value threshold, creating the row if needed.
func (m *Memory) SetBudgetThreshold(ctx context.Context, id int64, usd float64) error {
	return m.update(id, func(s *store.Subscriber) { s.BudgetThreshold = usd })
}

// SetLiquidityThreshold updates the liquidity percent threshold, creating the row if needed.
func (m *Memory) SetLiquidityThreshold(ctx context.Context, id int64, percent float64) error {
	return m.update(id, func(s *store.Subscriber) { s.LiquidityThreshold = percent })
}

// SetMaxMarketsTraded updates the trader activity cap, creating the row if needed.
func (m *Memory) SetMaxMarketsTraded(ctx context.Context, id int64, max int) error {
	return m.update(id, func(s *store.Subscriber) { s.MaxMarketsTraded = max })
}

// SetMonitoring pauses or resumes alerts. A missing subscriber is left untouched.
func (m *Memory) SetMonitoring(ctx context.Context, id int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Updating a missing row is a no-op, as with the SQL UPDATE.
	if s, ok := m.subs[id]; ok {
		s.MonitoringActive = active
		m.subs[id] = s
	}
	return nil
}

// update applies fn to a subscriber, creating one with column defaults first.
func (m *Memory) update(id int64, fn func(s *store.Subscriber)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.subs[id]
	if !ok {
		s = store.Subscriber{
			ID:                 id,
			BudgetThreshold:    math.Inf(1),
			LiquidityThreshold: store.DefaultLiquidityThreshold,
			MonitoringActive:   true,
		}
	}
	fn(&s)
	m.subs[id] = s
	return nil
}
