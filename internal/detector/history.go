package detector

import (
	"context"
	"fmt"
	"time"
)

// TradedSource reports a wallet's lifetime distinct-market count.
type TradedSource interface {
	MarketsTraded(ctx context.Context, wallet string) (int, error)
}

// HistoryGate looks up trader activity for the activity cap.
// Unlike the liquidity oracle it has no fallback: errors reach the caller.
type HistoryGate struct {
	source  TradedSource
	timeout time.Duration
}

// NewHistoryGate creates a HistoryGate. Each fetch runs under timeout.
func NewHistoryGate(source TradedSource, timeout time.Duration) *HistoryGate {
	return &HistoryGate{source: source, timeout: timeout}
}

// MarketsTraded returns how many distinct markets wallet has traded.
func (g *HistoryGate) MarketsTraded(ctx context.Context, wallet string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	n, err := g.source.MarketsTraded(ctx, wallet)
	if err != nil {
		return 0, fmt.Errorf("markets traded for %s: %w", wallet, err)
	}
	return n, nil
}

// ExceedsActivityCap reports whether a trader with traded markets is too
// active for a subscriber capped at maxMarkets. A cap of 0 is unlimited.
func ExceedsActivityCap(maxMarkets, traded int) bool {
	return maxMarkets > 0 && traded > maxMarkets
}
