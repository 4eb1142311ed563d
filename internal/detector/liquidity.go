package detector

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/polyinsider/hunter/internal/store"
)

// BookSource fetches order books by outcome token ID.
type BookSource interface {
	OrderBook(ctx context.Context, assetID string) (*store.OrderBook, error)
}

// LiquidityOracle computes how much of a market's book depth a trade represents.
type LiquidityOracle struct {
	books   BookSource
	timeout time.Duration
}

// NewLiquidityOracle creates a LiquidityOracle. Each fetch runs under timeout.
func NewLiquidityOracle(books BookSource, timeout time.Duration) *LiquidityOracle {
	return &LiquidityOracle{books: books, timeout: timeout}
}

// Percentage returns tradeValue as a percent of the asset's total book depth,
// in [0, 100]. Liquidity is advisory: any failure yields 0.
func (o *LiquidityOracle) Percentage(ctx context.Context, assetID string, tradeValue float64) float64 {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	book, err := o.books.OrderBook(ctx, assetID)
	if err != nil {
		slog.Debug("liquidity_fetch_failed", "asset", truncateID(assetID), "error", err)
		return 0
	}

	return LiquidityPercent(book, tradeValue)
}

// LiquidityPercent returns min(100, tradeValue / depth * 100), or 0 when
// the book has no positive depth.
func LiquidityPercent(book *store.OrderBook, tradeValue float64) float64 {
	total := book.TotalDepth().InexactFloat64()
	if total <= 0 || tradeValue <= 0 || math.IsNaN(tradeValue) {
		return 0
	}

	pct := tradeValue / total * 100
	return math.Min(pct, 100)
}
