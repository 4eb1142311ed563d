// Package registry stores subscribers and their alert thresholds.
package registry

import (
	"context"
	"errors"

	"github.com/polyinsider/hunter/internal/store"
)

// ErrNotFound is returned when a subscriber has no stored settings.
var ErrNotFound = errors.New("subscriber not found")

// Settings is the full set of user-editable thresholds.
type Settings struct {
	BudgetThreshold    float64
	LiquidityThreshold float64
	MaxMarketsTraded   int
}

// Registry is the subscriber store consumed by the pipeline and the command bot.
type Registry interface {
	// CandidatesFor returns active subscribers whose budget threshold is at most
	// tradeValue or whose liquidity threshold is at most liquidityPercent.
	CandidatesFor(ctx context.Context, tradeValue, liquidityPercent float64) ([]store.Subscriber, error)

	// MarkBlocked permanently deactivates monitoring. Idempotent.
	MarkBlocked(ctx context.Context, id int64) error

	Get(ctx context.Context, id int64) (store.Subscriber, error)

	// SaveSettings upserts all thresholds and re-activates monitoring.
	SaveSettings(ctx context.Context, id int64, s Settings) error

	SetBudgetThreshold(ctx context.Context, id int64, usd float64) error
	SetLiquidityThreshold(ctx context.Context, id int64, percent float64) error
	SetMaxMarketsTraded(ctx context.Context, id int64, max int) error
	SetMonitoring(ctx context.Context, id int64, active bool) error
}
