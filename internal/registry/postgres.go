package registry

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/polyinsider/hunter/internal/store"
)

// Table is the subscriber table. Its schema is managed outside this service.
const Table = "polymarket.user_budgets"

const (
	selectColumns = `user_id, budget_threshold, liquidity_threshold, max_markets_traded, is_monitoring_active`

	// $3 selects whether a liquidity threshold of 0 disables the liquidity trigger.
	candidatesQuery = `SELECT ` + selectColumns + ` FROM ` + Table + `
		WHERE is_monitoring_active = TRUE
		  AND (budget_threshold <= $1
		       OR (liquidity_threshold <= $2 AND (NOT $3::boolean OR liquidity_threshold > 0)))`

	getQuery = `SELECT ` + selectColumns + ` FROM ` + Table + ` WHERE user_id = $1`

	saveQuery = `INSERT INTO ` + Table + ` (user_id, budget_threshold, liquidity_threshold, max_markets_traded, is_monitoring_active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (user_id) DO UPDATE SET
		  budget_threshold = $2,
		  liquidity_threshold = $3,
		  max_markets_traded = $4,
		  is_monitoring_active = TRUE`

	setMonitoringQuery = `UPDATE ` + Table + ` SET is_monitoring_active = $2 WHERE user_id = $1`
)

// upsertColumn inserts a row with column defaults or updates a single column.
func upsertColumn(column string) string {
	return `INSERT INTO ` + Table + ` (user_id, ` + column + `) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET ` + column + ` = $2`
}

// Querier is the subset of pgxpool.Pool used by Postgres.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres is a Registry backed by the user_budgets table.
type Postgres struct {
	db           Querier
	zeroDisables bool
}

// NewPostgres creates a Registry over db.
func NewPostgres(db Querier, zeroDisables bool) *Postgres {
	return &Postgres{db: db, zeroDisables: zeroDisables}
}

// Connect opens a connection pool and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// CandidatesFor returns active subscribers whose budget or liquidity threshold the trade meets.
func (p *Postgres) CandidatesFor(ctx context.Context, tradeValue, liquidityPercent float64) ([]store.Subscriber, error) {
	rows, err := p.db.Query(ctx, candidatesQuery, tradeValue, liquidityPercent, p.zeroDisables)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}

	subs, err := pgx.CollectRows(rows, scanSubscriber)
	if err != nil {
		return nil, fmt.Errorf("scan candidates: %w", err)
	}
	return subs, nil
}

// MarkBlocked deactivates a subscriber that can no longer be reached. Repeated calls are no-ops.
func (p *Postgres) MarkBlocked(ctx context.Context, id int64) error {
	return p.SetMonitoring(ctx, id, false)
}

// Get returns the subscriber with id, or ErrNotFound.
func (p *Postgres) Get(ctx context.Context, id int64) (store.Subscriber, error) {
	rows, err := p.db.Query(ctx, getQuery, id)
	if err != nil {
		return store.Subscriber{}, fmt.Errorf("query subscriber %d: %w", id, err)
	}

	sub, err := pgx.CollectExactlyOneRow(rows, scanSubscriber)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Subscriber{}, ErrNotFound
	}
	if err != nil {
		return store.Subscriber{}, fmt.Errorf("scan subscriber %d: %w", id, err)
	}
	return sub, nil
}

// SaveSettings stores all thresholds at once and re-activates monitoring.
func (p *Postgres) SaveSettings(ctx context.Context, id int64, s Settings) error {
	if _, err := p.db.Exec(ctx, saveQuery, id, s.BudgetThreshold, s.LiquidityThreshold, s.MaxMarketsTraded); err != nil {
		return fmt.Errorf("save settings for %d: %w", id, err)
	}
	return nil
}

// SetBudgetThreshold updates the trade-value threshold, creating the row if needed.
func (p *Postgres) SetBudgetThreshold(ctx context.Context, id int64, usd float64) error {
	return p.exec(ctx, upsertColumn("budget_threshold"), id, usd)
}

// SetLiquidityThreshold updates the liquidity percent threshold, creating the row if needed.
func (p *Postgres) SetLiquidityThreshold(ctx context.Context, id int64, percent float64) error {
	return p.exec(ctx, upsertColumn("liquidity_threshold"), id, percent)
}

// SetMaxMarketsTraded updates the trader activity cap, creating the row if needed.
func (p *Postgres) SetMaxMarketsTraded(ctx context.Context, id int64, max int) error {
	return p.exec(ctx, upsertColumn("max_markets_traded"), id, max)
}

// SetMonitoring pauses or resumes alerts. A missing subscriber is left untouched.
func (p *Postgres) SetMonitoring(ctx context.Context, id int64, active bool) error {
	return p.exec(ctx, setMonitoringQuery, id, active)
}

func (p *Postgres) exec(ctx context.Context, sql string, id int64, value any) error {
	if _, err := p.db.Exec(ctx, sql, id, value); err != nil {
		return fmt.Errorf("update subscriber %d: %w", id, err)
	}
	return nil
}

// scanSubscriber maps a row to a Subscriber. NULL thresholds become +Inf so
// they are never satisfied, matching SQL comparison semantics.
func scanSubscriber(row pgx.CollectableRow) (store.Subscriber, error) {
	var (
		s         store.Subscriber
		budget    *float64
		liquidity *float64
		maxTraded *int32
		active    *bool
	)
	if err := row.Scan(&s.ID, &budget, &liquidity, &maxTraded, &active); err != nil {
		return s, err
	}

	s.BudgetThreshold = orInf(budget)
	s.LiquidityThreshold = orInf(liquidity)
	if maxTraded != nil {
		s.MaxMarketsTraded = int(*maxTraded)
	}
	s.MonitoringActive = active != nil && *active
	return s, nil
}

func orInf(v *float64) float64 {
	if v == nil {
		return math.Inf(1)
	}
	return *v
}
