// Package detector evaluates trade events against subscriber thresholds.
package detector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/polyinsider/hunter/internal/metrics"
	"github.com/polyinsider/hunter/internal/store"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Liquidity computes the liquidity percent of a trade.
type Liquidity interface {
	Percentage(ctx context.Context, assetID string, tradeValue float64) float64
}

// Candidates returns subscribers qualifying for a trade.
type Candidates interface {
	CandidatesFor(ctx context.Context, tradeValue, liquidityPercent float64) ([]store.Subscriber, error)
}

// History returns a wallet's traded-market count.
type History interface {
	MarketsTraded(ctx context.Context, wallet string) (int, error)
}

// Dispatcher delivers a matched alert.
type Dispatcher interface {
	Dispatch(ctx context.Context, match store.AlertMatch) store.DeliveryResult
}

// EvaluatorConfig tunes concurrency and timeouts of an Evaluator.
type EvaluatorConfig struct {
	// Concurrency is the number of subscribers processed at once per event.
	Concurrency int
	// MaxOutstanding caps subscriber tasks in flight across all events.
	MaxOutstanding int
	// RegistryTimeout bounds each candidate query.
	RegistryTimeout time.Duration
	// ZeroLiquidityDisables treats a liquidity threshold of 0 as disabled.
	ZeroLiquidityDisables bool
}

// Evaluator runs the per-event pipeline: liquidity, candidates, activity
// gate and dispatch. Evaluate is safe for concurrent use.
type Evaluator struct {
	liquidity  Liquidity
	registry   Candidates
	history    History
	dispatcher Dispatcher
	tracker    *metrics.MetricsTracker
	cfg        EvaluatorConfig
	sem        *semaphore.Weighted
}

// NewEvaluator creates a new Evaluator.
func NewEvaluator(liquidity Liquidity, registry Candidates, history History,
	dispatcher Dispatcher, tracker *metrics.MetricsTracker, cfg EvaluatorConfig) *Evaluator {

	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.MaxOutstanding < cfg.Concurrency {
		cfg.MaxOutstanding = cfg.Concurrency
	}
	if cfg.RegistryTimeout <= 0 {
		cfg.RegistryTimeout = 2 * time.Second
	}

	return &Evaluator{
		liquidity:  liquidity,
		registry:   registry,
		history:    history,
		dispatcher: dispatcher,
		tracker:    tracker,
		cfg:        cfg,
		sem:        semaphore.NewWeighted(int64(cfg.MaxOutstanding)),
	}
}

// Evaluate processes one trade event. Failures are logged and contained to
// the affected subscriber; nothing is returned to the caller.
func (e *Evaluator) Evaluate(ctx context.Context, event store.TradeEvent) {
	// SELL-side trades are not surveilled.
	if !event.IsBuy() {
		return
	}

	value := event.Value()
	pct := e.liquidity.Percentage(ctx, event.AssetID, value)

	qctx, cancel := context.WithTimeout(ctx, e.cfg.RegistryTimeout)
	subs, err := e.registry.CandidatesFor(qctx, value, pct)
	cancel()
	if err != nil {
		slog.Error("candidates_query_failed",
			"asset", truncateID(event.AssetID),
			"value_usd", value,
			"error", err,
		)
		e.tracker.RecordRegistryError()
		return
	}

	e.tracker.RecordEvaluation(len(subs), pct)
	if len(subs) == 0 {
		return
	}

	slog.Debug("candidates_found",
		"market", event.Title,
		"value_usd", value,
		"liquidity_pct", pct,
		"count", len(subs),
	)

	traded := &walletHistory{source: e.history, wallet: event.ProxyWallet}

	var g errgroup.Group
	g.SetLimit(e.cfg.Concurrency)
	for _, sub := range subs {
		sub := sub
		g.Go(func() error {
			if err := e.sem.Acquire(ctx, 1); err != nil {
				slog.Warn("evaluation_abandoned", "subscriber", sub.ID, "error", err)
				return nil
			}
			defer e.sem.Release(1)

			e.evaluateSubscriber(ctx, event, value, pct, sub, traded)
			return nil
		})
	}
	_ = g.Wait()
}

// evaluateSubscriber applies the activity gate and trigger check for one
// candidate and dispatches the alert.
func (e *Evaluator) evaluateSubscriber(ctx context.Context, event store.TradeEvent,
	value, pct float64, sub store.Subscriber, history *walletHistory) {

	traded, err := history.MarketsTraded(ctx)
	if err != nil {
		slog.Error("history_fetch_failed",
			"subscriber", sub.ID,
			"wallet", truncateID(event.ProxyWallet),
			"error", err,
		)
		e.tracker.RecordSkip(metrics.SkipHistoryError)
		return
	}

	if ExceedsActivityCap(sub.MaxMarketsTraded, traded) {
		slog.Debug("activity_gate_skip",
			"subscriber", sub.ID,
			"markets_traded", traded,
			"max_markets_traded", sub.MaxMarketsTraded,
		)
		e.tracker.RecordSkip(metrics.SkipActivityCap)
		return
	}

	// Thresholds may have changed since the candidate query.
	trigger := sub.Triggers(value, pct, e.cfg.ZeroLiquidityDisables)
	if trigger.Empty() {
		slog.Debug("no_trigger_skip", "subscriber", sub.ID)
		e.tracker.RecordSkip(metrics.SkipNoTrigger)
		return
	}

	e.dispatcher.Dispatch(ctx, store.AlertMatch{
		Subscriber:       sub,
		Event:            event,
		TradeValue:       value,
		LiquidityPercent: pct,
		MarketsTraded:    traded,
		Trigger:          trigger,
	})
}

// walletHistory memoizes the trader's market count for one event. Only a
// successful lookup is kept, so a failure affects the subscriber that saw
// it and the next one retries.
type walletHistory struct {
	source History
	wallet string

	mu     sync.Mutex
	traded int
	ok     bool
}

func (w *walletHistory) MarketsTraded(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ok {
		return w.traded, nil
	}
	n, err := w.source.MarketsTraded(ctx, w.wallet)
	if err != nil {
		return 0, err
	}
	w.traded, w.ok = n, true
	return n, nil
}

// truncateID shortens an ID for logging.
func truncateID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:6] + "..." + id[len(id)-4:]
}
