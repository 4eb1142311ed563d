// Package alert formats, sends and classifies subscriber notifications.
package alert

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/polyinsider/hunter/internal/metrics"
	"github.com/polyinsider/hunter/internal/store"
)

// Messenger delivers a message to its recipient.
type Messenger interface {
	Send(ctx context.Context, msg Message) error
}

// Blocker records that a subscriber revoked delivery consent.
type Blocker interface {
	MarkBlocked(ctx context.Context, id int64) error
}

// Dispatcher sends alert matches and handles delivery failures.
type Dispatcher struct {
	messenger    Messenger
	blocker      Blocker
	tracker      *metrics.MetricsTracker
	sendTimeout  time.Duration
	blockTimeout time.Duration
}

// NewDispatcher creates a Dispatcher. sendTimeout bounds each send and
// blockTimeout each registry update.
func NewDispatcher(messenger Messenger, blocker Blocker, tracker *metrics.MetricsTracker,
	sendTimeout, blockTimeout time.Duration) *Dispatcher {

	return &Dispatcher{
		messenger:    messenger,
		blocker:      blocker,
		tracker:      tracker,
		sendTimeout:  sendTimeout,
		blockTimeout: blockTimeout,
	}
}

// Dispatch formats and sends one alert. There is no retry: the next matching
// trade retries delivery naturally.
func (d *Dispatcher) Dispatch(ctx context.Context, match store.AlertMatch) store.DeliveryResult {
	msg := Format(match)

	start := time.Now()
	sctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	err := d.messenger.Send(sctx, msg)
	cancel()
	latency := time.Since(start)

	result := Classify(err)
	sub := match.Subscriber.ID

	switch result {
	case store.PermanentFailure:
		d.block(ctx, sub, err)
	case store.TransientFailure:
		slog.Error("alert_delivery_failed",
			"subscriber", sub,
			"market", match.Event.Title,
			"error", err,
		)
	default:
		slog.Info("alert_delivered",
			"subscriber", sub,
			"market", match.Event.Title,
			"value_usd", match.TradeValue,
			"liquidity_pct", match.LiquidityPercent,
			"trigger", match.Trigger.String(),
		)
	}

	d.tracker.RecordAlert(store.Alert{
		ID:           uuid.NewString(),
		SubscriberID: sub,
		Title:        match.Event.Title,
		Wallet:       match.Event.ProxyWallet,
		ValueUSD:     match.TradeValue,
		Liquidity:    match.LiquidityPercent,
		Trigger:      match.Trigger,
		Result:       result,
		SentAt:       start,
	}, latency)

	return result
}

// block deactivates a subscriber that revoked delivery consent.
func (d *Dispatcher) block(ctx context.Context, id int64, cause error) {
	bctx, cancel := context.WithTimeout(ctx, d.blockTimeout)
	defer cancel()

	if err := d.blocker.MarkBlocked(bctx, id); err != nil {
		slog.Error("mark_blocked_failed", "subscriber", id, "error", err)
		return
	}
	slog.Info("subscriber_blocked", "subscriber", id, "reason", cause)
}
