package alert

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/polyinsider/hunter/internal/metrics"
	"github.com/polyinsider/hunter/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMessenger struct {
	mock.Mock
}

func (m *mockMessenger) Send(ctx context.Context, msg Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

type mockBlocker struct {
	mock.Mock
}

func (m *mockBlocker) MarkBlocked(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func sampleMatch() store.AlertMatch {
	return store.AlertMatch{
		Subscriber: store.Subscriber{ID: 42, BudgetThreshold: 4000, LiquidityThreshold: 50, MonitoringActive: true},
		Event: store.TradeEvent{
			AssetID:     "123",
			Side:        store.SideBuy,
			Size:        1000,
			Price:       5,
			Outcome:     "Yes",
			Title:       "Will *this* resolve_yes?",
			EventSlug:   "some-event",
			ProxyWallet: "0xabc",
		},
		TradeValue:       5000,
		LiquidityPercent: 10,
		MarketsTraded:    3,
		Trigger:          store.TriggerBudget,
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want store.DeliveryResult
	}{
		{"success", nil, store.Delivered},
		{"forbidden status", &DeliveryError{StatusCode: 403, Description: "Forbidden: bot was blocked by the user"}, store.PermanentFailure},
		{"forbidden text only", &DeliveryError{StatusCode: 400, Description: "Forbidden: user is deactivated"}, store.PermanentFailure},
		{"wrapped", errors.Join(errors.New("ctx"), &DeliveryError{StatusCode: 403}), store.PermanentFailure},
		{"rate limited", &DeliveryError{StatusCode: 429, Description: "Too Many Requests: retry after 5"}, store.TransientFailure},
		{"network", errors.New("connection reset"), store.TransientFailure},
		{"timeout", context.DeadlineExceeded, store.TransientFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestFormat(t *testing.T) {
	msg := Format(sampleMatch())

	assert.Equal(t, int64(42), msg.Recipient)
	assert.Contains(t, msg.Text, "*BUY* *1000.00* shares of *Yes* @ *$5.00*")
	assert.Contains(t, msg.Text, `Will \*this\* resolve\_yes?`)
	assert.Contains(t, msg.Text, "*Value*: $5000.00")
	assert.Contains(t, msg.Text, "*Liquidity By User*: 10.00%")
	assert.Contains(t, msg.Text, "*Trigger*: budget only")
	assert.Contains(t, msg.Text, "(https://polymarket.com/profile/0xabc)")
	assert.Contains(t, msg.Text, "3 markets traded")
	assert.True(t, strings.HasSuffix(msg.Text, "(https://polymarket.com/event/some-event)"))
	require.Len(t, msg.Links, 2)
}

func TestProfileURLPrefersName(t *testing.T) {
	ev := store.TradeEvent{Name: "whale", ProxyWallet: "0xabc"}
	assert.Equal(t, "https://polymarket.com/@whale", ProfileURL(ev))
}

func TestDispatchDelivered(t *testing.T) {
	messenger := new(mockMessenger)
	blocker := new(mockBlocker)
	tracker := metrics.NewMetricsTracker(nil)
	d := NewDispatcher(messenger, blocker, tracker, time.Second, time.Second)

	messenger.On("Send", mock.Anything, mock.MatchedBy(func(m Message) bool { return m.Recipient == 42 })).Return(nil)

	result := d.Dispatch(context.Background(), sampleMatch())
	assert.Equal(t, store.Delivered, result)
	blocker.AssertNotCalled(t, "MarkBlocked", mock.Anything, mock.Anything)

	snap := tracker.Snapshot()
	require.Len(t, snap.RecentAlerts, 1)
	assert.Equal(t, store.Delivered, snap.RecentAlerts[0].Result)
	assert.NotEmpty(t, snap.RecentAlerts[0].ID)
}

func TestDispatchPermanentFailureBlocks(t *testing.T) {
	messenger := new(mockMessenger)
	blocker := new(mockBlocker)
	d := NewDispatcher(messenger, blocker, metrics.NewMetricsTracker(nil), time.Second, time.Second)

	messenger.On("Send", mock.Anything, mock.Anything).
		Return(&DeliveryError{StatusCode: 403, Description: "Forbidden: bot was blocked by the user"})
	blocker.On("MarkBlocked", mock.Anything, int64(42)).Return(nil).Once()

	result := d.Dispatch(context.Background(), sampleMatch())
	assert.Equal(t, store.PermanentFailure, result)
	blocker.AssertExpectations(t)
}

func TestDispatchPermanentFailureBlockError(t *testing.T) {
	messenger := new(mockMessenger)
	blocker := new(mockBlocker)
	d := NewDispatcher(messenger, blocker, metrics.NewMetricsTracker(nil), time.Second, time.Second)

	messenger.On("Send", mock.Anything, mock.Anything).Return(&DeliveryError{StatusCode: 403})
	blocker.On("MarkBlocked", mock.Anything, int64(42)).Return(errors.New("db down"))

	// The registry failure is logged, never raised.
	assert.Equal(t, store.PermanentFailure, d.Dispatch(context.Background(), sampleMatch()))
}

func TestDispatchTransientFailure(t *testing.T) {
	messenger := new(mockMessenger)
	blocker := new(mockBlocker)
	tracker := metrics.NewMetricsTracker(nil)
	d := NewDispatcher(messenger, blocker, tracker, time.Second, time.Second)

	messenger.On("Send", mock.Anything, mock.Anything).Return(errors.New("connection reset")).Once()

	result := d.Dispatch(context.Background(), sampleMatch())
	assert.Equal(t, store.TransientFailure, result)
	blocker.AssertNotCalled(t, "MarkBlocked", mock.Anything, mock.Anything)
	messenger.AssertNumberOfCalls(t, "Send", 1)
	assert.Equal(t, int64(1), tracker.Snapshot().AlertsByResult["transient_failure"])
}

func TestDispatchSendTimeout(t *testing.T) {
	messenger := new(mockMessenger)
	blocker := new(mockBlocker)
	d := NewDispatcher(messenger, blocker, metrics.NewMetricsTracker(nil), 20*time.Millisecond, time.Second)

	messenger.On("Send", mock.Anything, mock.Anything).Return(context.DeadlineExceeded).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		<-ctx.Done()
	})

	assert.Equal(t, store.TransientFailure, d.Dispatch(context.Background(), sampleMatch()))
}
