package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/polyinsider/hunter/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusLog struct {
	mu       sync.Mutex
	statuses []string
}

func (s *statusLog) SetWebSocketStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
}

func (s *statusLog) SetChannelBuffer(used, capacity int) {}

func (s *statusLog) has(status string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.statuses {
		if st == status {
			return true
		}
	}
	return false
}

// newFeedServer accepts one client, records its subscription and text
// frames, then sends the given messages.
func newFeedServer(t *testing.T, messages []string, received chan<- string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, sub, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- string(sub)

		for _, m := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			select {
			case received <- string(data):
			default:
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestListenerStreamsTrades(t *testing.T) {
	received := make(chan string, 16)
	srv := newFeedServer(t, []string{
		`{"topic":"comments","type":"comment_created","payload":{}}`,
		tradeMessage,
	}, received)

	trades := make(chan store.TradeEvent, 4)
	status := &statusLog{}
	l := NewListener("ws"+strings.TrimPrefix(srv.URL, "http"), 20*time.Millisecond, trades, status)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l.Start(ctx)
	defer l.Stop()

	select {
	case sub := <-received:
		assert.JSONEq(t, `{"action":"subscribe","subscriptions":[{"topic":"activity","type":"trades"}]}`, sub)
	case <-time.After(2 * time.Second):
		t.Fatal("no subscription received")
	}

	select {
	case ev := <-trades:
		assert.Equal(t, "7177216", ev.AssetID)
		assert.Equal(t, store.SideBuy, ev.Side)
	case <-time.After(2 * time.Second):
		t.Fatal("no trade received")
	}
	assert.True(t, status.has(StatusConnected))

	require.Eventually(t, func() bool {
		for {
			select {
			case m := <-received:
				if m == "ping" {
					return true
				}
			default:
				return false
			}
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestListenerReconnectsAfterDrop(t *testing.T) {
	var conns atomic.Int32
	subs := make(chan string, 16)
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	// Every connection gets one trade and is then dropped by the server.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conns.Add(1)

		_, sub, err := conn.ReadMessage()
		if err != nil {
			return
		}
		subs <- string(sub)
		_ = conn.WriteMessage(websocket.TextMessage, []byte(tradeMessage))
	}))
	t.Cleanup(srv.Close)

	trades := make(chan store.TradeEvent, 4)
	status := &statusLog{}
	l := NewListener("ws"+strings.TrimPrefix(srv.URL, "http"), time.Second, trades, status)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l.Start(ctx)
	defer l.Stop()

	for i := 0; i < 2; i++ {
		select {
		case sub := <-subs:
			assert.JSONEq(t, `{"action":"subscribe","subscriptions":[{"topic":"activity","type":"trades"}]}`, sub)
		case <-time.After(5 * time.Second):
			t.Fatalf("subscription %d not received", i+1)
		}
		select {
		case ev := <-trades:
			assert.Equal(t, "7177216", ev.AssetID)
		case <-time.After(5 * time.Second):
			t.Fatalf("trade %d not received", i+1)
		}
	}

	assert.GreaterOrEqual(t, conns.Load(), int32(2))
	assert.True(t, status.has(StatusDisconnected))
}

func TestListenerBlocksOnFullQueue(t *testing.T) {
	trades := make(chan store.TradeEvent, 1)
	l := NewListener("ws://unused", time.Second, trades, nil)

	ev := store.TradeEvent{AssetID: "a", Side: store.SideBuy, Size: 1, Price: 1}
	l.enqueue(context.Background(), ev)

	done := make(chan struct{})
	go func() {
		l.enqueue(context.Background(), ev)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("enqueue should block while the queue is full")
	case <-time.After(50 * time.Millisecond):
	}

	<-trades
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue did not resume after the queue drained")
	}
	assert.Len(t, trades, 1)
}

func TestListenerEnqueueReleasedByStop(t *testing.T) {
	trades := make(chan store.TradeEvent, 1)
	trades <- store.TradeEvent{}
	l := NewListener("ws://unused", time.Second, trades, nil)

	done := make(chan struct{})
	go func() {
		l.enqueue(context.Background(), store.TradeEvent{AssetID: "b"})
		close(done)
	}()

	l.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue not released by Stop")
	}
}

func TestSubscriptionMessage(t *testing.T) {
	msg := NewSubscriptionMessage()
	require.Len(t, msg.Subscriptions, 1)
	assert.Equal(t, "subscribe", msg.Action)
	assert.Equal(t, Subscription{Topic: "activity", Type: "trades"}, msg.Subscriptions[0])
}
