package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/polyinsider/hunter/internal/store"
)

// Reconnection constants
const (
	InitialBackoff = 1 * time.Second
	MaxBackoff     = 60 * time.Second
	BackoffFactor  = 2.0
	JitterPercent  = 0.2

	// HeartbeatTimeout forces a reconnect when the feed goes quiet.
	HeartbeatTimeout = 60 * time.Second

	WriteTimeout = 10 * time.Second

	DefaultPingInterval = 5 * time.Second
)

// Connection states reported to the StatusRecorder.
const (
	StatusConnecting   = "connecting"
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
)

// StatusRecorder receives connection state and queue occupancy updates.
type StatusRecorder interface {
	SetWebSocketStatus(status string)
	SetChannelBuffer(used, capacity int)
}

// Subscription selects one topic/type stream of the real-time feed.
type Subscription struct {
	Topic string `json:"topic"`
	Type  string `json:"type"`
}

// SubscriptionMessage represents a subscription request.
type SubscriptionMessage struct {
	Action        string         `json:"action"`
	Subscriptions []Subscription `json:"subscriptions"`
}

// NewSubscriptionMessage creates the request for the activity trade stream.
func NewSubscriptionMessage() *SubscriptionMessage {
	return &SubscriptionMessage{
		Action:        "subscribe",
		Subscriptions: []Subscription{{Topic: TopicActivity, Type: TypeTrades}},
	}
}

// Listener manages the WebSocket connection to the Polymarket real-time feed.
type Listener struct {
	url          string
	pingInterval time.Duration
	tradeChan    chan<- store.TradeEvent
	status       StatusRecorder

	conn      *websocket.Conn
	connMu    sync.Mutex
	writeMu   sync.Mutex
	backoff   time.Duration
	lastMsg   time.Time
	lastMsgMu sync.RWMutex
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewListener creates a new WebSocket listener. status may be nil.
func NewListener(url string, pingInterval time.Duration, tradeChan chan<- store.TradeEvent, status StatusRecorder) *Listener {
	if pingInterval <= 0 {
		pingInterval = DefaultPingInterval
	}
	return &Listener{
		url:          url,
		pingInterval: pingInterval,
		tradeChan:    tradeChan,
		status:       status,
		backoff:      InitialBackoff,
		stopChan:     make(chan struct{}),
	}
}

// Start begins the WebSocket listener with automatic reconnection.
func (l *Listener) Start(ctx context.Context) {
	l.wg.Add(1)
	go l.runLoop(ctx)

	l.wg.Add(1)
	go l.keepalive(ctx)
}

// Stop gracefully shuts down the listener. It is safe to call more than once.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopChan)
		l.closeConnection()
	})
	l.wg.Wait()
}

// runLoop handles connection, reading, and reconnection.
func (l *Listener) runLoop(ctx context.Context) {
	defer l.wg.Done()

	for {
		if l.stopping(ctx) {
			slog.Info("ws_loop_stopping")
			return
		}

		l.setStatus(StatusConnecting)
		if err := l.connect(ctx); err != nil {
			slog.Error("ws_connect_failed", "error", err, "backoff", l.backoff)
			l.setStatus(StatusDisconnected)
			l.waitBackoff(ctx)
			continue
		}

		if err := l.readLoop(ctx); err != nil && !l.stopping(ctx) {
			slog.Warn("ws_read_error", "error", err)
		}

		l.closeConnection()

		if l.stopping(ctx) {
			return
		}
		l.waitBackoff(ctx)
	}
}

func (l *Listener) stopping(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-l.stopChan:
		return true
	default:
		return false
	}
}

// connect establishes the WebSocket connection and subscribes to trades.
func (l *Listener) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	headers := http.Header{}
	headers.Set("Origin", "https://polymarket.com")

	conn, resp, err := dialer.DialContext(ctx, l.url, headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial failed with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("dial failed: %w", err)
	}

	slog.Info("ws_connected", "endpoint", l.url)

	// The subscription must be the first frame, so the connection is only
	// published to the keepalive once it is sent.
	if err := l.subscribe(conn); err != nil {
		conn.Close()
		return fmt.Errorf("subscribe failed: %w", err)
	}

	l.connMu.Lock()
	l.conn = conn
	l.connMu.Unlock()

	l.backoff = InitialBackoff
	l.updateLastMsg()
	l.setStatus(StatusConnected)
	return nil
}

// subscribe sends the subscription message for the activity stream.
func (l *Listener) subscribe(conn *websocket.Conn) error {
	payload, err := json.Marshal(NewSubscriptionMessage())
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("failed to send subscribe message: %w", err)
	}

	slog.Info("ws_subscribed", "topic", TopicActivity, "type", TypeTrades)
	return nil
}

// write sends one frame. gorilla/websocket allows a single concurrent writer.
func (l *Listener) write(messageType int, data []byte) error {
	l.connMu.Lock()
	conn := l.conn
	l.connMu.Unlock()
	if conn == nil {
		return fmt.Errorf("connection is nil")
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
	return conn.WriteMessage(messageType, data)
}

// readLoop reads messages from the WebSocket.
func (l *Listener) readLoop(ctx context.Context) error {
	for {
		if l.stopping(ctx) {
			return nil
		}

		l.connMu.Lock()
		conn := l.conn
		l.connMu.Unlock()

		if conn == nil {
			return fmt.Errorf("connection is nil")
		}

		conn.SetReadDeadline(time.Now().Add(HeartbeatTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read error: %w", err)
		}

		l.updateLastMsg()
		l.handleMessage(ctx, message)
	}
}

// handleMessage parses a message and enqueues the trade it carries.
func (l *Listener) handleMessage(ctx context.Context, data []byte) {
	trade, kind, ok, err := ParseMessage(data)
	if err != nil {
		slog.Debug("ws_parse_error", "error", err, "raw", truncate(string(data), 256))
		return
	}
	if !ok {
		if kind != "" && kind != "pong" {
			slog.Debug("ws_message", "kind", kind)
		}
		return
	}

	l.enqueue(ctx, trade)
}

// enqueue hands trade to the workers. A full queue blocks the reader
// rather than dropping.
func (l *Listener) enqueue(ctx context.Context, trade store.TradeEvent) {
	select {
	case l.tradeChan <- trade:
	default:
		slog.Warn("trade_channel_full",
			"capacity", cap(l.tradeChan),
			"market", truncate(trade.Title, 40),
		)
		select {
		case l.tradeChan <- trade:
		case <-ctx.Done():
			return
		case <-l.stopChan:
			return
		}
	}

	if l.status != nil {
		l.status.SetChannelBuffer(len(l.tradeChan), cap(l.tradeChan))
	}
	slog.Debug("trade_received",
		"market", truncate(trade.Title, 40),
		"side", trade.Side,
		"size", trade.Size,
		"price", trade.Price,
		"value_usd", trade.Value(),
	)
}

// keepalive sends a text ping every pingInterval and forces a reconnect
// when nothing has been received for HeartbeatTimeout.
func (l *Listener) keepalive(ctx context.Context) {
	defer l.wg.Done()

	ticker := time.NewTicker(l.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.checkHeartbeat()
		}
	}
}

func (l *Listener) checkHeartbeat() {
	l.connMu.Lock()
	connected := l.conn != nil
	l.connMu.Unlock()
	if !connected {
		return
	}

	if err := l.write(websocket.TextMessage, []byte("ping")); err != nil {
		slog.Warn("ws_ping_failed", "error", err)
		l.closeConnection()
		return
	}

	l.lastMsgMu.RLock()
	lastMsg := l.lastMsg
	l.lastMsgMu.RUnlock()

	if elapsed := time.Since(lastMsg); !lastMsg.IsZero() && elapsed > HeartbeatTimeout {
		slog.Warn("ws_heartbeat_timeout", "elapsed", elapsed)
		l.closeConnection()
	}
}

func (l *Listener) updateLastMsg() {
	l.lastMsgMu.Lock()
	l.lastMsg = time.Now()
	l.lastMsgMu.Unlock()
}

// closeConnection safely closes the WebSocket connection.
func (l *Listener) closeConnection() {
	l.connMu.Lock()
	defer l.connMu.Unlock()

	if l.conn != nil {
		l.conn.Close()
		l.conn = nil
		slog.Info("ws_disconnected")
		l.setStatus(StatusDisconnected)
	}
}

func (l *Listener) setStatus(status string) {
	if l.status != nil {
		l.status.SetWebSocketStatus(status)
	}
}

// waitBackoff waits for the backoff duration with jitter.
func (l *Listener) waitBackoff(ctx context.Context) {
	jitter := time.Duration(float64(l.backoff) * JitterPercent * (rand.Float64()*2 - 1))
	wait := l.backoff + jitter

	slog.Debug("ws_waiting_backoff", "duration", wait)

	select {
	case <-ctx.Done():
	case <-l.stopChan:
	case <-time.After(wait):
	}

	l.backoff = time.Duration(float64(l.backoff) * BackoffFactor)
	if l.backoff > MaxBackoff {
		l.backoff = MaxBackoff
	}
}

// truncate shortens a string for logging.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
