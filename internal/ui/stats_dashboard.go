package ui

import (
	"fmt"
	"time"

	"github.com/polyinsider/hunter/internal/metrics"
	"github.com/polyinsider/hunter/internal/store"
	"github.com/rivo/tview"
)

// StatsDashboardView displays system health and pipeline counters.
type StatsDashboardView struct {
	textView *tview.TextView
}

// NewStatsDashboardView creates a new stats dashboard view.
func NewStatsDashboardView() *StatsDashboardView {
	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)

	textView.SetTitle(" Stats Dashboard ").SetBorder(true)

	return &StatsDashboardView{textView: textView}
}

// Widget returns the tview primitive.
func (v *StatsDashboardView) Widget() tview.Primitive {
	return v.textView
}

// Update refreshes the stats display.
func (v *StatsDashboardView) Update(snapshot metrics.MetricsSnapshot) {
	v.textView.Clear()
	fmt.Fprint(v.textView, statsText(snapshot))
}

func statsText(snapshot metrics.MetricsSnapshot) string {
	wsColor := "red"
	if snapshot.WebSocketStatus == "connected" {
		wsColor = "green"
	}

	bufferPct := 0.0
	if snapshot.ChannelBufferCap > 0 {
		bufferPct = (float64(snapshot.ChannelBufferUsed) / float64(snapshot.ChannelBufferCap)) * 100
	}

	return fmt.Sprintf(`[yellow]System Status[-]
Uptime: %s
Feed: [%s]%s[-]
Queue: %d/%d (%.1f%%)

[yellow]Pipeline[-]
Trades: %d (%d buys)
Rate: %.2f trades/sec
Evaluated: %d
Candidates: %d
Registry errors: %d

[yellow]Skipped[-]
Activity cap: %d
History error: %d
No trigger: %d

[yellow]Alerts[-]
Delivered: [green]%d[-]
Transient: [yellow]%d[-]
Blocked: [red]%d[-]
`,
		formatDuration(snapshot.Uptime),
		wsColor, snapshot.WebSocketStatus,
		snapshot.ChannelBufferUsed, snapshot.ChannelBufferCap, bufferPct,
		snapshot.TradesTotal, snapshot.BuyTrades,
		snapshot.TradeRate,
		snapshot.Evaluations,
		snapshot.Candidates,
		snapshot.RegistryErrors,
		snapshot.SkippedByReason[metrics.SkipActivityCap],
		snapshot.SkippedByReason[metrics.SkipHistoryError],
		snapshot.SkippedByReason[metrics.SkipNoTrigger],
		snapshot.AlertsByResult[store.Delivered.String()],
		snapshot.AlertsByResult[store.TransientFailure.String()],
		snapshot.AlertsByResult[store.PermanentFailure.String()],
	)
}

// formatDuration formats a duration in human-readable form.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// formatTimeAgo formats a time as "X ago".
func formatTimeAgo(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	elapsed := time.Since(t)

	if elapsed < time.Minute {
		return fmt.Sprintf("%.0fs ago", elapsed.Seconds())
	}
	if elapsed < time.Hour {
		return fmt.Sprintf("%.0fm ago", elapsed.Minutes())
	}
	if elapsed < 24*time.Hour {
		return fmt.Sprintf("%.0fh ago", elapsed.Hours())
	}
	return fmt.Sprintf("%.0fd ago", elapsed.Hours()/24)
}
