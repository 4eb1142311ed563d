// Package ui provides terminal user interface components.
package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/polyinsider/hunter/internal/metrics"
	"github.com/rivo/tview"
)

// App is the main TUI application. It renders pipeline snapshots and never
// consumes the trade queue itself.
type App struct {
	app    *tview.Application
	layout *tview.Flex

	// Views
	marketOverview *MarketOverviewView
	alertFeed      *AlertFeedView
	liveTrades     *LiveTradesView
	statsDashboard *StatsDashboardView
	topTrades      *TopTradesView

	tracker *metrics.MetricsTracker
	refresh time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates a new TUI application redrawn every refresh.
func NewApp(tracker *metrics.MetricsTracker, refresh time.Duration) *App {
	ctx, cancel := context.WithCancel(context.Background())
	if refresh <= 0 {
		refresh = 500 * time.Millisecond
	}

	app := &App{
		app:            tview.NewApplication(),
		marketOverview: NewMarketOverviewView(),
		alertFeed:      NewAlertFeedView(),
		liveTrades:     NewLiveTradesView(),
		statsDashboard: NewStatsDashboardView(),
		topTrades:      NewTopTradesView(),
		tracker:        tracker,
		refresh:        refresh,
		ctx:            ctx,
		cancel:         cancel,
	}

	app.setupLayout()
	app.setupKeyboard()

	return app
}

// setupLayout creates the 5-panel layout.
func (a *App) setupLayout() {
	// Top row: Market Overview (left) | Alert Feed (right)
	topRow := tview.NewFlex().
		AddItem(a.marketOverview.Widget(), 0, 1, false).
		AddItem(a.alertFeed.Widget(), 0, 2, false)

	middleRow := a.liveTrades.Widget()

	// Bottom row: Stats Dashboard (left) | Top Trades (right)
	bottomRow := tview.NewFlex().
		AddItem(a.statsDashboard.Widget(), 0, 1, false).
		AddItem(a.topTrades.Widget(), 0, 1, false)

	a.layout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(topRow, 0, 2, false).
		AddItem(middleRow, 0, 3, false).
		AddItem(bottomRow, 0, 2, false)

	a.app.SetRoot(a.layout, true)
}

// setupKeyboard configures keyboard shortcuts.
func (a *App) setupKeyboard() {
	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC:
			a.Stop()
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case 'q', 'Q':
				a.Stop()
				return nil
			case 'r', 'R':
				a.redraw()
				return nil
			}
		}
		return event
	})
}

// Run starts the TUI application (blocking).
func (a *App) Run() error {
	go a.updateLoop()

	if err := a.app.Run(); err != nil {
		return fmt.Errorf("app run failed: %w", err)
	}
	return nil
}

// Done is closed once the user quits.
func (a *App) Done() <-chan struct{} {
	return a.ctx.Done()
}

// Stop gracefully stops the application.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}

// updateLoop periodically refreshes views with metrics data.
func (a *App) updateLoop() {
	ticker := time.NewTicker(a.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.redraw()
		}
	}
}

func (a *App) redraw() {
	snapshot := a.tracker.Snapshot()

	a.app.QueueUpdateDraw(func() {
		a.marketOverview.Update(snapshot)
		a.alertFeed.Update(snapshot)
		a.liveTrades.Update(snapshot)
		a.statsDashboard.Update(snapshot)
		a.topTrades.Update(snapshot)
	})
}

// setHeader writes the header row of a table.
func setHeader(table *tview.Table, headers []string) {
	for col, header := range headers {
		cell := tview.NewTableCell(header).
			SetTextColor(tview.Styles.SecondaryTextColor).
			SetAlign(tview.AlignLeft).
			SetSelectable(false)
		table.SetCell(0, col, cell)
	}
}

// truncateAddress truncates a wallet address for display.
func truncateAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// truncateText shortens s to maxLen runes.
func truncateText(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
