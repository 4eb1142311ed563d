package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/polyinsider/hunter/internal/metrics"
	"github.com/polyinsider/hunter/internal/store"
	"github.com/rivo/tview"
)

var liveTradeHeaders = []string{"Time", "Market", "Outcome", "Side", "Price", "Value", "Trader"}

// LiveTradesView displays a scrolling feed of incoming trades.
type LiveTradesView struct {
	table *tview.Table
}

// NewLiveTradesView creates a new live trades view.
func NewLiveTradesView() *LiveTradesView {
	table := tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0)

	table.SetTitle(" Live Trades ").SetBorder(true)
	setHeader(table, liveTradeHeaders)

	return &LiveTradesView{table: table}
}

// Widget returns the tview primitive.
func (v *LiveTradesView) Widget() tview.Primitive {
	return v.table
}

// Update redraws the table from the snapshot's recent trades, newest first.
func (v *LiveTradesView) Update(snapshot metrics.MetricsSnapshot) {
	v.table.Clear()
	setHeader(v.table, liveTradeHeaders)

	for i, trade := range snapshot.RecentTrades {
		sideColor := tcell.ColorRed
		if trade.IsBuy() {
			sideColor = tcell.ColorGreen
		}

		cells := tradeRow(trade)
		for col, text := range cells {
			cell := tview.NewTableCell(text).SetAlign(tview.AlignLeft)
			if col == 3 {
				cell.SetTextColor(sideColor)
			}
			v.table.SetCell(i+1, col, cell)
		}
	}

	v.table.SetTitle(fmt.Sprintf(" Live Trades (%d) ", len(snapshot.RecentTrades)))
}

// tradeRow formats one trade as table cells.
func tradeRow(trade store.TradeEvent) []string {
	return []string{
		trade.Timestamp.Format("15:04:05"),
		truncateText(trade.Title, 40),
		trade.Outcome,
		trade.Side,
		fmt.Sprintf("%.3f", trade.Price),
		fmt.Sprintf("$%.0f", trade.Value()),
		traderLabel(trade),
	}
}

// traderLabel prefers the profile name, then the generated pseudonym, then
// the shortened wallet.
func traderLabel(trade store.TradeEvent) string {
	switch {
	case trade.Name != "":
		return trade.Name
	case trade.Pseudonym != "":
		return trade.Pseudonym
	case trade.ProxyWallet != "":
		return truncateAddress(trade.ProxyWallet)
	}
	return "unknown"
}
