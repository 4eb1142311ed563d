package ui

import (
	"fmt"
	"sort"

	"github.com/gdamore/tcell/v2"
	"github.com/polyinsider/hunter/internal/metrics"
	"github.com/polyinsider/hunter/internal/store"
	"github.com/rivo/tview"
)

var topTradeHeaders = []string{"Market", "Side", "Value", "Trader"}

// TopTradesView displays the largest recent trades by USD value.
type TopTradesView struct {
	table *tview.Table
}

// NewTopTradesView creates a new top trades view.
func NewTopTradesView() *TopTradesView {
	table := tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0)

	table.SetTitle(" Largest Trades ").SetBorder(true)
	setHeader(table, topTradeHeaders)

	return &TopTradesView{table: table}
}

// Widget returns the tview primitive.
func (v *TopTradesView) Widget() tview.Primitive {
	return v.table
}

// Update refreshes the top trades display.
func (v *TopTradesView) Update(snapshot metrics.MetricsSnapshot) {
	v.table.Clear()
	setHeader(v.table, topTradeHeaders)

	trades := largestTrades(snapshot.RecentTrades, 10)
	if len(trades) == 0 {
		cell := tview.NewTableCell("No data yet...").
			SetAlign(tview.AlignCenter).
			SetExpansion(1)
		v.table.SetCell(1, 0, cell)
		return
	}

	for i, trade := range trades {
		row := i + 1

		sideColor := tcell.ColorRed
		if trade.IsBuy() {
			sideColor = tcell.ColorGreen
		}

		v.table.SetCell(row, 0, tview.NewTableCell(truncateText(trade.Title, 25)).SetAlign(tview.AlignLeft))
		v.table.SetCell(row, 1, tview.NewTableCell(trade.Side).SetTextColor(sideColor))
		v.table.SetCell(row, 2, tview.NewTableCell(fmt.Sprintf("$%.0f", trade.Value())).SetAlign(tview.AlignRight))
		v.table.SetCell(row, 3, tview.NewTableCell(traderLabel(trade)).SetAlign(tview.AlignLeft))
	}
}

// largestTrades returns up to limit trades ordered by descending value.
func largestTrades(recent []store.TradeEvent, limit int) []store.TradeEvent {
	trades := make([]store.TradeEvent, len(recent))
	copy(trades, recent)

	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].Value() > trades[j].Value()
	})

	if len(trades) > limit {
		trades = trades[:limit]
	}
	return trades
}
