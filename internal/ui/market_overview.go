package ui

import (
	"fmt"
	"sort"

	"github.com/polyinsider/hunter/internal/metrics"
	"github.com/rivo/tview"
)

var marketHeaders = []string{"Market", "Trades", "Volume", "Price", "Alerts", "Updated"}

// MarketOverviewView displays the most active markets on the feed.
type MarketOverviewView struct {
	table *tview.Table
}

// NewMarketOverviewView creates a new market overview view.
func NewMarketOverviewView() *MarketOverviewView {
	table := tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0)

	table.SetTitle(" Market Overview ").SetBorder(true)
	setHeader(table, marketHeaders)

	return &MarketOverviewView{table: table}
}

// Widget returns the tview primitive.
func (v *MarketOverviewView) Widget() tview.Primitive {
	return v.table
}

// Update refreshes the view with new metrics data.
func (v *MarketOverviewView) Update(snapshot metrics.MetricsSnapshot) {
	v.table.Clear()
	setHeader(v.table, marketHeaders)

	for i, market := range mostActive(snapshot.MarketActivities, 10) {
		cells := []string{
			truncateText(market.Title, 30),
			fmt.Sprintf("%d", market.TradeCount),
			fmt.Sprintf("$%.0f", market.Volume),
			fmt.Sprintf("%.3f", market.LastPrice),
			fmt.Sprintf("%d", market.Alerts),
			formatTimeAgo(market.LastUpdate),
		}
		for col, text := range cells {
			cell := tview.NewTableCell(text).
				SetAlign(tview.AlignLeft).
				SetExpansion(1)
			v.table.SetCell(i+1, col, cell)
		}
	}

	v.table.SetTitle(fmt.Sprintf(" Market Overview (%d active) ", len(snapshot.MarketActivities)))
}

// mostActive returns up to limit markets ordered by alerts, then trades.
func mostActive(activities map[string]*metrics.MarketActivity, limit int) []*metrics.MarketActivity {
	markets := make([]*metrics.MarketActivity, 0, len(activities))
	for _, activity := range activities {
		markets = append(markets, activity)
	}

	sort.Slice(markets, func(i, j int) bool {
		if markets[i].Alerts != markets[j].Alerts {
			return markets[i].Alerts > markets[j].Alerts
		}
		if markets[i].TradeCount != markets[j].TradeCount {
			return markets[i].TradeCount > markets[j].TradeCount
		}
		return markets[i].Title < markets[j].Title
	})

	if len(markets) > limit {
		markets = markets[:limit]
	}
	return markets
}
