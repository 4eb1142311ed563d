package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/polyinsider/hunter/internal/metrics"
	"github.com/polyinsider/hunter/internal/store"
	"github.com/rivo/tview"
)

// AlertFeedView displays recent alert dispatches and their outcome.
type AlertFeedView struct {
	list *tview.List
}

// NewAlertFeedView creates a new alert feed view.
func NewAlertFeedView() *AlertFeedView {
	list := tview.NewList().
		ShowSecondaryText(true)

	list.SetTitle(" 🚨 Alerts ").SetBorder(true)
	list.SetMainTextColor(tcell.ColorWhite)

	return &AlertFeedView{list: list}
}

// Widget returns the tview primitive.
func (v *AlertFeedView) Widget() tview.Primitive {
	return v.list
}

// Update rebuilds the list from the snapshot's recent alerts.
func (v *AlertFeedView) Update(snapshot metrics.MetricsSnapshot) {
	current := v.list.GetCurrentItem()
	v.list.Clear()

	if len(snapshot.RecentAlerts) == 0 {
		v.list.AddItem("No alerts sent yet", "", 0, nil)
		return
	}

	for _, a := range snapshot.RecentAlerts {
		mainText, secondaryText := formatAlert(a)
		v.list.AddItem(mainText, secondaryText, 0, nil)
	}
	if current < v.list.GetItemCount() {
		v.list.SetCurrentItem(current)
	}

	v.list.SetTitle(fmt.Sprintf(" 🚨 Alerts (%d delivered) ", snapshot.AlertsByResult[store.Delivered.String()]))
}

// formatAlert formats an alert for display.
func formatAlert(a store.Alert) (string, string) {
	var icon string
	switch a.Result {
	case store.Delivered:
		icon = "[green]✔[-]"
	case store.PermanentFailure:
		icon = "[red]⛔[-]"
	default:
		icon = "[yellow]⚠[-]"
	}

	mainText := fmt.Sprintf("%s %s %s → %d",
		a.SentAt.Format("15:04:05"), icon, truncateText(a.Title, 40), a.SubscriberID)
	secondaryText := fmt.Sprintf("Wallet: %s | $%.2f | %.2f%% | %s | %s",
		truncateAddress(a.Wallet), a.ValueUSD, a.Liquidity, a.Trigger, a.Result)

	return mainText, secondaryText
}
