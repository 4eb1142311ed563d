package alert

import (
	"fmt"
	"net/url"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/polyinsider/hunter/internal/store"
)

const siteURL = "https://polymarket.com"

// Link is an interactive URL control attached to a message.
type Link struct {
	Text string
	URL  string
}

// Message is a formatted notification for one recipient.
type Message struct {
	Recipient int64
	Text      string
	Links     []Link
}

// ProfileURL returns the trader's public profile page.
func ProfileURL(event store.TradeEvent) string {
	if event.Name != "" {
		return siteURL + "/@" + url.PathEscape(event.Name)
	}
	return siteURL + "/profile/" + event.ProxyWallet
}

// EventURL returns the event page of the traded market.
func EventURL(event store.TradeEvent) string {
	return siteURL + "/event/" + url.PathEscape(event.EventSlug)
}

// Format renders an alert match as a Markdown message.
func Format(m store.AlertMatch) Message {
	ev := m.Event
	profile := ProfileURL(ev)
	eventURL := EventURL(ev)

	var b strings.Builder
	b.WriteString("🚨 *Insider Alert!*\n\n")
	fmt.Fprintf(&b, "🔥 *%s* *%.2f* shares of *%s* @ *$%.2f*\n\n",
		ev.Side, ev.Size, escape(ev.Outcome), ev.Price)
	fmt.Fprintf(&b, "📌 *Market*: %s\n", escape(ev.Title))
	fmt.Fprintf(&b, "💰 *Value*: $%.2f\n", m.TradeValue)
	fmt.Fprintf(&b, "💧 *Liquidity By User*: %.2f%%\n", m.LiquidityPercent)
	fmt.Fprintf(&b, "🎯 *Trigger*: %s\n\n", m.Trigger)
	fmt.Fprintf(&b, "👤 *Trader*: [View Profile](%s)\n", profile)
	fmt.Fprintf(&b, "📊 *History*: %d markets traded\n\n", m.MarketsTraded)
	fmt.Fprintf(&b, "🔗 [View Event](%s)", eventURL)

	return Message{
		Recipient: m.Subscriber.ID,
		Text:      b.String(),
		Links: []Link{
			{Text: "View Event", URL: eventURL},
			{Text: "View Trader", URL: profile},
		},
	}
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}
