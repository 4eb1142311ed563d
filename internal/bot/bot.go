// Package bot implements the Telegram command bot subscribers use to
// configure their alert thresholds.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/polyinsider/hunter/internal/registry"
	"github.com/polyinsider/hunter/internal/store"
)

// Callback data carried by inline buttons.
const (
	callbackPresetPrefix = "set_"
	callbackCustom       = "set_custom"
	callbackConfirm      = "wizard_confirm"
	callbackRestart      = "wizard_restart"
)

// Presets are the quick budget choices offered by /start.
var Presets = []int{10000, 15000, 20000}

// Commands is the menu registered with setMyCommands.
var Commands = []tgbotapi.BotCommand{
	{Command: "start", Description: "Start the bot"},
	{Command: "help", Description: "Show help"},
	{Command: "set_trade_threshold", Description: "Set the trade ($) threshold"},
	{Command: "set_liquidity_threshold", Description: "Set liquidity (%) threshold"},
	{Command: "set_max_markets_traded", Description: "Set max markets traded"},
	{Command: "info", Description: "Show your alert settings"},
	{Command: "stop", Description: "Pause alerts"},
	{Command: "resume", Description: "Resume alerts"},
}

// Sender is the part of *tgbotapi.BotAPI used by the bot.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// UpdateSource delivers incoming updates.
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot answers commands, button presses and wizard replies.
type Bot struct {
	api      Sender
	registry registry.Registry
	sessions *Sessions
	timeout  time.Duration
}

// New creates a Bot. Each registry call runs under timeout.
func New(api Sender, reg registry.Registry, sessions *Sessions, timeout time.Duration) *Bot {
	return &Bot{api: api, registry: reg, sessions: sessions, timeout: timeout}
}

// RegisterCommands publishes the command menu.
func (b *Bot) RegisterCommands() error {
	if _, err := b.api.Request(tgbotapi.NewSetMyCommands(Commands...)); err != nil {
		return fmt.Errorf("set commands: %w", err)
	}
	return nil
}

// Run long-polls updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context, src UpdateSource) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := src.GetUpdatesChan(cfg)

	sweep := time.NewTicker(time.Minute)
	defer sweep.Stop()

	slog.Info("bot_started")
	for {
		select {
		case <-ctx.Done():
			src.StopReceivingUpdates()
			slog.Info("bot_stopped")
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			b.HandleUpdate(ctx, upd)
		case <-sweep.C:
			if n := b.sessions.Sweep(); n > 0 {
				slog.Debug("bot_sessions_expired", "count", n)
			}
		}
	}
}

// HandleUpdate dispatches one update.
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.CallbackQuery != nil:
		b.handleCallback(ctx, upd.CallbackQuery)
	case upd.Message != nil && upd.Message.IsCommand():
		b.handleCommand(ctx, upd.Message)
	case upd.Message != nil && upd.Message.Text != "":
		b.handleText(upd.Message)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	id := subscriberID(msg)
	args := strings.TrimSpace(msg.CommandArguments())

	slog.Debug("bot_command", "subscriber", id, "command", msg.Command())

	switch msg.Command() {
	case "start":
		b.sessions.Delete(id)
		b.start(msg.Chat.ID)
	case "help":
		b.reply(msg.Chat.ID, helpText)
	case "info":
		b.info(ctx, msg.Chat.ID, id)
	case "set_trade_threshold":
		v, err := parseAmount(args)
		if err != nil {
			b.reply(msg.Chat.ID, usage("set_trade_threshold", "<amount>", "5000"))
			return
		}
		b.update(ctx, msg.Chat.ID, id, func(ctx context.Context) error {
			return b.registry.SetBudgetThreshold(ctx, id, v)
		}, fmt.Sprintf("✅ Trade threshold updated.\n\nYou will receive alerts for trades over *%s*.", formatUSD(v)))
	case "set_liquidity_threshold":
		v, err := parsePercent(args)
		if err != nil {
			b.reply(msg.Chat.ID, usage("set_liquidity_threshold", "<percent>", "10"))
			return
		}
		b.update(ctx, msg.Chat.ID, id, func(ctx context.Context) error {
			return b.registry.SetLiquidityThreshold(ctx, id, v)
		}, fmt.Sprintf("✅ Liquidity threshold updated.\n\nYou will get alerts for trades taking at least *%s%%* of market liquidity.", strconv.FormatFloat(v, 'f', -1, 64)))
	case "set_max_markets_traded":
		n, err := parseMaxMarkets(args)
		if err != nil {
			b.reply(msg.Chat.ID, usage("set_max_markets_traded", "<number>", "10"))
			return
		}
		b.update(ctx, msg.Chat.ID, id, func(ctx context.Context) error {
			return b.registry.SetMaxMarketsTraded(ctx, id, n)
		}, fmt.Sprintf("✅ Max markets traded updated.\n\nYou will only be alerted if a trader has traded *%d* or fewer markets.", n))
	case "stop":
		b.setMonitoring(ctx, msg.Chat.ID, id, false)
	case "resume":
		b.setMonitoring(ctx, msg.Chat.ID, id, true)
	default:
		b.reply(msg.Chat.ID, "Unknown command. Use /help for usage.")
	}
}

// handleText feeds a plain reply into the chat's wizard, if one is running.
func (b *Bot) handleText(msg *tgbotapi.Message) {
	id := subscriberID(msg)
	step, ok := b.sessions.Get(id)
	if !ok {
		return
	}

	next, err := step.Next(msg.Text)
	if err != nil {
		b.reply(msg.Chat.ID, "⚠️ "+err.Error()+"\n\n"+step.Prompt())
		return
	}

	b.sessions.Put(id, next)
	if _, ok := next.(ReviewStep); ok {
		b.send(reviewMessage(msg.Chat.ID, next))
		return
	}
	b.reply(msg.Chat.ID, next.Prompt())
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		slog.Warn("bot_callback_ack_failed", "error", err)
	}
	if q.From == nil || q.Message == nil {
		return
	}
	id := q.From.ID
	chatID := q.Message.Chat.ID

	switch data := q.Data; {
	case data == callbackCustom || data == callbackRestart:
		b.sessions.Put(id, BetAmountStep{})
		b.reply(chatID, BetAmountStep{}.Prompt())
	case data == callbackConfirm:
		b.confirm(ctx, chatID, id)
	case strings.HasPrefix(data, callbackPresetPrefix):
		amount, err := strconv.Atoi(strings.TrimPrefix(data, callbackPresetPrefix))
		if err != nil || amount <= 0 {
			return
		}
		b.preset(ctx, chatID, q.Message.MessageID, id, float64(amount))
	}
}

func (b *Bot) start(chatID int64) {
	row1 := []tgbotapi.InlineKeyboardButton{}
	row2 := []tgbotapi.InlineKeyboardButton{}
	for i, p := range Presets {
		btn := tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%dk", p/1000), callbackPresetPrefix+strconv.Itoa(p))
		if i < 2 {
			row1 = append(row1, btn)
		} else {
			row2 = append(row2, btn)
		}
	}
	row2 = append(row2, tgbotapi.NewInlineKeyboardButtonData("Custom", callbackCustom))

	m := tgbotapi.NewMessage(chatID, startText)
	m.ParseMode = tgbotapi.ModeMarkdown
	m.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(row1, row2)
	b.send(m)
}

// preset saves a quick budget choice with the default liquidity threshold,
// keeping any activity cap already configured.
func (b *Bot) preset(ctx context.Context, chatID int64, messageID int, id int64, amount float64) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	settings := registry.Settings{BudgetThreshold: amount, LiquidityThreshold: store.DefaultLiquidityThreshold}
	if cur, err := b.registry.Get(ctx, id); err == nil {
		settings.MaxMarketsTraded = cur.MaxMarketsTraded
	}
	if err := b.registry.SaveSettings(ctx, id, settings); err != nil {
		slog.Error("bot_save_failed", "subscriber", id, "error", err)
		b.reply(chatID, errorText)
		return
	}
	b.sessions.Delete(id)

	slog.Info("subscriber_configured", "subscriber", id, "budget_usd", amount)
	text := fmt.Sprintf("✅ Alert threshold set!\n\nYou'll be notified for trades over *%s*.\n\n"+
		"You can further tweak thresholds with:\n• `/set_liquidity_threshold`\n• `/set_max_markets_traded`\nUse /help for more options.",
		formatUSD(amount))
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	b.send(edit)
}

func (b *Bot) confirm(ctx context.Context, chatID, id int64) {
	step, ok := b.sessions.Get(id)
	review, isReview := step.(ReviewStep)
	if !ok || !isReview {
		b.reply(chatID, "⚠️ Nothing to confirm. Use /start to begin.")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	if err := b.registry.SaveSettings(ctx, id, review.Settings); err != nil {
		slog.Error("bot_save_failed", "subscriber", id, "error", err)
		b.reply(chatID, errorText)
		return
	}
	b.sessions.Delete(id)

	slog.Info("subscriber_configured",
		"subscriber", id,
		"budget_usd", review.Settings.BudgetThreshold,
		"liquidity_pct", review.Settings.LiquidityThreshold,
		"max_markets", review.Settings.MaxMarketsTraded,
	)
	b.reply(chatID, "✅ Settings saved. Monitoring is active.\n\n"+formatSettings(review.Settings))
}

func (b *Bot) info(ctx context.Context, chatID, id int64) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	sub, err := b.registry.Get(ctx, id)
	if errors.Is(err, registry.ErrNotFound) {
		b.reply(chatID, "⚠️ No alerts configured.\nUse /start or the setup commands to begin.")
		return
	}
	if err != nil {
		slog.Error("bot_info_failed", "subscriber", id, "error", err)
		b.reply(chatID, "❌ Error: could not get your settings. Please try again.")
		return
	}

	status := "active"
	if !sub.MonitoringActive {
		status = "paused"
	}
	b.reply(chatID, "*Your Polymarket Alert Settings:*\n\n"+formatSettings(registry.Settings{
		BudgetThreshold:    sub.BudgetThreshold,
		LiquidityThreshold: sub.LiquidityThreshold,
		MaxMarketsTraded:   sub.MaxMarketsTraded,
	})+"\n• Monitoring: *"+status+"*")
}

func (b *Bot) setMonitoring(ctx context.Context, chatID, id int64, active bool) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if _, err := b.registry.Get(ctx, id); errors.Is(err, registry.ErrNotFound) {
		b.reply(chatID, "⚠️ No alerts configured.\nUse /start or the setup commands to begin.")
		return
	}
	if err := b.registry.SetMonitoring(ctx, id, active); err != nil {
		slog.Error("bot_set_monitoring_failed", "subscriber", id, "error", err)
		b.reply(chatID, errorText)
		return
	}

	slog.Info("subscriber_monitoring_changed", "subscriber", id, "active", active)
	if active {
		b.reply(chatID, "▶️ Alerts resumed.")
	} else {
		b.reply(chatID, "⏸ Alerts paused. Use /resume to turn them back on.")
	}
}

// update runs a single-field registry write and confirms it.
// update applies a single-field write. A chat without saved settings gets
// a new active row with column defaults, so the reply spells those out.
func (b *Bot) update(ctx context.Context, chatID, id int64, write func(context.Context) error, confirmation string) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	_, err := b.registry.Get(ctx, id)
	created := errors.Is(err, registry.ErrNotFound)

	if err := write(ctx); err != nil {
		slog.Error("bot_update_failed", "chat", chatID, "error", err)
		b.reply(chatID, errorText)
		return
	}
	if created {
		slog.Info("subscriber_created", "subscriber", id)
		confirmation += "\n\n" + newSubscriberText
	}
	b.reply(chatID, confirmation)
}

func (b *Bot) reply(chatID int64, text string) {
	m := tgbotapi.NewMessage(chatID, text)
	m.ParseMode = tgbotapi.ModeMarkdown
	b.send(m)
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		slog.Warn("bot_send_failed", "error", err)
	}
}

func reviewMessage(chatID int64, step Step) tgbotapi.MessageConfig {
	m := tgbotapi.NewMessage(chatID, step.Prompt())
	m.ParseMode = tgbotapi.ModeMarkdown
	m.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ Confirm", callbackConfirm),
		tgbotapi.NewInlineKeyboardButtonData("🔄 Restart", callbackRestart),
	))
	return m
}

// subscriberID is the Telegram user id, which equals the private chat id
// alerts are delivered to.
func subscriberID(msg *tgbotapi.Message) int64 {
	if msg.From != nil {
		return msg.From.ID
	}
	return msg.Chat.ID
}

func usage(command, arg, example string) string {
	return fmt.Sprintf("⚠️ Usage: `/%s %s`\n_Example_: `/%s %s`", command, arg, command, example)
}

// newSubscriberText describes the defaults of a row created by a single
// /set command.
var newSubscriberText = fmt.Sprintf("ℹ️ Monitoring is now active. Settings you have not chosen use the defaults "+
	"(liquidity *%s%%*, no trade threshold, no market limit). Use /info to review them or /stop to pause.",
	strconv.FormatFloat(store.DefaultLiquidityThreshold, 'f', -1, 64))

const errorText = "❌ Error: could not save your settings. Please try again."

const startText = "🎯 Welcome to Polymarket Hunter!\n\n" +
	"Use buttons below *or* these commands:\n\n" +
	"`/set_trade_threshold <amount>` set trade threshold\n" +
	"`/set_liquidity_threshold <percent>` set liquidity threshold\n" +
	"`/set_max_markets_traded <number>` set max markets traded\n" +
	"/info show your current settings\n" +
	"/help show usage instructions"

const helpText = "*Polymarket Hunter Bot Help*\n\n" +
	"*Set Alerts:*\n• Tap quick buttons after /start or use commands below.\n\n" +
	"*Trade threshold:*\nUse `/set_trade_threshold <amount>` to set a minimum trade dollar amount.\n_Example_: `/set_trade_threshold 5000`\n\n" +
	"*Liquidity threshold:*\nUse `/set_liquidity_threshold <percent>` to alert when a trade takes at least that share of the order book.\n_Example_: `/set_liquidity_threshold 10`\n\n" +
	"*Max markets traded:*\nUse `/set_max_markets_traded <number>` to receive alerts only if the trader traded that many markets or fewer. 0 means no limit.\n_Example_: `/set_max_markets_traded 10`\n\n" +
	"*Pause:*\n/stop pauses alerts, /resume turns them back on.\n\n" +
	"*Info:*\nUse /info to check your settings."
