package alert

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// BotSender is the part of *tgbotapi.BotAPI used to send messages.
type BotSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram is a Messenger backed by the Telegram Bot API.
type Telegram struct {
	api     BotSender
	limiter *rate.Limiter
}

// NewTelegram creates a Telegram messenger sending at most rps messages per second.
func NewTelegram(api BotSender, rps float64) *Telegram {
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &Telegram{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Send delivers msg as Markdown with the links as inline URL buttons.
// Provider failures are returned as *DeliveryError.
func (t *Telegram) Send(ctx context.Context, msg Message) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	cfg := tgbotapi.NewMessage(msg.Recipient, msg.Text)
	cfg.ParseMode = tgbotapi.ModeMarkdown
	cfg.DisableWebPagePreview = true
	if len(msg.Links) > 0 {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(msg.Links))
		for _, l := range msg.Links {
			row = append(row, tgbotapi.NewInlineKeyboardButtonURL(l.Text, l.URL))
		}
		cfg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(row)
	}

	if _, err := t.api.Send(cfg); err != nil {
		return wrapAPIError(err)
	}
	return nil
}

// wrapAPIError converts Telegram API errors into *DeliveryError.
func wrapAPIError(err error) error {
	var ptr *tgbotapi.Error
	if errors.As(err, &ptr) {
		return &DeliveryError{StatusCode: ptr.Code, Description: ptr.Message, Err: err}
	}
	var val tgbotapi.Error
	if errors.As(err, &val) {
		return &DeliveryError{StatusCode: val.Code, Description: val.Message, Err: err}
	}
	return fmt.Errorf("telegram send: %w", err)
}
