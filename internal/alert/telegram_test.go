package alert

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/polyinsider/hunter/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestBot starts a fake Bot API answering sendMessage with sendBody.
func newTestBot(t *testing.T, sendStatus int, sendBody string, sent *atomic.Int32) *tgbotapi.BotAPI {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"hunter","username":"hunter_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			sent.Add(1)
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "42", r.PostForm.Get("chat_id"))
			assert.Equal(t, tgbotapi.ModeMarkdown, r.PostForm.Get("parse_mode"))
			assert.Contains(t, r.PostForm.Get("reply_markup"), "https://polymarket.com/event/some-event")
			w.WriteHeader(sendStatus)
			w.Write([]byte(sendBody))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	api, err := tgbotapi.NewBotAPIWithClient("TOKEN", srv.URL+"/bot%s/%s", srv.Client())
	require.NoError(t, err)
	return api
}

func TestTelegramSend(t *testing.T) {
	var sent atomic.Int32
	api := newTestBot(t, http.StatusOK,
		`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`, &sent)

	tg := NewTelegram(api, 100)
	err := tg.Send(context.Background(), Format(sampleMatch()))
	require.NoError(t, err)
	assert.Equal(t, int32(1), sent.Load())
}

func TestTelegramSendBlocked(t *testing.T) {
	var sent atomic.Int32
	api := newTestBot(t, http.StatusForbidden,
		`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`, &sent)

	tg := NewTelegram(api, 100)
	err := tg.Send(context.Background(), Format(sampleMatch()))
	require.Error(t, err)

	var de *DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 403, de.StatusCode)
	assert.True(t, de.Revoked())
	assert.Equal(t, store.PermanentFailure, Classify(err))
}

func TestTelegramSendBadRequest(t *testing.T) {
	var sent atomic.Int32
	api := newTestBot(t, http.StatusBadRequest,
		`{"ok":false,"error_code":400,"description":"Bad Request: can't parse entities"}`, &sent)

	tg := NewTelegram(api, 100)
	err := tg.Send(context.Background(), Format(sampleMatch()))
	assert.Equal(t, store.TransientFailure, Classify(err))
}
