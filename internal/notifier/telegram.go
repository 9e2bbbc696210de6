package notifier

import (
	"context"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// TelegramNotifier sends messages through the Bot API. Each call is bounded
// by the HTTP client timeout so a hung request cannot stall its caller.
type TelegramNotifier struct {
	bot *tgbotapi.BotAPI
	log *zap.Logger
}

// NewTelegramNotifier validates the token with getMe before returning.
func NewTelegramNotifier(token, apiEndpoint string, timeout time.Duration, log *zap.Logger) (*TelegramNotifier, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if apiEndpoint == "" {
		apiEndpoint = tgbotapi.APIEndpoint
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, apiEndpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, err
	}

	return &TelegramNotifier{
		bot: bot,
		log: log.With(zap.String("notifier", "telegram"), zap.String("bot", bot.Self.UserName)),
	}, nil
}

func (n *TelegramNotifier) Deliver(ctx context.Context, endpointID, text string) {
	chatID, err := strconv.ParseInt(endpointID, 10, 64)
	if err != nil {
		n.log.Warn("Invalid chat ID, message dropped", zap.String("chat_id", endpointID), zap.Error(err))
		return
	}
	if ctx.Err() != nil {
		n.log.Warn("Context done, message dropped", zap.String("chat_id", endpointID), zap.Error(ctx.Err()))
		return
	}

	if _, err := n.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		n.log.Error("Failed to send Telegram message", zap.String("chat_id", endpointID), zap.Error(err))
	}
}

// New returns a Telegram notifier, or a LogNotifier when the token is empty
// or rejected by the Bot API.
func New(token, apiEndpoint string, timeout time.Duration, log *zap.Logger) Notifier {
	if token == "" {
		log.Warn("TELEGRAM_BOT_TOKEN is not set, chat replies will only be logged")
		return NewLogNotifier(log)
	}
	n, err := NewTelegramNotifier(token, apiEndpoint, timeout, log)
	if err != nil {
		log.Error("Failed to initialise Telegram bot, chat replies will only be logged", zap.Error(err))
		return NewLogNotifier(log)
	}
	return n
}
