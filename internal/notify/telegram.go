package notify

import (
	"context"
	"fmt"
	"html"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// telegramSender is the part of *tgbotapi.BotAPI we use.
type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramDeliverer sends notifications to one chat.
type TelegramDeliverer struct {
	bot    telegramSender
	chatID int64
}

// NewTelegramDeliverer authenticates with token and sends to chatID.
func NewTelegramDeliverer(token string, chatID int64) (*TelegramDeliverer, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramDeliverer{bot: bot, chatID: chatID}, nil
}

// FormatTelegram renders title and message as Telegram HTML.
func FormatTelegram(title, message string) string {
	return fmt.Sprintf("🔔 <b>%s</b>\n\n%s", html.EscapeString(title), html.EscapeString(message))
}

func (t *TelegramDeliverer) Deliver(_ context.Context, _ int64, title, message string) error {
	msg := tgbotapi.NewMessage(t.chatID, FormatTelegram(title, message))
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
