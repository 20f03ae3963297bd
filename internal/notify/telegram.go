// Package notify delivers messages to members over Telegram.
package notify

import (
	"context"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"family-tasks/internal/service"
)

// TelegramNotifier sends HTML messages through the bot API. Delivery
// is best-effort: a member who blocked the bot produces a soft
// failure, not an error for the caller.
type TelegramNotifier struct {
	api *tgbotapi.BotAPI
}

func NewTelegramNotifier(api *tgbotapi.BotAPI) *TelegramNotifier {
	return &TelegramNotifier{api: api}
}

func (n *TelegramNotifier) Notify(ctx context.Context, chatID int64, text string) service.DeliveryResult {
	if err := ctx.Err(); err != nil {
		return service.DeliveryResult{Err: err}
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := n.api.Send(msg); err != nil {
		log.Printf("deliver to %d: %v", chatID, err)
		return service.DeliveryResult{Err: err}
	}
	return service.DeliveryResult{Delivered: true}
}
