package notify

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// MessageSender часть telegram-клиента для отправки сообщений, *bot.Bot подходит
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramDispatcher отправляет уведомления в личный чат получателя
type TelegramDispatcher struct {
	sender MessageSender
}

func NewTelegramDispatcher(sender MessageSender) *TelegramDispatcher {
	return &TelegramDispatcher{sender: sender}
}

func (d *TelegramDispatcher) Dispatch(ctx context.Context, n Notification) error {
	if n.Recipient == nil || n.Recipient.TelegramID == nil {
		return ErrNoChannel
	}

	_, err := d.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: *n.Recipient.TelegramID,
		Text:   n.Text,
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	return nil
}
