package notification

import (
	"context"
	"fmt"

	"questrent/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramNotifier sends operator alerts to a dedicated admin chat.
type TelegramNotifier struct {
	Bot         *tgbotapi.BotAPI
	AdminChatID int64
}

func NewTelegramNotifier(bot *tgbotapi.BotAPI, adminChatID int64) *TelegramNotifier {
	return &TelegramNotifier{Bot: bot, AdminChatID: adminChatID}
}

// NotifyNewBooking sends the operator a summary of a freshly committed
// booking.
func (n *TelegramNotifier) NotifyNewBooking(ctx context.Context, b *models.Booking) error {
	username := b.Username
	if username == "" {
		username = "no username"
	}
	name := b.FirstName
	if name == "" {
		name = "unknown"
	}

	text := fmt.Sprintf(
		"New headset booking!\n\nCustomer: %s (@%s)\nHeadsets: %d\nPeriod: %s – %s (%d d.)\nPrice: %d\nDelivery: %s\nOrder ID: %s\n\nStatus: pending confirmation",
		name, username,
		b.Units,
		b.StartDate.Format("02.01.2006"), b.EndDate.Format("02.01.2006"), b.Days,
		b.Price, b.DeliveryAddress, b.ID)

	msg := tgbotapi.NewMessage(n.AdminChatID, text)
	if _, err := n.Bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send admin notification: %w", err)
	}
	return nil
}
