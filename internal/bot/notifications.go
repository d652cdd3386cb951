package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"landed-bot/internal/orders"
	"landed-bot/internal/storage"
)

// NotifyNewOrder sends the order with its action buttons to every admin and
// a short line to the channel, if one is configured.
func (b *Bot) NotifyNewOrder(ctx context.Context, order storage.Order) {
	for _, adminID := range b.cfg.Admin.IDs {
		if adminID == 0 {
			continue
		}
		b.sendAdminNotification(adminID, order)
	}

	if b.cfg.Admin.ChannelID == 0 {
		b.logger.Debug("Channel notifications disabled - no channel ID configured")
		return
	}

	text := fmt.Sprintf("📦 New order #%d · %d lines · %s",
		order.ID, len(order.Lines), money(order.Breakdown.FinalPriceLocal))
	if order.ExternalRef != "" {
		text += " · ref " + order.ExternalRef
	}

	if _, err := b.bot.Send(tgbotapi.NewMessage(b.cfg.Admin.ChannelID, text)); err != nil {
		b.logger.Error("Failed to send channel notification",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}
}

func (b *Bot) sendAdminNotification(chatID int64, order storage.Order) {
	msg := tgbotapi.NewMessage(chatID, FormatOrder(order))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = b.createOrderActionsKeyboard(order.ID, orders.Status(order.Status))

	if _, err := b.bot.Send(msg); err != nil {
		b.logger.Error("Failed to send admin notification",
			zap.Int64("chat_id", chatID),
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}
}

// NotifyStatusChange tells the chat that placed the order about a new status.
func (b *Bot) NotifyStatusChange(order storage.Order, actorChatID int64) {
	if order.ChatID == 0 || order.ChatID == actorChatID {
		return
	}

	text := fmt.Sprintf("ℹ️ Order #%d is now: %s", order.ID, order.Status)
	if _, err := b.bot.Send(tgbotapi.NewMessage(order.ChatID, text)); err != nil {
		b.logger.Warn("Failed to notify about status change",
			zap.Int64("chat_id", order.ChatID),
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}
}
