package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"landed-bot/internal/orders"
)

func (b *Bot) handleOrderStart(ctx context.Context, chatID int64) {
	if err := b.state.Save(ctx, chatID, UserState{Step: StepOrderLine}); err != nil {
		b.logger.Error("Failed to start order dialog",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		b.sendError(chatID, "Could not start a new order")
		return
	}

	msg := tgbotapi.NewMessage(chatID, "🛒 New order.\n\n"+
		"Send one line per message:\n<CUR> <unit price> [kg] [LxWxH] [*qty] [sku=...]\n"+
		"Example: EUR 49.90 0.4 30x20x10 *2\n\n"+
		"Press "+btnDone+" when all lines are in.")
	msg.ReplyMarkup = b.createOrderLineKeyboard()
	b.sendMessage(msg)
}

func (b *Bot) handleOrderLine(ctx context.Context, chatID int64, text string) {
	state, err := b.state.Get(ctx, chatID)
	if err != nil {
		b.logger.Error("Failed to get order state",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		b.sendError(chatID, "Could not read the draft order")
		return
	}

	switch text {
	case btnCancel:
		b.handleCancel(ctx, chatID)
		return
	case btnDone:
		if len(state.Lines) == 0 {
			b.sendError(chatID, "Add at least one line first")
			return
		}
		state.Step = StepOrderCustomer
		if err := b.state.Save(ctx, chatID, state); err != nil {
			b.logger.Error("Failed to save order state",
				zap.Int64("chat_id", chatID),
				zap.Error(err))
			b.sendError(chatID, "Could not save the draft order")
			return
		}

		msg := tgbotapi.NewMessage(chatID, "Who is the customer? Send a name or contact, or press "+btnSkip+".")
		msg.ReplyMarkup = b.createCustomerKeyboard()
		b.sendMessage(msg)
		return
	}

	if len(state.Lines) >= maxOrderLines {
		b.sendError(chatID, fmt.Sprintf("An order can have at most %d lines", maxOrderLines))
		return
	}

	line, err := ParseOrderLine(text)
	if err != nil {
		b.sendError(chatID, err.Error())
		return
	}

	lines := append(state.Lines, line)
	breakdown, err := b.orders.QuoteLines(ctx, lines)
	if err != nil {
		if msg, ok := userMessage(err); ok {
			b.sendError(chatID, msg)
			return
		}
		b.logger.Error("Failed to quote draft order",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		b.sendError(chatID, "Could not compute a price")
		return
	}

	state.Lines = lines
	if err := b.state.Save(ctx, chatID, state); err != nil {
		b.logger.Error("Failed to save order line",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		b.sendError(chatID, "Could not save the line")
		return
	}

	b.sendHTML(chatID, fmt.Sprintf("➕ Line %d added. Running total: <b>%s</b>",
		len(state.Lines), money(breakdown.FinalPriceLocal)))
}

func (b *Bot) handleOrderCustomer(ctx context.Context, chatID int64, text string) {
	if text == btnCancel {
		b.handleCancel(ctx, chatID)
		return
	}

	state, err := b.state.Get(ctx, chatID)
	if err != nil {
		b.logger.Error("Failed to get order state",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		b.sendError(chatID, "Could not read the draft order")
		return
	}

	if text != btnSkip {
		state.Customer = strings.TrimSpace(text)
	}

	breakdown, err := b.orders.QuoteLines(ctx, state.Lines)
	if err != nil {
		b.logger.Error("Failed to quote draft order",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		b.sendError(chatID, "Could not compute a price")
		return
	}

	state.Step = StepOrderConfirm
	if err := b.state.Save(ctx, chatID, state); err != nil {
		b.logger.Error("Failed to save order state",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		b.sendError(chatID, "Could not save the draft order")
		return
	}

	msg := tgbotapi.NewMessage(chatID, FormatBreakdown(breakdown)+"\n\nSave this order?")
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = b.createConfirmationKeyboard()
	b.sendMessage(msg)
}

func (b *Bot) handleOrderConfirm(ctx context.Context, chatID int64, text string) {
	switch text {
	case btnCancel:
		b.handleCancel(ctx, chatID)
		return
	case btnConfirm:
	default:
		b.sendError(chatID, "Press "+btnConfirm+" or "+btnCancel)
		return
	}

	state, err := b.state.Get(ctx, chatID)
	if err != nil || len(state.Lines) == 0 {
		b.logger.Error("Failed to get order state",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		b.sendError(chatID, "The draft order expired, start again with /order")
		return
	}

	order, _, err := b.orders.PriceOrder(ctx, orders.OrderRequest{
		ChatID:   chatID,
		Customer: state.Customer,
		Lines:    state.Lines,
	})
	if err != nil {
		if msg, ok := userMessage(err); ok {
			b.sendError(chatID, msg)
			return
		}
		b.logger.Error("Failed to save order",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		b.sendError(chatID, "Could not save the order")
		return
	}

	if err := b.state.Clear(ctx, chatID); err != nil {
		b.logger.Error("Failed to clear order state",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
	}

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("✅ Order #%d saved at %s.", order.ID, money(order.Breakdown.FinalPriceLocal)))
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	b.sendMessage(msg)

	go b.NotifyNewOrder(context.WithoutCancel(ctx), order)
}
