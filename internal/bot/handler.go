package bot

import (
	"context"
	"errors"
	"fmt"

	"landed-bot/internal/orders"
	"landed-bot/internal/pricing"
	"landed-bot/internal/report"
	"landed-bot/internal/storage"
)

func (b *Bot) handleCommand(ctx context.Context, chatID int64, command, args string) {
	switch command {
	case "start":
		b.handleStart(ctx, chatID)
	case "help":
		b.handleHelp(ctx, chatID)
	case "quote":
		b.handleQuote(ctx, chatID, args)
	case "order":
		b.handleOrderStart(ctx, chatID)
	case "cancel":
		b.handleCancel(ctx, chatID)
	default:
		if b.isAdmin(chatID) {
			b.handleAdminCommand(ctx, chatID, command, args)
			return
		}
		b.handleUnknownCommand(ctx, chatID)
	}
}

func (b *Bot) handleDefault(ctx context.Context, chatID int64) {
	b.sendError(chatID, "I don't understand that. Use /help to see the commands.")
}

func (b *Bot) handleUnknownCommand(ctx context.Context, chatID int64) {
	b.sendError(chatID, "Unknown command. Use /help to see the commands.")
}

// userMessage turns an error into something an operator can act on. It
// returns false for internal failures, which should be logged instead.
func userMessage(err error) (string, bool) {
	var inputErr *pricing.InvalidInputError
	var cfgErr *pricing.ConfigError
	switch {
	case errors.As(err, &inputErr):
		return fmt.Sprintf("Invalid %s: %s", inputErr.Field, inputErr.Reason), true
	case errors.As(err, &cfgErr):
		return fmt.Sprintf("Settings rejected: %s", cfgErr.Error()), true
	case errors.Is(err, pricing.ErrCurrencyMismatch):
		return "All lines of an order must use the same currency", true
	case errors.Is(err, storage.ErrNotFound):
		return "Order not found", true
	case errors.Is(err, report.ErrNotPriced):
		return "This order has no pricing snapshot yet", true
	case errors.Is(err, orders.ErrOrderClosed):
		return "The order is closed and can no longer be changed", true
	case errors.Is(err, orders.ErrInvalidTransition), errors.Is(err, orders.ErrUnknownStatus):
		return err.Error(), true
	}
	return "", false
}
