package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const quoteUsage = "Usage: /quote <CUR> <price> [weight kg] [LxWxH cm] [*qty]\nExample: /quote EUR 50 0.4 30x20x10"

func (b *Bot) handleStart(ctx context.Context, chatID int64) {
	if err := b.state.Clear(ctx, chatID); err != nil {
		b.logger.Error("Failed to clear state",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
	}

	msg := tgbotapi.NewMessage(chatID, "👋 Landed-cost pricing console.\n\n"+
		"/quote prices a product without saving it.\n"+
		"/order walks you through a new order.\n\n"+
		"Use /help for the full list.")
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	b.sendMessage(msg)
}

func (b *Bot) handleHelp(ctx context.Context, chatID int64) {
	text := `Commands:
/quote <CUR> <price> [kg] [LxWxH] [*qty] - price preview
/order - create an order line by line
/cancel - abort the current dialog`

	if b.isAdmin(chatID) {
		text += `

Admin:
/settings - show pricing settings
/set <key> <value> - change one setting (/set keys to list them)
/fx [CODE=rate ...] - update FX rates, from the provider if none given
/view <id> - show an order
/reprice <id> - price an open order again with current settings
/status <id> <new|processing|shipped|completed|cancelled>
/profit <id> [fee=gross|final|net domvat=yes refund=40 ...]
/report [from] [to] [day|week|month] [overrides...]
/stats - order statistics
/orders [count] - recent orders
/history <id> - every pricing of an order`
	}
	b.sendMessage(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) handleCancel(ctx context.Context, chatID int64) {
	if err := b.state.Clear(ctx, chatID); err != nil {
		b.logger.Error("Failed to clear state on cancel",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
	}

	msg := tgbotapi.NewMessage(chatID, "Cancelled.")
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	b.sendMessage(msg)
}

func (b *Bot) handleQuote(ctx context.Context, chatID int64, args string) {
	if strings.TrimSpace(args) == "" {
		b.sendMessage(tgbotapi.NewMessage(chatID, quoteUsage))
		return
	}

	limited, err := b.store.CheckRateLimit(ctx, chatID, "quote", quoteRateLimit, quoteRateWindow)
	if err != nil {
		b.logger.Warn("Rate limit check failed",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
	}
	if limited {
		b.sendError(chatID, "Too many quotes, try again in a minute")
		return
	}

	in, err := ParseProductInput(args)
	if err != nil {
		if text, ok := userMessage(err); ok {
			b.sendError(chatID, text)
			return
		}
		b.sendError(chatID, err.Error()+"\n\n"+quoteUsage)
		return
	}

	breakdown, err := b.orders.Quote(ctx, in)
	if err != nil {
		if text, ok := userMessage(err); ok {
			b.sendError(chatID, text)
			return
		}
		b.logger.Error("Failed to quote",
			zap.Int64("chat_id", chatID),
			zap.Any("input", in),
			zap.Error(err))
		b.sendError(chatID, "Could not compute a price")
		return
	}

	b.sendHTML(chatID, FormatBreakdown(breakdown))
}
