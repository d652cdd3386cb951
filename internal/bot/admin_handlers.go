package bot

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"landed-bot/internal/orders"
	"landed-bot/internal/pricing"
)

func (b *Bot) handleAdminCommand(ctx context.Context, chatID int64, cmd string, args string) {
	if !b.isAdmin(chatID) {
		return
	}

	fields := strings.Fields(args)

	switch cmd {
	case "settings":
		b.handleShowSettings(ctx, chatID)
	case "set":
		b.handleSetSetting(ctx, chatID, fields)
	case "fx":
		b.handleFxUpdate(ctx, chatID, args)
	case "view":
		b.withOrderID(chatID, fields, "/view <id>", func(id int64) {
			b.handleViewOrder(ctx, chatID, id)
		})
	case "reprice":
		b.withOrderID(chatID, fields, "/reprice <id>", func(id int64) {
			b.handleReprice(ctx, chatID, id)
		})
	case "status":
		if len(fields) < 2 {
			b.sendError(chatID, "Usage: /status <id> <new|processing|shipped|completed|cancelled>")
			return
		}
		b.withOrderID(chatID, fields, "/status <id> <status>", func(id int64) {
			b.handleStatusUpdate(ctx, chatID, id, fields[1])
		})
	case "profit":
		b.withOrderID(chatID, fields, "/profit <id> [overrides...]", func(id int64) {
			b.handleOrderProfit(ctx, chatID, id, fields[1:])
		})
	case "report":
		b.handlePeriodReport(ctx, chatID, args)
	case "stats":
		b.handleOrderStats(ctx, chatID)
	case "orders":
		b.handleRecentOrders(ctx, chatID, fields)
	case "history":
		b.withOrderID(chatID, fields, "/history <id>", func(id int64) {
			b.handleSnapshotHistory(ctx, chatID, id)
		})
	default:
		b.sendError(chatID, "Unknown admin command")
	}
}

func (b *Bot) withOrderID(chatID int64, fields []string, usage string, fn func(id int64)) {
	if len(fields) == 0 {
		b.sendError(chatID, "Usage: "+usage)
		return
	}
	id, err := parseOrderID(fields[0])
	if err != nil {
		b.sendError(chatID, err.Error())
		return
	}
	fn(id)
}

// replyFailure reports err to the operator, logging it when it is not
// something they caused.
func (b *Bot) replyFailure(chatID int64, action string, err error, fields ...zap.Field) {
	if text, ok := userMessage(err); ok {
		b.sendError(chatID, text)
		return
	}
	b.logger.Error("Failed to "+action, append(fields, zap.Int64("chat_id", chatID), zap.Error(err))...)
	b.sendError(chatID, "Failed to "+action)
}

func (b *Bot) handleShowSettings(ctx context.Context, chatID int64) {
	cfg, err := b.store.PricingSettings(ctx)
	if err != nil {
		b.replyFailure(chatID, "load settings", err)
		return
	}
	b.sendHTML(chatID, FormatSettings(cfg))
}

func (b *Bot) handleSetSetting(ctx context.Context, chatID int64, fields []string) {
	if len(fields) == 1 && fields[0] == "keys" {
		b.sendMessage(tgbotapi.NewMessage(chatID, "Settings:\n"+strings.Join(settingKeys(), "\n")))
		return
	}
	if len(fields) != 2 {
		b.sendError(chatID, "Usage: /set <key> <value>, /set keys lists them")
		return
	}

	key, value := fields[0], fields[1]
	cfg, err := b.store.UpdatePricingSettings(ctx, chatID, func(cfg *pricing.Configuration) error {
		return applySetting(cfg, key, value)
	})
	if err != nil {
		if text, ok := userMessage(err); ok {
			b.sendError(chatID, text)
			return
		}
		// applySetting errors are operator input problems as well.
		b.logger.Warn("Setting update rejected",
			zap.Int64("chat_id", chatID),
			zap.String("key", key),
			zap.Error(err))
		b.sendError(chatID, err.Error())
		return
	}

	b.logger.Info("Pricing setting changed",
		zap.Int64("chat_id", chatID),
		zap.String("key", key),
		zap.String("value", value))
	b.sendHTML(chatID, "✅ Saved.\n\n"+FormatSettings(cfg))
}

func (b *Bot) handleFxUpdate(ctx context.Context, chatID int64, args string) {
	var rates map[string]float64

	if strings.TrimSpace(args) != "" {
		parsed, err := ParseFxRates(args)
		if err != nil {
			b.sendError(chatID, err.Error())
			return
		}
		rates = parsed
	} else {
		current, err := b.store.PricingSettings(ctx)
		if err != nil {
			b.replyFailure(chatID, "load settings", err)
			return
		}

		symbols := make([]string, 0, len(current.FxRate))
		for code := range current.FxRate {
			symbols = append(symbols, code)
		}
		sort.Strings(symbols)

		quote, err := b.rates.Latest(ctx, current.LocalCurrency, symbols)
		if err != nil {
			b.logger.Error("Failed to fetch FX rates",
				zap.Strings("symbols", symbols),
				zap.Error(err))
			b.sendError(chatID, "FX provider unavailable, set rates manually: /fx EUR=4.05 USD=3.6")
			return
		}
		rates = quote.Rates
	}

	cfg, err := b.store.UpdateFxRates(ctx, rates, chatID)
	if err != nil {
		b.replyFailure(chatID, "update FX rates", err)
		return
	}

	b.logger.Info("FX rates updated",
		zap.Int64("chat_id", chatID),
		zap.Any("rates", rates))
	b.sendHTML(chatID, "✅ FX rates updated.\n\n"+FormatSettings(cfg))
}

func (b *Bot) handleViewOrder(ctx context.Context, chatID int64, orderID int64) {
	order, err := b.orders.Order(ctx, orderID)
	if err != nil {
		b.replyFailure(chatID, "load order", err, zap.Int64("order_id", orderID))
		return
	}
	b.sendAdminNotification(chatID, order)
}

func (b *Bot) handleReprice(ctx context.Context, chatID int64, orderID int64) {
	before, err := b.orders.Order(ctx, orderID)
	if err != nil {
		b.replyFailure(chatID, "load order", err, zap.Int64("order_id", orderID))
		return
	}

	order, err := b.orders.Reprice(ctx, orderID, nil)
	if err != nil {
		b.replyFailure(chatID, "reprice order", err, zap.Int64("order_id", orderID))
		return
	}

	b.sendHTML(chatID, fmt.Sprintf("🔁 Order #%d repriced: %s → <b>%s</b>",
		orderID, money(before.Breakdown.FinalPriceLocal), money(order.Breakdown.FinalPriceLocal)))
	b.sendAdminNotification(chatID, order)
}

func (b *Bot) handleStatusUpdate(ctx context.Context, chatID int64, orderID int64, newStatus string) {
	status, err := orders.ParseStatus(newStatus)
	if err != nil {
		b.sendError(chatID, "Unknown status. Use new, processing, shipped, completed or cancelled")
		return
	}

	order, err := b.orders.UpdateStatus(ctx, orderID, status)
	if err != nil {
		b.replyFailure(chatID, "update status", err,
			zap.Int64("order_id", orderID),
			zap.String("status", newStatus))
		return
	}

	b.sendMessage(tgbotapi.NewMessage(chatID, fmt.Sprintf("✅ Order #%d is now %s", orderID, status)))
	b.NotifyStatusChange(order, chatID)
}

func (b *Bot) handleOrderProfit(ctx context.Context, chatID int64, orderID int64, overrides []string) {
	a, err := ParseAssumptions(overrides)
	if err != nil {
		b.sendError(chatID, err.Error())
		return
	}

	profit, err := b.reports.OrderProfit(ctx, orderID, a)
	if err != nil {
		b.replyFailure(chatID, "reconcile order", err, zap.Int64("order_id", orderID))
		return
	}
	b.sendHTML(chatID, FormatOrderProfit(profit))
}

func (b *Bot) handlePeriodReport(ctx context.Context, chatID int64, args string) {
	req, err := ParseReportArgs(args, time.Now(), b.loc)
	if err != nil {
		b.sendError(chatID, err.Error())
		return
	}

	rep, err := b.reports.PeriodProfit(ctx, req.From, req.To, req.Period, req.Assumptions)
	if err != nil {
		b.replyFailure(chatID, "build report", err)
		return
	}
	b.sendHTML(chatID, FormatPeriodReport(rep))
}

func (b *Bot) handleOrderStats(ctx context.Context, chatID int64) {
	stats, err := b.store.GetOrderStatistics(ctx)
	if err != nil {
		b.logger.Error("Failed to get order statistics", zap.Error(err))
		b.sendError(chatID, "Failed to load statistics")
		return
	}
	b.sendHTML(chatID, FormatStats(stats))
}

func (b *Bot) handleRecentOrders(ctx context.Context, chatID int64, fields []string) {
	limit := recentOrdersLimit
	if len(fields) > 0 {
		n, err := strconv.Atoi(fields[0])
		if err != nil || n <= 0 {
			b.sendError(chatID, "Usage: /orders [count]")
			return
		}
		limit = min(n, maxRecentOrders)
	}

	list, err := b.store.ListOrders(ctx, limit)
	if err != nil {
		b.replyFailure(chatID, "list orders", err)
		return
	}
	b.sendHTML(chatID, FormatOrderList(list))
}

func (b *Bot) handleSnapshotHistory(ctx context.Context, chatID int64, orderID int64) {
	history, err := b.store.SnapshotHistory(ctx, orderID)
	if err != nil {
		b.replyFailure(chatID, "load pricing history", err, zap.Int64("order_id", orderID))
		return
	}
	b.sendHTML(chatID, FormatSnapshotHistory(orderID, history))
}

// handleAdminCallback serves the inline buttons under order notifications
// and returns the text for the callback answer.
func (b *Bot) handleAdminCallback(ctx context.Context, chatID int64, data string) string {
	if !b.isAdmin(chatID) {
		return "Not allowed"
	}

	parts := strings.Split(data, ":")
	if len(parts) < 2 {
		return "Unknown action"
	}
	orderID, err := parseOrderID(parts[1])
	if err != nil {
		return "Unknown order"
	}

	switch {
	case parts[0] == callbackStatus && len(parts) == 3:
		b.handleStatusUpdate(ctx, chatID, orderID, parts[2])
		return "Status updated"
	case parts[0] == callbackReprice:
		b.handleReprice(ctx, chatID, orderID)
		return "Repriced"
	default:
		return "Unknown action"
	}
}
