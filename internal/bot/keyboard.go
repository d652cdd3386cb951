package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"landed-bot/internal/orders"
)

func (b *Bot) createOrderLineKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnDone),
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
}

func (b *Bot) createCustomerKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
}

func (b *Bot) createConfirmationKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnConfirm),
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
}

// createOrderActionsKeyboard offers the status moves allowed from the
// order's current status, plus re-pricing while it is open.
func (b *Bot) createOrderActionsKeyboard(orderID int64, current orders.Status) tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	for _, next := range orders.Statuses() {
		if !orders.CanTransition(current, next) {
			continue
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			statusLabels[next],
			fmt.Sprintf("%s:%d:%s", callbackStatus, orderID, next),
		))
	}

	rows := [][]tgbotapi.InlineKeyboardButton{}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	if !current.Closed() {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔁 Reprice", fmt.Sprintf("%s:%d", callbackReprice, orderID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

var statusLabels = map[orders.Status]string{
	orders.StatusNew:        "🆕 New",
	orders.StatusProcessing: "🔄 Processing",
	orders.StatusShipped:    "🚚 Shipped",
	orders.StatusCompleted:  "✅ Completed",
	orders.StatusCancelled:  "❌ Cancel",
}
