package bot

import "time"

const (
	StepIdle          = ""
	StepOrderLine     = "order_line"
	StepOrderCustomer = "order_customer"
	StepOrderConfirm  = "order_confirm"
)

const (
	btnDone    = "✅ Done"
	btnConfirm = "✅ Confirm order"
	btnCancel  = "❌ Cancel"
	btnSkip    = "Skip"
)

const (
	callbackStatus  = "status"
	callbackReprice = "reprice"
)

const (
	quoteRateLimit    = 20
	quoteRateWindow   = time.Minute
	maxOrderLines     = 50
	recentOrdersLimit = 10
	maxRecentOrders   = 50
)
