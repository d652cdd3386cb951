package bot

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"landed-bot/internal/pricing"
	"landed-bot/internal/report"
	"landed-bot/internal/storage"
)

var printer = message.NewPrinter(language.English)

func money(v float64) string {
	return printer.Sprintf("%.2f", v)
}

func moneyDec(d decimal.Decimal) string {
	return printer.Sprintf("%.2f", d.Round(2).InexactFloat64())
}

func pct(v float64) string {
	return printer.Sprintf("%.1f%%", v*100)
}

func FormatBreakdown(b pricing.Breakdown) string {
	r := b.Rates
	local := html.EscapeString(r.LocalCurrency)

	var sb strings.Builder
	fmt.Fprintf(&sb, "💰 <b>Final price: %s %s</b>\n\n", money(b.FinalPriceLocal), local)

	if r.Currency != "" && r.FxRate > 0 {
		fmt.Fprintf(&sb, "Base: %s (%s @ %s)\n", money(b.BaseLocal), html.EscapeString(r.Currency), printer.Sprintf("%.4f", r.FxRate))
	} else {
		fmt.Fprintf(&sb, "Base: %s\n", money(b.BaseLocal))
	}
	fmt.Fprintf(&sb, "FX fee: %s\n", money(b.FxCost))
	if b.BrandFee > 0 {
		fmt.Fprintf(&sb, "Brand fee: %s\n", money(b.BrandFee))
	}
	fmt.Fprintf(&sb, "Weight: %s kg real, %s kg volumetric, %s kg charged\n",
		printer.Sprintf("%.2f", b.RealWeightKg), printer.Sprintf("%.2f", b.VolumetricWeightKg), printer.Sprintf("%.1f", b.ChargeableKg))
	fmt.Fprintf(&sb, "Intl shipping: %s (%s/kg)\n", money(b.IntlShip), money(r.ShippingRatePerKg))
	fmt.Fprintf(&sb, "Declared: $%s\n", money(b.DeclaredUSD))
	fmt.Fprintf(&sb, "Customs: %s\n", money(b.CustomsLocal))
	fmt.Fprintf(&sb, "Import VAT: %s\n", money(b.ImportVatLocal))
	fmt.Fprintf(&sb, "Fixed fees: %s\n", money(b.FixedFeesLocal))
	fmt.Fprintf(&sb, "Buffer: %s\n", money(b.BufferLocal))
	fmt.Fprintf(&sb, "<b>Cost ex VAT: %s</b>\n\n", money(b.CostExVat))

	fmt.Fprintf(&sb, "Required profit: %s (%s)\n", money(b.RequiredProfit), html.EscapeString(string(r.ProfitMode)))
	fmt.Fprintf(&sb, "Price ex VAT: %s\n", money(b.PriceExVat))
	fmt.Fprintf(&sb, "Price incl. VAT: %s\n", money(b.PriceGross))
	if b.DomesticCharge > 0 {
		fmt.Fprintf(&sb, "Domestic shipping: %s\n", money(b.DomesticCharge))
	} else {
		sb.WriteString("Domestic shipping: free\n")
	}
	fmt.Fprintf(&sb, "Before rounding: %s\n\n", money(b.FinalPreRound))

	fmt.Fprintf(&sb, "Processor fees: %s\n", money(b.ProcessorFees))
	fmt.Fprintf(&sb, "<b>Net profit: %s (%s of final)</b>", money(b.NetProfit), pct(b.ProfitPctOfFinal))
	if b.NetProfit < 0 {
		sb.WriteString("\n⚠️ This price loses money")
	}
	return sb.String()
}

func FormatOrder(order storage.Order) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📦 <b>Order #%d</b> · %s\n", order.ID, html.EscapeString(order.Status))
	if order.Customer != "" {
		fmt.Fprintf(&sb, "Customer: %s\n", html.EscapeString(order.Customer))
	}
	if order.ExternalRef != "" {
		fmt.Fprintf(&sb, "Ref: %s\n", html.EscapeString(order.ExternalRef))
	}
	if !order.CreatedAt.IsZero() {
		fmt.Fprintf(&sb, "Created: %s\n", order.CreatedAt.Format("02.01.2006 15:04"))
	}

	sb.WriteString("\n")
	for i, l := range order.Lines {
		fmt.Fprintf(&sb, "%d. %s %s × %d", i+1, html.EscapeString(l.Currency), money(l.UnitPrice), l.Quantity)
		if l.SKU != "" {
			fmt.Fprintf(&sb, " [%s]", html.EscapeString(l.SKU))
		}
		if l.UnitWeightKg > 0 {
			fmt.Fprintf(&sb, ", %s kg", printer.Sprintf("%.2f", l.UnitWeightKg))
		}
		sb.WriteString("\n")
	}

	if order.Breakdown.Version > 0 {
		sb.WriteString("\n")
		sb.WriteString(FormatBreakdown(order.Breakdown))
	}
	return sb.String()
}

func FormatOrderProfit(p report.OrderProfit) string {
	r := p.Result
	return fmt.Sprintf(
		"📈 <b>Order #%d profit</b> · %s\n\n"+
			"Final price: %s\n"+
			"Revenue ex VAT: %s\n"+
			"Processor fees: %s\n"+
			"Costs ex VAT: %s\n"+
			"<b>Net profit: %s (%s margin)</b>\n"+
			"Quoted at pricing time: %s",
		p.OrderID, html.EscapeString(p.Status),
		money(p.FinalPriceLocal),
		money(r.RevenueExVat),
		money(r.ProcessorFees),
		money(r.TotalCostsExVat),
		money(r.NetProfit), pct(r.MarginPct),
		money(p.QuotedProfit),
	)
}

func FormatPeriodReport(r report.PeriodReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 <b>Profit %s – %s</b> by %s\n\n",
		r.From.Format("02.01.2006"), r.To.AddDate(0, 0, -1).Format("02.01.2006"), r.Period)

	if len(r.Buckets) == 0 {
		sb.WriteString("No orders in this range.")
		return sb.String()
	}

	for _, b := range r.Buckets {
		fmt.Fprintf(&sb, "%s: %d orders, revenue %s, profit %s\n",
			bucketLabel(b, r.Period), b.Orders, moneyDec(b.RevenueExVat), moneyDec(b.NetProfit))
	}

	t := r.Total
	fmt.Fprintf(&sb, "\n<b>Total:</b> %d orders\n", t.Orders)
	fmt.Fprintf(&sb, "Revenue ex VAT: %s\n", moneyDec(t.RevenueExVat))
	fmt.Fprintf(&sb, "Processor fees: %s\n", moneyDec(t.ProcessorFees))
	fmt.Fprintf(&sb, "Costs ex VAT: %s\n", moneyDec(t.CostsExVat))
	fmt.Fprintf(&sb, "<b>Net profit: %s (%s margin)</b>", moneyDec(t.NetProfit), pct(t.MarginPct().InexactFloat64()))
	if t.LossOrders > 0 {
		fmt.Fprintf(&sb, "\n⚠️ %d orders at a loss", t.LossOrders)
	}
	if r.Cancelled > 0 {
		fmt.Fprintf(&sb, "\nCancelled (excluded): %d", r.Cancelled)
	}
	return sb.String()
}

func bucketLabel(b report.Bucket, p report.Period) string {
	switch p {
	case report.PeriodMonth:
		return b.Start.Format("Jan 2006")
	case report.PeriodWeek:
		return "w/c " + b.Start.Format("02.01")
	default:
		return b.Start.Format("02.01")
	}
}

func FormatSettings(cfg pricing.Configuration) string {
	codes := make([]string, 0, len(cfg.FxRate))
	for code := range cfg.FxRate {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	rates := make([]string, 0, len(codes))
	for _, code := range codes {
		rates = append(rates, printer.Sprintf("%s %.4f", code, cfg.FxRate[code]))
	}

	tiers := make([]string, 0, len(cfg.WeightTiers))
	for _, t := range cfg.WeightTiers {
		if t.UpToKg == 0 {
			tiers = append(tiers, printer.Sprintf("rest %.2f", t.RatePerKg))
			continue
		}
		tiers = append(tiers, printer.Sprintf("<%.1fkg %.2f", t.UpToKg, t.RatePerKg))
	}

	return fmt.Sprintf(
		"⚙️ <b>Pricing settings</b> (%s)\n\n"+
			"FX: %s\n"+
			"fx_fee_pct: %s\n"+
			"brand_commission_pct: %s\n"+
			"shipping_rate_strategy: %s\n"+
			"international_rate_per_kg: %s\n"+
			"weight_tiers: %s\n"+
			"outer_pack_kg: %s\n"+
			"volumetric_divisor: %s\n"+
			"customs_threshold_usd: %s\n"+
			"customs_pct: %s\n"+
			"duties_base_includes_shipping: %t\n"+
			"vat_pct: %s\n"+
			"import_vat_recoverable: %t\n"+
			"fixed_fees_local: %s\n"+
			"buffer_pct: %s\n"+
			"domestic_ship_local: %s\n"+
			"free_shipping_threshold_local: %s\n"+
			"profit_mode: %s\n"+
			"target_margin_pct: %s\n"+
			"commission_pct_of_base: %s\n"+
			"min_profit_floor_local: %s\n"+
			"processor_pct: %s\n"+
			"processor_fixed_local: %s\n"+
			"processor_fee_applies_to_gross: %t\n"+
			"rounding_policy: %s",
		html.EscapeString(cfg.LocalCurrency),
		html.EscapeString(strings.Join(rates, ", ")),
		pct(cfg.FxFeePct),
		pct(cfg.BrandCommissionPct),
		cfg.ShippingRateStrategy,
		money(cfg.InternationalRatePerKg),
		html.EscapeString(strings.Join(tiers, ", ")),
		printer.Sprintf("%.2f", cfg.OuterPackKg),
		printer.Sprintf("%.0f", cfg.VolumetricDivisor),
		money(cfg.CustomsThresholdUSD),
		pct(cfg.CustomsPct),
		cfg.DutiesBaseIncludesShipping,
		pct(cfg.VatPct),
		cfg.ImportVatRecoverable,
		money(cfg.FixedFeesLocal),
		pct(cfg.BufferPct),
		money(cfg.DomesticShipLocal),
		money(cfg.FreeShippingThresholdLocal),
		cfg.ProfitMode,
		pct(cfg.TargetMarginPct),
		pct(cfg.CommissionPctOfBase),
		money(cfg.MinProfitFloorLocal),
		pct(cfg.ProcessorPct),
		money(cfg.ProcessorFixedLocal),
		cfg.ProcessorFeeAppliesToGross,
		roundingLabel(cfg.RoundingPolicy),
	)
}

func roundingLabel(p pricing.RoundingPolicy) string {
	if p == pricing.RoundInteger {
		return "integer"
	}
	return string(p)
}

func FormatStats(stats *storage.OrderStatistics) string {
	statuses := make([]string, 0, len(stats.StatusCounts))
	for status := range stats.StatusCounts {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)

	var byStatus strings.Builder
	for _, s := range statuses {
		fmt.Fprintf(&byStatus, "\n• %s: %d", html.EscapeString(s), stats.StatusCounts[s])
	}

	return fmt.Sprintf(
		"📊 <b>Order statistics</b>\n\n"+
			"Total orders: %d\n"+
			"Total revenue: %s\n"+
			"Quoted net profit: %s\n"+
			"Today: %d (%s)\n"+
			"Last 7 days: %d (%s)\n"+
			"Last 30 days: %d (%s)\n\n"+
			"By status:%s",
		stats.TotalOrders,
		money(stats.TotalRevenue),
		money(stats.TotalNetProfit),
		stats.TodayOrders, money(stats.TodayRevenue),
		stats.WeekOrders, money(stats.WeekRevenue),
		stats.MonthOrders, money(stats.MonthRevenue),
		byStatus.String(),
	)
}

func FormatOrderList(list []storage.Order) string {
	if len(list) == 0 {
		return "No orders yet."
	}

	var sb strings.Builder
	sb.WriteString("🗂 <b>Recent orders</b>\n")
	for _, o := range list {
		fmt.Fprintf(&sb, "\n#%d · %s · %s", o.ID, html.EscapeString(o.Status), o.CreatedAt.Format("02.01 15:04"))
		if o.Customer != "" {
			fmt.Fprintf(&sb, " · %s", html.EscapeString(o.Customer))
		}
		if o.Breakdown.Version > 0 {
			fmt.Fprintf(&sb, " · %s", money(o.Breakdown.FinalPriceLocal))
		}
	}
	return sb.String()
}

func FormatSnapshotHistory(orderID int64, history []storage.Snapshot) string {
	if len(history) == 0 {
		return fmt.Sprintf("Order #%d has no pricing snapshots.", orderID)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🕓 <b>Order #%d pricing history</b>\n", orderID)
	for i, s := range history {
		fmt.Fprintf(&sb, "\n%d. %s · price %s · profit %s",
			i+1, s.CreatedAt.Format("02.01.2006 15:04"),
			money(s.Breakdown.FinalPriceLocal), money(s.Breakdown.NetProfit))
	}
	return sb.String()
}
