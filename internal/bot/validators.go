package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"landed-bot/internal/pricing"
	"landed-bot/internal/report"
)

const dateLayout = "2006-01-02"

// ParseOrderLine reads one line item written as
//
//	EUR 49.90 [0.4kg] [30x20x10] [*2] [sku=BAG-1]
//
// Currency and unit price come first; the rest may appear in any order.
func ParseOrderLine(text string) (pricing.OrderLine, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return pricing.OrderLine{}, fmt.Errorf("expected at least a currency and a price, e.g. EUR 49.90 0.4 30x20x10")
	}

	line := pricing.OrderLine{
		Currency: strings.ToUpper(fields[0]),
		Quantity: 1,
	}
	if len(line.Currency) != 3 {
		return pricing.OrderLine{}, fmt.Errorf("currency must be a 3-letter code, got %q", fields[0])
	}

	price, err := parseAmount(fields[1])
	if err != nil {
		return pricing.OrderLine{}, fmt.Errorf("price: %w", err)
	}
	line.UnitPrice = price

	weightSet := false
	for _, tok := range fields[2:] {
		lower := strings.ToLower(tok)
		switch {
		case strings.HasPrefix(lower, "sku="):
			line.SKU = tok[len("sku="):]
		case strings.HasPrefix(lower, "*"):
			qty, err := strconv.Atoi(lower[1:])
			if err != nil || qty <= 0 {
				return pricing.OrderLine{}, fmt.Errorf("quantity must be a positive whole number, got %q", tok)
			}
			line.Quantity = qty
		case strings.ContainsAny(lower, "x×"):
			dims, err := parseDimensions(lower)
			if err != nil {
				return pricing.OrderLine{}, err
			}
			line.DimensionsCm = dims
		default:
			if weightSet {
				return pricing.OrderLine{}, fmt.Errorf("unexpected %q", tok)
			}
			kg, err := parseAmount(strings.TrimSuffix(lower, "kg"))
			if err != nil {
				return pricing.OrderLine{}, fmt.Errorf("weight: %w", err)
			}
			line.UnitWeightKg = kg
			weightSet = true
		}
	}
	return line, nil
}

// ParseProductInput reads a /quote argument in the order-line format.
func ParseProductInput(text string) (pricing.ProductInput, error) {
	line, err := ParseOrderLine(text)
	if err != nil {
		return pricing.ProductInput{}, err
	}
	return pricing.AggregateLines([]pricing.OrderLine{line})
}

func parseDimensions(s string) (*pricing.Dimensions, error) {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == 'x' || r == '×' })
	if len(parts) != 3 {
		return nil, fmt.Errorf("dimensions must look like 30x20x10 (cm), got %q", s)
	}

	var v [3]float64
	for i, p := range parts {
		n, err := parseAmount(strings.TrimSuffix(p, "cm"))
		if err != nil {
			return nil, fmt.Errorf("dimensions: %w", err)
		}
		v[i] = n
	}
	return &pricing.Dimensions{L: v[0], W: v[1], H: v[2]}, nil
}

func parseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if v < 0 {
		return 0, fmt.Errorf("%q must not be negative", s)
	}
	return v, nil
}

// ParseFxRates reads "EUR=4.05 USD=3.6" into a rate table.
func ParseFxRates(text string) (map[string]float64, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil, fmt.Errorf("no rates given")
	}

	rates := make(map[string]float64, len(fields))
	for _, f := range fields {
		code, value, ok := strings.Cut(f, "=")
		if !ok {
			code, value, ok = strings.Cut(f, ":")
		}
		if !ok || len(code) != 3 {
			return nil, fmt.Errorf("expected CODE=rate, got %q", f)
		}
		rate, err := parseAmount(value)
		if err != nil || rate == 0 {
			return nil, fmt.Errorf("rate for %s must be a positive number", strings.ToUpper(code))
		}
		rates[strings.ToUpper(code)] = rate
	}
	return rates, nil
}

// ParseAssumptions reads key=value reporting overrides:
//
//	fee=gross|final|net domvat=yes domincl=yes vat=0.17 proc=0.03 procfix=1.5 ship=25 refund=40
func ParseAssumptions(tokens []string) (pricing.ReportingAssumptions, error) {
	var a pricing.ReportingAssumptions
	for _, tok := range tokens {
		key, value, ok := strings.Cut(tok, "=")
		if !ok {
			return a, fmt.Errorf("expected key=value, got %q", tok)
		}

		var err error
		switch strings.ToLower(key) {
		case "fee":
			a.ProcessorFeeOn, err = pricing.ParseFeeBase(value)
		case "domvat":
			a.DomesticVatApplies, err = parseYesNo(value)
		case "domincl":
			a.DomesticCostIncludesVat, err = parseYesNo(value)
		case "vat":
			a.VatPct, err = parseFraction(value)
		case "proc":
			a.ProcessorPct, err = parseFraction(value)
		case "procfix":
			a.ProcessorFixedLocal, err = parseAmountPtr(value)
		case "ship":
			a.DomesticShipCostLocal, err = parseAmountPtr(value)
		case "refund":
			a.RefundsAndAdjustmentsExVat, err = parseAmount(value)
		default:
			err = fmt.Errorf("unknown option")
		}
		if err != nil {
			return a, fmt.Errorf("%s: %w", key, err)
		}
	}
	return a, nil
}

// ReportArgs is a parsed /report request. To is exclusive.
type ReportArgs struct {
	From        time.Time
	To          time.Time
	Period      report.Period
	Assumptions pricing.ReportingAssumptions
}

// ParseReportArgs reads "[from] [to] [day|week|month] [overrides...]".
// Dates are inclusive calendar days in loc. Without dates the last 30 days
// up to and including today are reported.
func ParseReportArgs(text string, now time.Time, loc *time.Location) (ReportArgs, error) {
	today := report.PeriodDay.Start(now, loc)
	args := ReportArgs{
		From:   today.AddDate(0, 0, -29),
		To:     today.AddDate(0, 0, 1),
		Period: report.PeriodDay,
	}

	var dates []time.Time
	var rest []string
	for _, tok := range strings.Fields(text) {
		if d, err := time.ParseInLocation(dateLayout, tok, loc); err == nil {
			dates = append(dates, d)
			continue
		}
		if p, err := report.ParsePeriod(tok); err == nil {
			args.Period = p
			continue
		}
		rest = append(rest, tok)
	}

	switch len(dates) {
	case 0:
	case 1:
		args.From = dates[0]
	case 2:
		args.From = dates[0]
		args.To = dates[1].AddDate(0, 0, 1)
	default:
		return ReportArgs{}, fmt.Errorf("at most two dates (from, to) are allowed")
	}
	if !args.From.Before(args.To) {
		return ReportArgs{}, fmt.Errorf("from must not be after to")
	}

	a, err := ParseAssumptions(rest)
	if err != nil {
		return ReportArgs{}, err
	}
	args.Assumptions = a
	return args, nil
}

func parseOrderID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(s), "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid order ID %q", s)
	}
	return id, nil
}

func parseYesNo(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "y", "on", "true", "1":
		return true, nil
	case "no", "n", "off", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("expected yes or no, got %q", s)
	}
}

func parseFraction(s string) (*float64, error) {
	v, err := parseAmount(s)
	if err != nil {
		return nil, err
	}
	if v > 1 {
		return nil, fmt.Errorf("%q must be a fraction between 0 and 1", s)
	}
	return &v, nil
}

func parseAmountPtr(s string) (*float64, error) {
	v, err := parseAmount(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
