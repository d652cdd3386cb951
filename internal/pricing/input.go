package pricing

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidInput is wrapped by every product input validation failure.
	ErrInvalidInput = errors.New("pricing: invalid input")
	// ErrCurrencyMismatch is returned when order lines use more than one currency.
	ErrCurrencyMismatch = errors.New("pricing: currency mismatch")
)

// InvalidInputError describes the first offending field of a ProductInput.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("pricing: invalid input: %s %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

// Dimensions are parcel sides in centimetres.
type Dimensions struct {
	L float64 `json:"l"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// ProductInput is a single item or an order aggregate to price.
type ProductInput struct {
	Currency     string      `json:"currency"`
	ProductPrice float64     `json:"product_price"`
	WeightKg     float64     `json:"weight_kg"`
	DimensionsCm *Dimensions `json:"dimensions_cm,omitempty"`
}

// Validate rejects input the calculator must not silently coerce.
func (in ProductInput) Validate(cfg Configuration) error {
	code := strings.ToUpper(strings.TrimSpace(in.Currency))
	if code == "" {
		return &InvalidInputError{Field: "currency", Reason: "is required"}
	}
	if !cfg.SupportsCurrency(code) {
		return &InvalidInputError{Field: "currency", Reason: fmt.Sprintf("%q is not supported", in.Currency)}
	}
	if !isFinite(in.ProductPrice) || in.ProductPrice < 0 {
		return &InvalidInputError{Field: "product_price", Reason: fmt.Sprintf("must be a non-negative number, got %v", in.ProductPrice)}
	}
	if !isFinite(in.WeightKg) || in.WeightKg < 0 {
		return &InvalidInputError{Field: "weight_kg", Reason: fmt.Sprintf("must be a non-negative number, got %v", in.WeightKg)}
	}
	if d := in.DimensionsCm; d != nil {
		for _, side := range []struct {
			name  string
			value float64
		}{{"dimensions_cm.l", d.L}, {"dimensions_cm.w", d.W}, {"dimensions_cm.h", d.H}} {
			if !isFinite(side.value) || side.value < 0 {
				return &InvalidInputError{Field: side.name, Reason: fmt.Sprintf("must be a non-negative number, got %v", side.value)}
			}
		}
	}
	return nil
}

// OrderLine is one line item of a storefront order.
type OrderLine struct {
	SKU          string      `json:"sku,omitempty"`
	Title        string      `json:"title,omitempty"`
	Currency     string      `json:"currency"`
	UnitPrice    float64     `json:"unit_price"`
	Quantity     int         `json:"quantity"`
	UnitWeightKg float64     `json:"unit_weight_kg"`
	DimensionsCm *Dimensions `json:"dimensions_cm,omitempty"`
}

// AggregateLines folds order lines into one ProductInput: prices and weights
// are summed per unit. Parcel dimensions survive only for a single unit of a
// single line, since a combined parcel's volume is unknown.
func AggregateLines(lines []OrderLine) (ProductInput, error) {
	if len(lines) == 0 {
		return ProductInput{}, &InvalidInputError{Field: "lines", Reason: "must not be empty"}
	}

	var (
		currency string
		price    float64
		weight   float64
		units    int
	)
	for i, line := range lines {
		code := strings.ToUpper(strings.TrimSpace(line.Currency))
		if code == "" {
			return ProductInput{}, &InvalidInputError{Field: fmt.Sprintf("lines[%d].currency", i), Reason: "is required"}
		}
		if currency == "" {
			currency = code
		} else if currency != code {
			return ProductInput{}, fmt.Errorf("%w: %s and %s", ErrCurrencyMismatch, currency, code)
		}
		if line.Quantity <= 0 {
			return ProductInput{}, &InvalidInputError{Field: fmt.Sprintf("lines[%d].quantity", i), Reason: "must be positive"}
		}
		if !isFinite(line.UnitPrice) || line.UnitPrice < 0 {
			return ProductInput{}, &InvalidInputError{Field: fmt.Sprintf("lines[%d].unit_price", i), Reason: "must be a non-negative number"}
		}
		if !isFinite(line.UnitWeightKg) || line.UnitWeightKg < 0 {
			return ProductInput{}, &InvalidInputError{Field: fmt.Sprintf("lines[%d].unit_weight_kg", i), Reason: "must be a non-negative number"}
		}
		qty := float64(line.Quantity)
		price += line.UnitPrice * qty
		weight += line.UnitWeightKg * qty
		units += line.Quantity
	}

	in := ProductInput{
		Currency:     currency,
		ProductPrice: price,
		WeightKg:     weight,
	}
	if len(lines) == 1 && units == 1 && lines[0].DimensionsCm != nil {
		d := *lines[0].DimensionsCm
		in.DimensionsCm = &d
	}
	return in, nil
}
