// Package pricing derives every dependent price field of a product from its
// base price, discount rate, and the active tax set. Calculate is the single
// write path for derived price fields anywhere in the system.
package pricing

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNegativeBasePrice is returned for a base price below zero.
	ErrNegativeBasePrice = errors.New("base price must not be negative")
	// ErrDiscountRateRange is returned for a discount rate outside [0, 1].
	ErrDiscountRateRange = errors.New("discount rate must be within [0, 1]")
)

// TaxGroup buckets a tax for per-group reporting on the price breakdown.
type TaxGroup string

const (
	GroupPlatform   TaxGroup = "platform"
	GroupCountryVat TaxGroup = "country_vat"
	GroupOther      TaxGroup = "other"
)

// TaxScope restricts what a tax applies to.
type TaxScope string

// ScopeProduct marks a tax applied to product prices. Other scopes may exist
// upstream; Calculate only ever considers product-scoped taxes.
const ScopeProduct TaxScope = "product"

// Tax is a read-only rate definition. Rate is a decimal fraction, e.g. 0.15
// for 15%.
type Tax struct {
	ID        string
	Rate      decimal.Decimal
	Group     TaxGroup
	AppliesTo TaxScope
	Active    bool
}

// TaxSource provides the current tax definitions.
type TaxSource interface {
	ActiveProductTaxes(ctx context.Context) ([]Tax, error)
}

// Breakdown holds every derived price field. Each field is rounded to
// 2 decimal places at its own derivation step, so the identities
//
//	PriceBeforeDiscount - TotalDiscount = PriceAfterDiscount
//	PriceAfterDiscount + TotalTaxes    = PriceAfterTaxes
//
// hold exactly on the rounded values.
type Breakdown struct {
	BasePrice           decimal.Decimal
	PriceBeforeDiscount decimal.Decimal
	TotalDiscount       decimal.Decimal
	PriceAfterDiscount  decimal.Decimal
	PlatformTax         decimal.Decimal
	CountryTax          decimal.Decimal
	OtherTax            decimal.Decimal
	TotalTaxes          decimal.Decimal
	PriceAfterTaxes     decimal.Decimal
}

// Calculate derives the full price breakdown. Inactive taxes and taxes not
// scoped to products are skipped. Rounding is half-up to 2 places at each
// derived step, matching how the persisted columns are populated.
func Calculate(basePrice, discountRate decimal.Decimal, taxes []Tax) (Breakdown, error) {
	if basePrice.IsNegative() {
		return Breakdown{}, ErrNegativeBasePrice
	}
	if discountRate.IsNegative() || discountRate.GreaterThan(decimal.NewFromInt(1)) {
		return Breakdown{}, ErrDiscountRateRange
	}

	b := Breakdown{
		BasePrice:           basePrice,
		PriceBeforeDiscount: basePrice,
	}
	b.TotalDiscount = basePrice.Mul(discountRate).Round(2)
	b.PriceAfterDiscount = basePrice.Sub(b.TotalDiscount).Round(2)

	for _, t := range taxes {
		if !t.Active || t.AppliesTo != ScopeProduct {
			continue
		}
		amount := b.PriceAfterDiscount.Mul(t.Rate).Round(2)
		switch t.Group {
		case GroupPlatform:
			b.PlatformTax = b.PlatformTax.Add(amount)
		case GroupCountryVat:
			b.CountryTax = b.CountryTax.Add(amount)
		default:
			b.OtherTax = b.OtherTax.Add(amount)
		}
	}

	b.TotalTaxes = b.PlatformTax.Add(b.CountryTax).Add(b.OtherTax)
	b.PriceAfterTaxes = b.PriceAfterDiscount.Add(b.TotalTaxes).Round(2)
	return b, nil
}
