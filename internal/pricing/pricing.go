package pricing

import (
	"github.com/shopspring/decimal"

	"simplepos/internal/amount"
	"simplepos/internal/domain"
)

type Lookup interface {
	Find(name string) (domain.Product, bool)
}

// PriceFor returns the catalog price of name in unit. ok is false when the
// product or the unit is unknown, which clears the price field.
func PriceFor(catalog Lookup, name string, unit domain.Unit) (decimal.Decimal, bool) {
	product, ok := catalog.Find(name)
	if !ok {
		return decimal.Zero, false
	}
	return product.PriceFor(unit)
}

// Total is quantity*price - discount + extra.
func Total(quantity, price, discount, extra decimal.Decimal) decimal.Decimal {
	return quantity.Mul(price).Sub(discount).Add(extra)
}

// TotalFromInput computes a line total from raw form values; blank or
// non-numeric values count as zero.
func TotalFromInput(quantity, price, discount, extra string) decimal.Decimal {
	return Total(amount.Parse(quantity), amount.Parse(price), amount.Parse(discount), amount.Parse(extra))
}
