package intake

import (
	"strings"

	"simplepos/internal/domain"
)

const (
	SaleFormName       = "sale"
	AdjustmentFormName = "adjustment"
)

const (
	saleItemEntry     = "entry.1617444836"
	saleUnitEntry     = "entry.591095593"
	saleQuantityEntry = "entry.268864996"
	salePriceEntry    = "entry.53788851"
	saleDiscountEntry = "entry.411866054"
	saleExtraEntry    = "entry.511901350"
	saleTotalEntry    = "entry.1094112162"
	salePaymentEntry  = "entry.970001475"
	saleStoreEntry    = "entry.106245113"

	adjustmentNameEntry     = "entry.1351663693"
	adjustmentUnitEntry     = "entry.2099316372"
	adjustmentQuantityEntry = "entry.1838734272"
	adjustmentTypeEntry     = "entry.1785029976"
	adjustmentStoreEntry    = "entry.1678851527"
)

var adjustmentTypeLabels = map[domain.AdjustmentType]string{
	domain.AdjustmentAdd:    "Add",
	domain.AdjustmentRemove: "Remove",
	domain.AdjustmentSet:    "Set",
}

// SaleForm maps one ledger line onto the sales intake form. The store label
// falls back to the store id when the store has no display name.
func SaleForm(action string, line domain.SaleLine, store domain.Store) Form {
	return Form{
		Name:   SaleFormName,
		Action: action,
		Fields: []Field{
			{Name: saleItemEntry, Value: line.Item},
			{Name: saleUnitEntry, Value: string(line.Unit)},
			{Name: saleQuantityEntry, Value: line.Quantity.String()},
			{Name: salePriceEntry, Value: line.Price.String()},
			{Name: saleDiscountEntry, Value: line.Discount.String()},
			{Name: saleExtraEntry, Value: line.Extra.String()},
			{Name: saleTotalEntry, Value: line.Total.String()},
			{Name: salePaymentEntry, Value: line.PaymentMethod},
			{Name: saleStoreEntry, Value: store.DisplayName()},
		},
	}
}

// AdjustmentForm maps one staged adjustment onto the stock intake form.
// Unknown units and types pass through unchanged; a blank quantity is sent
// as zero.
func AdjustmentForm(action string, item domain.AdjustmentItem, store domain.Store) Form {
	unit := string(item.Unit)
	if parsed, ok := domain.ParseUnit(unit); ok {
		unit = string(parsed)
	}

	kind := string(item.Type)
	if label, ok := adjustmentTypeLabels[domain.AdjustmentType(strings.ToLower(kind))]; ok {
		kind = label
	}

	quantity := "0"
	if !item.Blank && !item.Quantity.IsZero() {
		quantity = item.Quantity.String()
	}

	return Form{
		Name:   AdjustmentFormName,
		Action: action,
		Fields: []Field{
			{Name: adjustmentNameEntry, Value: item.Name},
			{Name: adjustmentUnitEntry, Value: unit},
			{Name: adjustmentQuantityEntry, Value: quantity},
			{Name: adjustmentTypeEntry, Value: kind},
			{Name: adjustmentStoreEntry, Value: store.Name},
		},
	}
}
