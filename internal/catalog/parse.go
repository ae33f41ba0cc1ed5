package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"simplepos/internal/amount"
	"simplepos/internal/csvline"
	"simplepos/internal/domain"
)

// headerSentinel is the name column title of the feed. Rows carrying it are
// treated as repeated headers wherever they appear.
const headerSentinel = "product name"

const minColumns = 6

const (
	colName = iota
	colCartonPrice
	colDozenPrice
	colPiecePrice
	colStockStore1
	colStockStore2
)

// Parse maps feed text to products. The first row is the header. Rows with
// too few columns, an empty name or a repeated header are skipped.
func Parse(text string, slot domain.StockSlot) []domain.Product {
	rows := csvline.Rows(text)
	if len(rows) < 2 {
		return []domain.Product{}
	}

	products := make([]domain.Product, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		if len(cells) < minColumns {
			continue
		}

		name := strings.TrimSpace(cells[colName])
		if name == "" || foldName(name) == headerSentinel {
			continue
		}

		var stock decimal.Decimal
		switch slot {
		case domain.StockSlotStore1:
			stock = amount.Parse(cells[colStockStore1])
		case domain.StockSlotStore2:
			stock = amount.Parse(cells[colStockStore2])
		}

		products = append(products, domain.Product{
			Name: name,
			Prices: map[domain.Unit]decimal.Decimal{
				domain.UnitCarton: amount.Parse(cells[colCartonPrice]),
				domain.UnitDozen:  amount.Parse(cells[colDozenPrice]),
				domain.UnitPiece:  amount.Parse(cells[colPiecePrice]),
			},
			Stock:       stock,
			StockStore1: rawStock(cells[colStockStore1]),
			StockStore2: rawStock(cells[colStockStore2]),
		})
	}

	return products
}

func rawStock(cell string) string {
	if cell == "" {
		return "0"
	}
	return cell
}

// foldName is the comparison key for product names.
func foldName(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}
