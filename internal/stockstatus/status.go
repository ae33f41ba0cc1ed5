package stockstatus

import (
	"strings"

	"simplepos/internal/catalog"
	"simplepos/internal/domain"
)

type Status string

const (
	InStock    Status = "in_stock"
	LowStock   Status = "low_stock"
	OutOfStock Status = "out_of_stock"
)

func (s Status) Label() string {
	switch s {
	case OutOfStock:
		return "Out of Stock"
	case LowStock:
		return "Low Stock"
	default:
		return "In Stock"
	}
}

// IsDepleted reports whether a raw per-store stock reading counts as zero.
func IsDepleted(raw string) bool {
	s := strings.TrimSpace(raw)
	return s == "" || s == "0" || strings.EqualFold(s, "0 pc")
}

func Classify(store1, store2 string) Status {
	out1, out2 := IsDepleted(store1), IsDepleted(store2)
	switch {
	case out1 && out2:
		return OutOfStock
	case out1 || out2:
		return LowStock
	default:
		return InStock
	}
}

type Row struct {
	Name        string `json:"name"`
	Store1      string `json:"store1"`
	Store2      string `json:"store2"`
	Store1Out   bool   `json:"store1_out"`
	Store2Out   bool   `json:"store2_out"`
	Status      Status `json:"status"`
	StatusLabel string `json:"status_label"`
}

type Summary struct {
	TotalProducts int `json:"total_products"`
	OutOfStock    int `json:"out_of_stock"`
	LowStock      int `json:"low_stock"`
}

type Report struct {
	Term    string  `json:"term,omitempty"`
	Rows    []Row   `json:"rows"`
	Summary Summary `json:"summary"`
}

// Build classifies products, optionally narrowed to names containing term.
// Nothing is cached; every call reflects the products passed in.
func Build(products []domain.Product, term string) Report {
	term = strings.TrimSpace(term)
	filtered := catalog.Filter(products, term, 0)

	report := Report{Term: term, Rows: make([]Row, 0, len(filtered))}
	for _, p := range filtered {
		s1 := strings.TrimSpace(p.StockStore1)
		s2 := strings.TrimSpace(p.StockStore2)
		status := Classify(s1, s2)

		switch status {
		case OutOfStock:
			report.Summary.OutOfStock++
		case LowStock:
			report.Summary.LowStock++
		}

		report.Rows = append(report.Rows, Row{
			Name:        p.Name,
			Store1:      s1,
			Store2:      s2,
			Store1Out:   IsDepleted(s1),
			Store2Out:   IsDepleted(s2),
			Status:      status,
			StatusLabel: status.Label(),
		})
	}
	report.Summary.TotalProducts = len(report.Rows)
	return report
}
