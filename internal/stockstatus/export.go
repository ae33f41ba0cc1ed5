package stockstatus

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
)

var exportHeader = []string{"Product", "Store 1", "Store 2", "Status"}

func WriteCSV(w io.Writer, report Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, row := range report.Rows {
		if err := cw.Write([]string{row.Name, row.Store1, row.Store2, row.StatusLabel}); err != nil {
			return err
		}
	}
	summary := [][]string{
		{},
		{"Total Products", strconv.Itoa(report.Summary.TotalProducts)},
		{"Out of Stock", strconv.Itoa(report.Summary.OutOfStock)},
		{"Low Stock", strconv.Itoa(report.Summary.LowStock)},
	}
	if err := cw.WriteAll(summary); err != nil {
		return err
	}
	return cw.Error()
}

const (
	stockSheet   = "Stock"
	summarySheet = "Summary"
)

// WriteXLSX renders the report as a workbook with a stock sheet and a
// summary sheet. Depleted store cells are highlighted.
func WriteXLSX(w io.Writer, report Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", stockSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	depletedStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Color: "E74C3C"}})
	if err != nil {
		return err
	}

	if err := f.SetSheetRow(stockSheet, "A1", &exportHeader); err != nil {
		return err
	}
	if err := f.SetCellStyle(stockSheet, "A1", "D1", headerStyle); err != nil {
		return err
	}

	for i, row := range report.Rows {
		line := i + 2
		values := []any{row.Name, row.Store1, row.Store2, row.StatusLabel}
		if err := f.SetSheetRow(stockSheet, fmt.Sprintf("A%d", line), &values); err != nil {
			return err
		}
		if row.Store1Out {
			cell := fmt.Sprintf("B%d", line)
			if err := f.SetCellStyle(stockSheet, cell, cell, depletedStyle); err != nil {
				return err
			}
		}
		if row.Store2Out {
			cell := fmt.Sprintf("C%d", line)
			if err := f.SetCellStyle(stockSheet, cell, cell, depletedStyle); err != nil {
				return err
			}
		}
	}
	if err := f.SetColWidth(stockSheet, "A", "A", 36); err != nil {
		return err
	}

	summary := [][]any{
		{"Total Products", report.Summary.TotalProducts},
		{"Out of Stock", report.Summary.OutOfStock},
		{"Low Stock", report.Summary.LowStock},
	}
	for i, values := range summary {
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+1), &values); err != nil {
			return err
		}
	}

	_, err = f.WriteTo(w)
	return err
}
