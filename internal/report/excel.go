// Package report renders the event closing report as an xlsx workbook:
// one sheet with the financial summary, one with the inventory rows.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"barcaixa/internal/domain"
)

const (
	summarySheet   = "Resumo"
	inventorySheet = "Estoque"
)

// Write renders the workbook for one event scope into w.
func Write(w io.Writer, event domain.Event, summary domain.Summary, rows []domain.ProductStatus) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", summarySheet)
	if _, err := f.NewSheet(inventorySheet); err != nil {
		return fmt.Errorf("create inventory sheet: %w", err)
	}

	if err := writeSummary(f, event, summary); err != nil {
		return err
	}
	if err := writeInventory(f, rows); err != nil {
		return err
	}

	return f.Write(w)
}

func writeSummary(f *excelize.File, event domain.Event, summary domain.Summary) error {
	cells := [][2]any{
		{"Evento", event.Name},
		{"Data", event.Date},
		{"Status", event.Status},
		{"", ""},
		{"Receita total", summary.TotalRevenue.InexactFloat64()},
		{"Compras", summary.TotalPurchases.InexactFloat64()},
		{"Despesas", summary.TotalExpenses.InexactFloat64()},
		{"Resultado", summary.NetResult.InexactFloat64()},
	}
	for i, row := range cells {
		if err := f.SetCellValue(summarySheet, fmt.Sprintf("A%d", i+1), row[0]); err != nil {
			return err
		}
		if err := f.SetCellValue(summarySheet, fmt.Sprintf("B%d", i+1), row[1]); err != nil {
			return err
		}
	}
	return nil
}

func writeInventory(f *excelize.File, rows []domain.ProductStatus) error {
	headers := []string{"Produto", "Categoria", "Comprado (un)", "Custo total", "Estoque", "Vendido (un)", "Receita estimada", "Status", "Inferido"}
	for i, h := range headers {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(inventorySheet, col+"1", h); err != nil {
			return err
		}
	}

	for i, row := range rows {
		inferred := ""
		if row.Inferred {
			inferred = "sim"
		}
		values := []any{
			row.Product.Name,
			row.Product.Category,
			row.TotalPurchasedUnits,
			row.TotalPurchasedCost.InexactFloat64(),
			row.CurrentStock,
			row.EstimatedSalesUnits,
			row.EstimatedRevenue.InexactFloat64(),
			row.Status,
			inferred,
		}
		for j, v := range values {
			col, err := excelize.ColumnNumberToName(j + 1)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(inventorySheet, fmt.Sprintf("%s%d", col, i+2), v); err != nil {
				return err
			}
		}
	}
	return nil
}
