package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/warp/visit-engine/engine"
)

const sheetName = "Visits"

// XLSX renders a report as an Excel workbook with a single sheet.
type XLSX struct{}

func (XLSX) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}
func (XLSX) Extension() string { return "xlsx" }

func (XLSX) Render(w io.Writer, r *engine.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	// NumFmt 1 is "0", NumFmt 2 is "0.00"
	styles := map[bool]map[string]int{}
	for _, isBold := range []bool{false, true} {
		styles[isBold] = map[string]int{}
		for _, kind := range []struct {
			name   string
			numFmt int
		}{{"count", 1}, {"money", 2}} {
			st := &excelize.Style{NumFmt: kind.numFmt}
			if isBold {
				st.Font = &excelize.Font{Bold: true}
			}
			id, err := f.NewStyle(st)
			if err != nil {
				return err
			}
			styles[isBold][kind.name] = id
		}
	}

	for i, l := range layout(r) {
		rowNum := i + 1
		values := make([]any, len(l.cells))
		for c, cell := range l.cells {
			values[c] = cell
			if c >= priceCol && l.kind != lineHeader {
				values[c] = numeric(c, cell)
			}
		}

		start, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheetName, start, &values); err != nil {
			return err
		}

		if l.kind == lineHeader {
			if err := f.SetRowStyle(sheetName, rowNum, rowNum, bold); err != nil {
				return fmt.Errorf("style row %d: %w", rowNum, err)
			}
			continue
		}
		isBold := l.kind == lineSubtotal || l.kind == lineTotal
		if isBold {
			if err := f.SetRowStyle(sheetName, rowNum, rowNum, bold); err != nil {
				return fmt.Errorf("style row %d: %w", rowNum, err)
			}
		}
		for c := priceCol; c < len(header); c++ {
			kind := "money"
			if header[c] == "Count" {
				kind = "count"
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, rowNum)
			if err := f.SetCellStyle(sheetName, cell, cell, styles[isBold][kind]); err != nil {
				return fmt.Errorf("style %s: %w", cell, err)
			}
		}
	}

	if err := f.SetColWidth(sheetName, "A", "J", 14); err != nil {
		return err
	}
	return f.Write(w)
}

// numeric turns the count and money columns into numbers so spreadsheets can
// sum them. Empty cells stay empty.
func numeric(col int, cell string) any {
	if cell == "" {
		return cell
	}
	if header[col] == "Count" {
		if n, err := strconv.Atoi(cell); err == nil {
			return n
		}
		return cell
	}
	d, err := decimal.NewFromString(cell)
	if err != nil {
		return cell
	}
	return d.InexactFloat64()
}
