/*
export - Visit report renderers (CSV, XLSX, PDF)

PURPOSE:
  Streams an engine.Report into a downloadable file. Every renderer writes
  the same logical lines:

    header
    one data line per report row
    a subtotal line after every row with EndsGroup (that row's Count and
      Cumulative are the promoter's totals)
    a grand total line

  Rows are consumed in order, so renderers never re-aggregate.

SEE ALSO:
  - engine/report.go: ReportRow, running totals and EndsGroup
  - cmd/export: CLI wrapper
  - api/handlers.go: /api/reports/visits/export
*/
package export

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/warp/visit-engine/engine"
)

// ErrUnknownFormat is returned by ForFormat for unsupported formats.
var ErrUnknownFormat = errors.New("unknown export format")

// Renderer writes a report in one file format.
type Renderer interface {
	Render(w io.Writer, r *engine.Report) error
	ContentType() string
	Extension() string
}

// ForFormat returns the renderer for "csv", "xlsx" (or "excel") and "pdf".
func ForFormat(format string) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "csv":
		return CSV{}, nil
	case "xlsx", "excel":
		return XLSX{}, nil
	case "pdf":
		return PDF{}, nil
	}
	return nil, fmt.Errorf("%w: %q (use csv, xlsx or pdf)", ErrUnknownFormat, format)
}

// Filename suggests a download name such as visits_2024-01-01_2024-01-31.csv.
func Filename(r *engine.Report, ext string) string {
	name := "visits"
	if r.Filter.Start != nil {
		name += "_" + r.Filter.Start.String()
	}
	if r.Filter.End != nil {
		name += "_" + r.Filter.End.String()
	}
	return name + "." + ext
}

// =============================================================================
// LINES - Format-independent layout
// =============================================================================

type lineKind int

const (
	lineHeader lineKind = iota
	lineData
	lineSubtotal
	lineTotal
)

type line struct {
	kind  lineKind
	cells []string
}

var header = []string{
	"Visit", "Date", "Promoter", "Store", "Store No.", "Brand", "Status", "Price", "Count", "Cumulative",
}

// priceCol is the index of the first money column in header.
const priceCol = 7

func layout(r *engine.Report) []line {
	out := make([]line, 0, len(r.Rows)+len(r.Summary)+2)
	out = append(out, line{kind: lineHeader, cells: header})

	for _, row := range r.Rows {
		out = append(out, line{kind: lineData, cells: rowCells(row)})
		if row.EndsGroup {
			out = append(out, line{kind: lineSubtotal, cells: subtotalCells(row)})
		}
	}

	out = append(out, line{kind: lineTotal, cells: []string{
		"TOTAL", "", "", "", "", "", "", "",
		strconv.Itoa(r.TotalCount),
		r.TotalValue.StringFixed(2),
	}})
	return out
}

func rowCells(row engine.ReportRow) []string {
	number := ""
	if row.Store.Number != nil {
		number = strconv.Itoa(*row.Store.Number)
	}
	return []string{
		strconv.FormatInt(int64(row.VisitID), 10),
		row.Date.String(),
		row.Promoter.Name,
		row.Store.Name,
		number,
		row.Brand.Name,
		string(row.Status),
		row.Price.StringFixed(2),
		strconv.Itoa(row.Count),
		row.Cumulative.StringFixed(2),
	}
}

func subtotalCells(row engine.ReportRow) []string {
	return []string{
		"Subtotal", "", row.Promoter.Name, "", "", "", "", "",
		strconv.Itoa(row.Count),
		row.Cumulative.StringFixed(2),
	}
}
