package export

import (
	"io"

	"github.com/go-pdf/fpdf"

	"github.com/warp/visit-engine/engine"
)

// column widths in mm, landscape A4 (277mm usable)
var pdfWidths = []float64{16, 24, 40, 40, 20, 36, 26, 24, 16, 31}

// PDF renders a report as a landscape A4 table.
type PDF struct{}

func (PDF) ContentType() string { return "application/pdf" }
func (PDF) Extension() string   { return "pdf" }

func (PDF) Render(w io.Writer, r *engine.Report) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Visit report", true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	title := "Visit report"
	if r.Filter.Start != nil || r.Filter.End != nil {
		title += " " + rangeLabel(r)
	}
	pdf.CellFormat(0, 10, tr(title), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	for _, l := range layout(r) {
		style, fill := "", false
		switch l.kind {
		case lineHeader:
			style, fill = "B", true
			pdf.SetFillColor(220, 220, 220)
		case lineSubtotal:
			style, fill = "B", true
			pdf.SetFillColor(240, 240, 240)
		case lineTotal:
			style, fill = "B", true
			pdf.SetFillColor(200, 200, 200)
		}
		pdf.SetFont("Helvetica", style, 8)

		for i, cell := range l.cells {
			align := "L"
			if i >= priceCol {
				align = "R"
			}
			pdf.CellFormat(pdfWidths[i], 6, tr(cell), "1", 0, align, fill, 0, "")
		}
		pdf.Ln(-1)
	}

	return pdf.Output(w)
}

func rangeLabel(r *engine.Report) string {
	start, end := "...", "..."
	if r.Filter.Start != nil {
		start = r.Filter.Start.String()
	}
	if r.Filter.End != nil {
		end = r.Filter.End.String()
	}
	return start + " to " + end
}
