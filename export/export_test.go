package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/visit-engine/engine"
)

// sampleReport builds Alice (10 + 20) then Bruno (5) through the engine so
// the running totals are real.
func sampleReport(t *testing.T) *engine.Report {
	t.Helper()
	number := 101
	centro := engine.StoreRef{ID: 10, Name: "Centro", Number: &number}
	norte := engine.StoreRef{ID: 11, Name: "Norte"}
	acme := engine.BrandRef{ID: 100, Name: "Acme"}
	alice := engine.PromoterRef{ID: 1, Name: "Alice"}
	bruno := engine.PromoterRef{ID: 2, Name: "Bruno São"}

	idx, err := engine.NewPriceIndex([]engine.PriceEntry{
		{StoreID: 10, BrandID: 100, Price: decimal.NewFromInt(10)},
		{StoreID: 11, BrandID: 100, Price: decimal.NewFromInt(20)},
	})
	require.NoError(t, err)

	override := decimal.NewFromInt(5)
	visits := []engine.Visit{
		{ID: 1, Promoter: alice, Store: centro, Brand: acme, Date: engine.MustParseDate("2024-01-02"), Status: engine.StatusCompleted},
		{ID: 2, Promoter: alice, Store: norte, Brand: acme, Date: engine.MustParseDate("2024-01-03"), Status: engine.StatusCompleted},
		{ID: 3, Promoter: bruno, Store: norte, Brand: acme, Date: engine.MustParseDate("2024-01-02"), Status: engine.StatusPending, PriceOverride: &override},
	}
	rows, summary := engine.BuildReport(visits, engine.NewPriceResolver(idx))

	start := engine.MustParseDate("2024-01-01")
	end := engine.MustParseDate("2024-01-31")
	return &engine.Report{
		Filter:     engine.VisitFilter{Start: &start, End: &end},
		Rows:       rows,
		Summary:    engine.SortedSummary(summary),
		TotalCount: len(rows),
		TotalValue: decimal.NewFromInt(35),
	}
}

func TestForFormat(t *testing.T) {
	for format, ext := range map[string]string{"csv": "csv", "": "csv", "XLSX": "xlsx", "excel": "xlsx", "pdf": "pdf"} {
		r, err := ForFormat(format)
		require.NoError(t, err, format)
		assert.Equal(t, ext, r.Extension(), format)
		assert.NotEmpty(t, r.ContentType())
	}

	_, err := ForFormat("docx")
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "visits_2024-01-01_2024-01-31.pdf", Filename(sampleReport(t), "pdf"))
	assert.Equal(t, "visits.csv", Filename(&engine.Report{}, "csv"))
}

func TestCSV_SubtotalsAfterEachGroup(t *testing.T) {
	// GIVEN: A report with two promoter groups
	var buf bytes.Buffer

	// WHEN: Rendering as CSV
	require.NoError(t, CSV{}.Render(&buf, sampleReport(t)))

	// THEN: header, A, A, subtotal A, B, subtotal B, total
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 7)

	assert.Equal(t, header, records[0])
	assert.Equal(t, []string{"1", "2024-01-02", "Alice", "Centro", "101", "Acme", "completed", "10.00", "1", "10.00"}, records[1])
	assert.Equal(t, "30.00", records[2][9])
	assert.Equal(t, []string{"Subtotal", "", "Alice", "", "", "", "", "", "2", "30.00"}, records[3])
	assert.Equal(t, "Bruno São", records[4][2])
	assert.Equal(t, "", records[4][4], "store without number")
	assert.Equal(t, "5.00", records[4][7])
	assert.Equal(t, []string{"Subtotal", "", "Bruno São", "", "", "", "", "", "1", "5.00"}, records[5])
	assert.Equal(t, []string{"TOTAL", "", "", "", "", "", "", "", "3", "35.00"}, records[6])
}

func TestCSV_EmptyReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSV{}.Render(&buf, &engine.Report{TotalValue: decimal.Zero}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2, "header and total only")
	assert.Equal(t, "0.00", records[1][9])
}

func TestXLSX_Render(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, XLSX{}.Render(&buf, sampleReport(t)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 7)
	assert.Equal(t, "Visit", rows[0][0])
	assert.Equal(t, "Subtotal", rows[3][0])
	assert.Equal(t, "TOTAL", rows[6][0])

	// subtotal row: count stays an integer, money columns keep two places
	count, err := f.GetCellValue(sheetName, "I4")
	require.NoError(t, err)
	assert.Equal(t, "2", count)
	cumulative, err := f.GetCellValue(sheetName, "J4")
	require.NoError(t, err)
	assert.Equal(t, "30.00", cumulative)

	// data row
	price, err := f.GetCellValue(sheetName, "H2")
	require.NoError(t, err)
	assert.Equal(t, "10.00", price)
	rowCount, err := f.GetCellValue(sheetName, "I2")
	require.NoError(t, err)
	assert.Equal(t, "1", rowCount)
}

func TestPDF_Render(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PDF{}.Render(&buf, sampleReport(t)))

	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Greater(t, buf.Len(), 500)
}
