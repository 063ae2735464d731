package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders a Dataset as a tabular PDF report.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render draws the title, a header row and one striped row per record, with a
// generation timestamp in the footer.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf export: empty header set")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 14, 12)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 7)
		stamp := time.Now().UTC().Format("2006-01-02 15:04 UTC")
		pdf.CellFormat(0, 8, "Generated "+stamp, "", 0, "R", false, 0, "")
	})
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 13)
		pdf.CellFormat(0, 9, title, "", 1, "L", false, 0, "")
		pdf.Ln(3)
	}

	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	colW := (pageW - left - right) / float64(len(data.Headers))

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for _, h := range data.Headers {
		pdf.CellFormat(colW, 8, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for i, row := range data.Rows {
		shade := i%2 == 1
		if shade {
			pdf.SetFillColor(245, 245, 245)
		}
		for _, h := range data.Headers {
			pdf.CellFormat(colW, 7, row[h], "1", 0, "L", shade, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf export: %w", err)
	}
	return buf.Bytes(), nil
}
