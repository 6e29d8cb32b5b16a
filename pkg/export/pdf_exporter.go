package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// Document is a titled dataset with free-form summary lines printed under the title.
type Document struct {
	Title   string
	Summary []string
	Data    Dataset
	// Widths optionally weights columns; missing weights default to 1.
	Widths map[string]float64
}

// PDFExporter renders documents into a tabular A4 PDF.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates the PDF bytes for doc.
func (e *PDFExporter) Render(doc Document) ([]byte, error) {
	if len(doc.Data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	if doc.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(doc.Title), "", 1, "C", false, 0, "")
	}
	if len(doc.Summary) > 0 {
		pdf.SetFont("Arial", "", 10)
		for _, line := range doc.Summary {
			pdf.CellFormat(0, 6, tr(line), "", 1, "L", false, 0, "")
		}
	}
	pdf.Ln(4)

	widths := columnWidths(doc.Data.Headers, doc.Widths, 190.0)
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for i, header := range doc.Data.Headers {
		pdf.CellFormat(widths[i], 8, tr(header), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range doc.Data.Rows {
		for i, header := range doc.Data.Headers {
			pdf.CellFormat(widths[i], 7, tr(row[header]), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(headers []string, weights map[string]float64, total float64) []float64 {
	sum := 0.0
	raw := make([]float64, len(headers))
	for i, h := range headers {
		w := weights[h]
		if w <= 0 {
			w = 1
		}
		raw[i] = w
		sum += w
	}
	for i := range raw {
		raw[i] = raw[i] / sum * total
	}
	return raw
}
