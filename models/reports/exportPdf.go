package reports

import (
	"bytes"

	"github.com/go-pdf/fpdf"
)

const (
	pdfRowHeight = 7.0
	pdfFontSize  = 9.0
)

// RenderPDF lays rows out as a landscape A4 table under title.
// Core fonts only cover cp1252; other characters are replaced.
func RenderPDF(rows []Row, title string) ([]byte, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(title, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, tr(title), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	columns := ColumnsOf(rows)
	if len(columns) > 0 {
		pageW, _ := pdf.GetPageSize()
		left, _, right, _ := pdf.GetMargins()
		colW := (pageW - left - right) / float64(len(columns))

		pdf.SetFont("Helvetica", "B", pdfFontSize)
		pdf.SetFillColor(230, 230, 230)
		for _, col := range columns {
			pdf.CellFormat(colW, pdfRowHeight, tr(col), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Helvetica", "", pdfFontSize)
		for _, row := range rows {
			for _, col := range columns {
				align := "L"
				if _, numeric := cellValue(row[col]).(float64); numeric {
					align = "R"
				}
				pdf.CellFormat(colW, pdfRowHeight, tr(cellText(row[col])), "1", 0, align, false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
