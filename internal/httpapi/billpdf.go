package httpapi

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-pdf/fpdf"

	"cartify/backend/internal/domain"
)

var billColumns = []struct {
	title string
	width float64
	align string
}{
	{"Product", 80, "L"},
	{"Qty", 20, "R"},
	{"Price", 30, "R"},
	{"Weight", 25, "R"},
	{"Total", 35, "R"},
}

// renderBillPDF writes a single-page A4 bill.
func renderBillPDF(w io.Writer, doc domain.BillDocument) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Bill "+doc.BillID, false)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Bill "+doc.BillID, "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr("Customer: "+doc.CustomerName), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Date: "+doc.CreatedAt.UTC().Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Payment status: "+doc.PosBillStatus, "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for _, col := range billColumns {
		pdf.CellFormat(col.width, 7, col.title, "1", 0, col.align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, line := range doc.Lines {
		cells := []string{tr(line.Product), strconv.Itoa(line.Quantity), line.Price, line.Weight, line.Total}
		for i, col := range billColumns {
			pdf.CellFormat(col.width, 7, cells[i], "1", 0, col.align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.Ln(3)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(155, 7, "Total weight", "", 0, "R", false, 0, "")
	pdf.CellFormat(35, 7, doc.TotalWeight, "", 1, "R", false, 0, "")
	pdf.CellFormat(155, 7, "Total", "", 0, "R", false, 0, "")
	pdf.CellFormat(35, 7, doc.TotalBilling, "", 1, "R", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
