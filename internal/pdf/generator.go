package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/nurpe/procurement-ipc/internal/model"
)

// Generator renders interim payment certificates with the built-in
// Helvetica face, so no font files ship with the binary.
type Generator struct {
	fontName string
}

func NewGenerator() *Generator {
	return &Generator{fontName: "Helvetica"}
}

func (g *Generator) Generate(doc model.IPCDocument) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetTitle(fmt.Sprintf("Interim Payment Certificate %s", doc.IPC.IPCNumber), true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	currency := doc.Contract.Currency

	pdf.SetFont(g.fontName, "B", 14)
	pdf.CellFormat(0, 10, "INTERIM PAYMENT CERTIFICATE", "", 1, "C", false, 0, "")

	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Certificate No. %s (sequence %d), status %s",
		doc.IPC.IPCNumber, doc.IPC.Sequence, doc.IPC.Status)), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Contract No. %s (%s - %s)",
		doc.Contract.ContractNumber, formatDate(doc.Contract.StartDate), formatDate(doc.Contract.EndDate))), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	addVendorBlock(pdf, g.fontName, tr, doc.Vendor)
	pdf.Ln(2)
	pdf.SetFont(g.fontName, "B", 11)
	pdf.CellFormat(0, 6, "Project", "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 10)
	pdf.MultiCell(0, 5, tr(safeValue(doc.Contract.Project)), "", "L", false)
	pdf.MultiCell(0, 5, tr(safeValue(doc.Contract.Title)), "", "L", false)
	pdf.Ln(2)

	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 8, "Valuation period", "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("from %s to %s", formatDate(doc.IPC.PeriodFrom), formatDate(doc.IPC.PeriodTo)), "", 1, "L", false, 0, "")
	if work := strings.TrimSpace(doc.IPC.WorkDescription); work != "" {
		pdf.SetFont(g.fontName, "", 10)
		pdf.MultiCell(0, 5, tr(work), "", "L", false)
	}
	pdf.Ln(2)

	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 8, "Valuation", "", 1, "L", false, 0, "")

	colWidths := []float64{120, 60}
	drawTableRow(pdf, g.fontName, []string{"Item", "Amount, " + currency}, colWidths, true)
	rows := [][]string{
		{"Contract value", formatAmount(doc.Contract.ContractValue)},
		{"Previously certified (cumulative)", formatAmount(doc.PreviousCumulative)},
		{"Value of work this certificate", formatAmount(doc.IPC.CurrentValue)},
		{"Cumulative value to date", formatAmount(doc.IPC.CumulativeValue)},
		{"Less deductions", formatAmount(doc.IPC.Deductions)},
		{"Net payable this certificate", formatAmount(doc.IPC.NetPayable)},
		{"Remaining contract value", formatAmount(doc.RemainingAfter)},
	}
	for _, row := range rows {
		drawTableRow(pdf, g.fontName, row, colWidths, false)
	}

	if doc.OverClaimed {
		pdf.Ln(2)
		pdf.SetTextColor(200, 0, 0)
		pdf.MultiCell(0, 6, tr(fmt.Sprintf("Warning: cumulative claims exceed the contract value by %s %s.",
			formatAmount(doc.RemainingAfter.Neg()), currency)), "", "L", false)
		pdf.SetTextColor(0, 0, 0)
	}

	if len(doc.IPC.Timeline) > 0 {
		pdf.Ln(4)
		pdf.SetFont(g.fontName, "B", 12)
		pdf.CellFormat(0, 8, "Review history", "", 1, "L", false, 0, "")
		historyWidths := []float64{35, 42, 45, 58}
		drawTableRow(pdf, g.fontName, []string{"Date", "Status", "By", "Notes"}, historyWidths, true)
		for _, entry := range doc.IPC.Timeline {
			notes := ""
			if entry.Notes != nil {
				notes = *entry.Notes
			}
			drawTableRow(pdf, g.fontName, []string{
				formatDateTime(entry.Timestamp),
				string(entry.Status),
				tr(fmt.Sprintf("%s (%s)", safeValue(entry.ActorName), entry.ActorRole)),
				tr(truncate(notes, 40)),
			}, historyWidths, false)
		}
	}

	pdf.Ln(6)
	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 8, "Signatures", "", 1, "L", false, 0, "")
	signatureBlock(pdf, g.fontName, tr, "Contractor", doc.Vendor.ContactName)
	signatureBlock(pdf, g.fontName, tr, "Certified by", "")
	signatureBlock(pdf, g.fontName, tr, "Approved for payment", "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addVendorBlock(pdf *gofpdf.Fpdf, fontName string, tr func(string) string, vendor model.Vendor) {
	pdf.SetFont(fontName, "B", 11)
	pdf.CellFormat(0, 6, "Contractor", "", 1, "L", false, 0, "")
	pdf.SetFont(fontName, "", 10)
	lines := []string{
		vendor.CompanyName,
		fmt.Sprintf("Contact: %s", safeValue(vendor.ContactName)),
		fmt.Sprintf("Address: %s", safeValue(vendor.Address)),
		fmt.Sprintf("Phone: %s", safeValue(vendor.Phone)),
	}
	for _, line := range lines {
		pdf.MultiCell(0, 5, tr(line), "", "L", false)
	}
}

func drawTableRow(pdf *gofpdf.Fpdf, fontName string, cols []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(fontName, style, 10)
	for i, col := range cols {
		align := "L"
		if len(widths) == 2 && i == 1 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 7, col, "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)
}

func signatureBlock(pdf *gofpdf.Fpdf, fontName string, tr func(string) string, label, name string) {
	pdf.SetFont(fontName, "", 11)
	pdf.CellFormat(0, 8, tr(fmt.Sprintf("%s: ______________________ /%s/", label, safeValue(name))), "", 1, "L", false, 0, "")
}

func safeValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-3]) + "..."
}

func formatAmount(value decimal.Decimal) string {
	return value.StringFixed(2)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02.01.2006")
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("02.01.2006 15:04")
}
