package excel

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/nurpe/procurement-ipc/internal/ledger"
	"github.com/nurpe/procurement-ipc/internal/model"
)

const (
	SummarySheet  = "Summary"
	ProjectsSheet = "Projects"
	VendorsSheet  = "Vendors"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Generate(report model.SpendReport) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, err
	}
	g.writeSummary(file, SummarySheet, report)

	for _, sheet := range []string{ProjectsSheet, VendorsSheet} {
		if _, err := file.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	g.writeProjects(file, ProjectsSheet, report.Projects)
	g.writeVendors(file, VendorsSheet, report.Vendors)

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, sheet string, report model.SpendReport) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	budget := decimal.Zero
	spent := decimal.Zero
	contracts := 0
	for _, project := range report.Projects {
		budget = budget.Add(project.Budget)
		spent = spent.Add(project.Spent)
		contracts += project.ContractCount
	}

	set("A1", "Generated at")
	set("B1", formatDateTime(report.GeneratedAt))
	set("A2", "Project")
	set("B2", orAll(report.Filter.Project))
	set("A3", "Vendor")
	if report.Filter.VendorID != nil {
		set("B3", report.Filter.VendorID.String())
	} else {
		set("B3", "all")
	}
	set("A4", "Period start")
	set("B4", formatOptionalDate(report.Filter.From))
	set("A5", "Period end")
	set("B5", formatOptionalDate(report.Filter.To))
	set("A7", "Projects")
	set("B7", len(report.Projects))
	set("A8", "Contracts")
	set("B8", contracts)
	set("A9", "Total budget")
	set("B9", amount(budget))
	set("A10", "Total spent")
	set("B10", amount(spent))
	set("A11", "Utilization, %")
	set("B11", percent(ledger.OptionalPercent(spent, budget)))

	_ = file.SetColWidth(sheet, "A", "A", 24)
	_ = file.SetColWidth(sheet, "B", "B", 40)
}

func (g *Generator) writeProjects(file *excelize.File, sheet string, projects []model.ProjectSpend) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	writeHeader(file, sheet, []string{"Project", "Budget", "Spent", "Utilization, %", "Contracts"})
	for i, project := range projects {
		row := i + 2
		set(fmt.Sprintf("A%d", row), orUnassigned(project.Project))
		set(fmt.Sprintf("B%d", row), amount(project.Budget))
		set(fmt.Sprintf("C%d", row), amount(project.Spent))
		set(fmt.Sprintf("D%d", row), percent(project.Utilization))
		set(fmt.Sprintf("E%d", row), project.ContractCount)
	}

	_ = file.SetColWidth(sheet, "A", "A", 36)
	_ = file.SetColWidth(sheet, "B", "D", 18)
	_ = file.SetColWidth(sheet, "E", "E", 12)
}

func (g *Generator) writeVendors(file *excelize.File, sheet string, vendors []model.VendorPerformance) {
	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	writeHeader(file, sheet, []string{
		"Rank",
		"Vendor",
		"Contracts",
		"Total value",
		"Paid",
		"IPCs",
		"On-time payments",
		"Performance score",
	})
	for i, vendor := range vendors {
		row := i + 2
		set(fmt.Sprintf("A%d", row), i+1)
		set(fmt.Sprintf("B%d", row), vendor.CompanyName)
		set(fmt.Sprintf("C%d", row), vendor.TotalContracts)
		set(fmt.Sprintf("D%d", row), amount(vendor.TotalValue))
		set(fmt.Sprintf("E%d", row), amount(vendor.PaidAmount))
		set(fmt.Sprintf("F%d", row), vendor.IPCCount)
		set(fmt.Sprintf("G%d", row), vendor.OnTimePayments)
		if vendor.InsufficientData {
			set(fmt.Sprintf("H%d", row), "insufficient data")
		} else {
			set(fmt.Sprintf("H%d", row), percent(vendor.PerformanceScore))
		}
	}

	_ = file.SetColWidth(sheet, "A", "A", 8)
	_ = file.SetColWidth(sheet, "B", "B", 36)
	_ = file.SetColWidth(sheet, "C", "H", 16)
}

func writeHeader(file *excelize.File, sheet string, headers []string) {
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = file.SetCellValue(sheet, cell, header)
	}
}

// amount keeps the cell numeric so totals can be summed in the sheet.
func amount(value decimal.Decimal) float64 {
	return value.Round(2).InexactFloat64()
}

func percent(value *decimal.Decimal) interface{} {
	if value == nil {
		return "N/A"
	}
	return value.InexactFloat64()
}

func orAll(value string) string {
	if value == "" {
		return "all"
	}
	return value
}

func orUnassigned(value string) string {
	if value == "" {
		return "(no project)"
	}
	return value
}

func formatOptionalDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}
