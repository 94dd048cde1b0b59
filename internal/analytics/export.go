package analytics

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

const summarySheet = "Summary"

// Export renders a and stats as an XLSX workbook. The first sheet holds the
// dashboard counters; each distribution gets its own sheet.
func Export(a Analytics, stats DashboardStats) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	summary := [][]any{
		{"Total Contracts", stats.TotalContracts},
		{"Analyzed Contracts", stats.AnalyzedContracts},
		{"Processing Contracts", stats.ProcessingContracts},
		{"Failed Contracts", stats.FailedContracts},
		{"Total Clauses", stats.TotalClauses},
		{"High Risk Clauses", stats.HighRiskClauses},
		{"Pending Amendments", stats.PendingAmendments},
		{"Analysis Rate (%)", stats.AnalysisRate},
	}
	if err := writeSheet(f, summarySheet, []string{"Metric", "Value"}, summary); err != nil {
		return nil, err
	}

	sheets := []struct {
		name    string
		headers []string
		rows    [][]any
	}{
		{"Contracts by Type", []string{"Contract Type", "Count"}, typeRows(a.ContractsByType)},
		{"Clauses by Type", []string{"Clause Type", "Count"}, typeRows(a.ClausesByType)},
		{"Risk Distribution", []string{"Risk Level", "Count"}, levelRows(a.RiskDistribution)},
		{"Amendments by Status", []string{"Status", "Count"}, statusRows(a.AmendmentsByStatus)},
		{"Most Risky Clause Types", []string{"Clause Type", "High Risk Count"}, typeRows(a.MostRiskyClauseTypes)},
	}

	for _, s := range sheets {
		if _, err := f.NewSheet(s.name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", s.name, err)
		}
		if err := writeSheet(f, s.name, s.headers, s.rows); err != nil {
			return nil, err
		}
	}

	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]any) error {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("write %s header: %w", sheet, err)
		}
	}

	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("write %s row %d: %w", sheet, r+1, err)
			}
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 28)
	_ = f.SetColWidth(sheet, "B", "B", 16)
	return nil
}

func typeRows(items []TypeCount) [][]any {
	rows := make([][]any, 0, len(items))
	for _, it := range items {
		rows = append(rows, []any{it.Type, it.Count})
	}
	return rows
}

func levelRows(items []LevelCount) [][]any {
	rows := make([][]any, 0, len(items))
	for _, it := range items {
		rows = append(rows, []any{string(it.Level), it.Count})
	}
	return rows
}

func statusRows(items []StatusCount) [][]any {
	rows := make([][]any, 0, len(items))
	for _, it := range items {
		rows = append(rows, []any{string(it.Status), it.Count})
	}
	return rows
}
