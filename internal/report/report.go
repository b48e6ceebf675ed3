package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"prodsync/internal/models"

	"github.com/xuri/excelize/v2"
)

// Export writes an xlsx summary of a sync job with its error log and
// returns the file path.
func Export(job models.SyncJob, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating report directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Sync Report"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	summary := [][]any{
		{"Job ID", job.ID},
		{"Status", string(job.Status)},
		{"Total", job.Total},
		{"Processed", job.Processed},
		{"Cursor", job.Cursor},
		{"Started", formatTime(job.StartTime)},
		{"Errors", len(job.Errors)},
	}
	for i, row := range summary {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		_ = f.SetSheetRow(sheetName, cell, &row)
	}

	headerRow := len(summary) + 2
	headers := []any{"Product ID", "Tenant", "Message", "Time"}
	cell, _ := excelize.CoordinatesToCellName(1, headerRow)
	_ = f.SetSheetRow(sheetName, cell, &headers)

	style, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	endCell, _ := excelize.CoordinatesToCellName(len(headers), headerRow)
	_ = f.SetCellStyle(sheetName, cell, endCell, style)

	for i, syncErr := range job.Errors {
		row := []any{syncErr.ProductID, syncErr.Tenant, syncErr.Message, formatTime(syncErr.Time)}
		cell, _ := excelize.CoordinatesToCellName(1, headerRow+1+i)
		_ = f.SetSheetRow(sheetName, cell, &row)
	}

	_ = f.SetColWidth(sheetName, "A", "B", 16)
	_ = f.SetColWidth(sheetName, "C", "C", 60)
	_ = f.SetColWidth(sheetName, "D", "D", 22)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("sync_report_%s.xlsx", time.Now().Format("2006-01-02_150405"))
	filePath := filepath.Join(dir, fileName)
	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving report: %w", err)
	}

	return filePath, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
