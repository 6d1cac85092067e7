package http

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"bacnet-events/internal/events/infrastructure/postgres"
)

// BuildHistoryPDF renders a minimal PDF of transition history.
func BuildHistoryPDF(records []postgres.TransitionRecord) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Event Transition History")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Records: %d", len(records)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(50, 6, "Object", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "From", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "To", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Event Type", "1", 0, "C", false, 0, "")
	pdf.CellFormat(55, 6, "Occurred", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, rec := range records {
		pdf.CellFormat(50, 6, rec.Object, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, string(rec.FromState), "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, string(rec.ToState), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, string(rec.EventType), "1", 0, "C", false, 0, "")
		pdf.CellFormat(55, 6, rec.OccurredAt.Format(time.RFC3339), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildHistoryXLSX renders a minimal XLSX of transition history.
func BuildHistoryXLSX(records []postgres.TransitionRecord) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "transitions"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", "Object")
	_ = f.SetCellValue(sheet, "B1", "From")
	_ = f.SetCellValue(sheet, "C1", "To")
	_ = f.SetCellValue(sheet, "D1", "Kind")
	_ = f.SetCellValue(sheet, "E1", "Event Type")
	_ = f.SetCellValue(sheet, "F1", "Occurred")
	_ = f.SetCellValue(sheet, "G1", "Suppressed")
	for i, rec := range records {
		row := i + 2
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), rec.Object)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), string(rec.FromState))
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), string(rec.ToState))
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), rec.Kind)
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), string(rec.EventType))
		_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", row), rec.OccurredAt.Format(time.RFC3339))
		_ = f.SetCellValue(sheet, fmt.Sprintf("G%d", row), rec.Suppressed)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
