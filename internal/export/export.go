package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"staytoken/internal/domain"
	"staytoken/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// Exporter writes booking reports as Excel workbooks for operators.
type Exporter struct {
	store  domain.Store
	path   string
	logger *zerolog.Logger
}

func New(store domain.Store, path string, logger *zerolog.Logger) *Exporter {
	return &Exporter{store: store, path: path, logger: logger}
}

// BookingsToExcel создает Excel файл с бронированиями за период
func (e *Exporter) BookingsToExcel(ctx context.Context, status string, from, to time.Time) (string, error) {
	// Создаем папку для экспорта, если не существует
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	bookings, err := e.store.ListBookings(ctx, status, from, to)
	if err != nil {
		return "", fmt.Errorf("error getting bookings: %v", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Bookings"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Period: %s - %s",
		from.Format("02.01.2006"), to.Format("02.01.2006")))
	_ = f.MergeCell(sheetName, "A1", "L1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headers := []string{
		"ID", "Event ID", "Owner", "Total", "Base Rate", "Deposit",
		"Rooms", "Check-In", "Check-Out", "Status", "Tradeable", "Reference",
	}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, header)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for i, b := range bookings {
		row := i + 3
		_ = f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), b.ID)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), b.EventID)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), string(b.Owner))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), b.TotalAmount)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), b.BaseRate)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), b.MinimumDeposit)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), b.RoomCount)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), b.CheckIn.Format("02.01.2006 15:04"))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), b.CheckOut.Format("02.01.2006 15:04"))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("J%d", row), b.Status)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("K%d", row), boolToYesNo(b.Tradeable))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("L%d", row), b.ReferenceID)

		if styleID, err := e.statusStyle(f, b.Status); err == nil {
			cellStart := fmt.Sprintf("A%d", row)
			cellEnd := fmt.Sprintf("L%d", row)
			_ = f.SetCellStyle(sheetName, cellStart, cellEnd, styleID)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "B", 10)
	_ = f.SetColWidth(sheetName, "C", "C", 45)
	_ = f.SetColWidth(sheetName, "D", "G", 12)
	_ = f.SetColWidth(sheetName, "H", "I", 18)
	_ = f.SetColWidth(sheetName, "J", "L", 14)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("bookings_%s_to_%s.xlsx",
		from.Format("2006-01-02"), to.Format("2006-01-02"))
	filePath := filepath.Join(e.path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("bookings", len(bookings)).Msg("Excel file created")
	return filePath, nil
}

// statusStyle возвращает заливку строки по статусу
func (e *Exporter) statusStyle(f *excelize.File, status string) (int, error) {
	var color string
	switch status {
	case models.StatusConfirmed, models.StatusCheckedIn:
		color = "#C6EFCE"
	case models.StatusBooked:
		color = "#FFEB9C"
	case models.StatusCancelled:
		color = "#FFC7CE"
	default:
		color = "#FFFFFF"
	}
	return f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		Alignment: &excelize.Alignment{Vertical: "top"},
	})
}

// boolToYesNo преобразует bool в "Yes"/"No"
func boolToYesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
