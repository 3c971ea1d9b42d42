package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/propdocs/plan-extractor/internal/extract"
)

// Service produces XLSX bytes summarizing an extraction run: the structured
// room-dimension facts plus the failure journal, for handover review packs.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// RoomDimensionsXLSX returns a workbook with one row per extracted room and
// a second sheet listing document failures.
func (s *Service) RoomDimensionsXLSX(filename string, res extract.Result) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	const sheet = "Room Dimensions"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{"Room", "Length (m)", "Width (m)", "Area (sqm)", "Confidence", "Context"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}
	for row, d := range res.RoomDimensions {
		values := []any{d.Room, d.LengthM, d.WidthM, d.AreaSqm, d.Confidence, d.RawText}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	const failSheet = "Failures"
	if _, err := f.NewSheet(failSheet); err != nil {
		return nil, err
	}
	failHeaders := []string{"Page", "Error", "Timestamp"}
	for i, h := range failHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(failSheet, cell, h); err != nil {
			return nil, err
		}
	}
	for row, df := range res.DocumentFailures {
		values := []any{df.Page, df.Error, df.Timestamp.UTC().Format(time.RFC3339)}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(failSheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	if idx, _ := f.GetSheetIndex("Sheet1"); idx != -1 {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	s.logger.Info("export.rooms_xlsx.ok",
		"filename", filename,
		"rooms", len(res.RoomDimensions),
		"failures", len(res.DocumentFailures),
		"bytes", buf.Len(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
