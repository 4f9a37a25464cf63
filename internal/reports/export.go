package reports

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// BuildDailyPDF renders a daily observation summary as PDF.
func BuildDailyPDF(day time.Time, summaries []DailySummary) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Station Observations Daily Summary")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Day: %s", day.Format("2006-01-02")))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Stations: %d", len(summaries)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(25, 6, "Station", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Readings", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Wave Height m (min/avg/max)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Wind Speed m/s (min/avg/max)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Air Temp C (min/avg/max)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Pressure hPa (min/avg/max)", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, s := range summaries {
		pdf.CellFormat(25, 6, s.StationID, "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", s.Readings), "1", 0, "R", false, 0, "")
		pdf.CellFormat(45, 6, formatStat(s.WaveHeightM), "1", 0, "R", false, 0, "")
		pdf.CellFormat(45, 6, formatStat(s.WindSpeedMS), "1", 0, "R", false, 0, "")
		pdf.CellFormat(45, 6, formatStat(s.AirTempC), "1", 0, "R", false, 0, "")
		pdf.CellFormat(45, 6, formatStat(s.PressureHPa), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildDailyXLSX renders a daily observation summary as XLSX.
func BuildDailyXLSX(day time.Time, summaries []DailySummary) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "summary"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", "Station Observations Daily Summary")
	_ = f.SetCellValue(sheet, "A2", "Day")
	_ = f.SetCellValue(sheet, "B2", day.Format("2006-01-02"))

	headers := []string{
		"Station", "Readings",
		"Wave Height Min", "Wave Height Avg", "Wave Height Max",
		"Wind Speed Min", "Wind Speed Avg", "Wind Speed Max",
		"Air Temp Min", "Air Temp Avg", "Air Temp Max",
		"Water Temp Min", "Water Temp Avg", "Water Temp Max",
		"Pressure Min", "Pressure Avg", "Pressure Max",
	}
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 4)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(sheet, cell, header)
	}

	for row, s := range summaries {
		values := []interface{}{
			s.StationID, s.Readings,
			s.WaveHeightM.Min, s.WaveHeightM.Avg(), s.WaveHeightM.Max,
			s.WindSpeedMS.Min, s.WindSpeedMS.Avg(), s.WindSpeedMS.Max,
			s.AirTempC.Min, s.AirTempC.Avg(), s.AirTempC.Max,
			s.WaterTempC.Min, s.WaterTempC.Avg(), s.WaterTempC.Max,
			s.PressureHPa.Min, s.PressureHPa.Avg(), s.PressureHPa.Max,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+5)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(sheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatStat(s Stat) string {
	if s.Count == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f / %.1f / %.1f", s.Min, s.Avg(), s.Max)
}
