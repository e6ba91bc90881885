package chartexport

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/odonto/odonto/internal/domain/odontogram"
	"github.com/odonto/odonto/internal/platform/metrics"
)

const chartSheetName = "Odontograma"

var spreadsheetHeader = []string{
	"Pieza", "Estado histórico", "Estado actual", "Sectores restaurados", "Corona", "Prótesis", "Notas",
}

// Spreadsheet writes one row per tooth, in layout order, with the historical
// and current state side by side.
func Spreadsheet(doc Document) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", chartSheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range spreadsheetHeader {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(chartSheetName, cell, h); err != nil {
			return nil, err
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(spreadsheetHeader), 1)
	if err := f.SetCellStyle(chartSheetName, "A1", last, bold); err != nil {
		return nil, err
	}

	hist := odontogram.Materialize(doc.Visit.Historical)
	curr := odontogram.Materialize(doc.Visit.Current)
	for i, id := range odontogram.AllValidToothIDs() {
		h, _ := hist.Find(id)
		c, _ := curr.Find(id)
		row := []any{
			int(id),
			string(h.Status),
			string(c.Status),
			restoredSectors(c),
			yesNo(c.HasCrown),
			yesNo(c.HasProsthesis),
			c.Notes,
		}
		for col, v := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(chartSheetName, cell, v); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		metrics.Exports.WithLabelValues("xlsx", "error").Inc()
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	metrics.Exports.WithLabelValues("xlsx", "ok").Inc()
	return buf.Bytes(), nil
}

func restoredSectors(tc odontogram.ToothCondition) string {
	var out []string
	for _, s := range tc.Sectors {
		if s.HasRestoration {
			out = append(out, string(s.Sector))
		}
	}
	return strings.Join(out, ", ")
}

func yesNo(v bool) string {
	if v {
		return "sí"
	}
	return "no"
}
