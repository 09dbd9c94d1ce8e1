package history

import (
	"fmt"
	"io"

	"courtbook/internal/model"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Historial"

var exportColumns = []string{"ID", "Cancha", "Fecha", "Hora", "Socio", "Horario punta"}

// ExportXLSX writes entries as a single-sheet spreadsheet with a bold header row.
func ExportXLSX(w io.Writer, entries []Entry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	if err := writeRow(f, 1, toCells(exportColumns)); err != nil {
		return err
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		endCell, _ := excelize.CoordinatesToCellName(len(exportColumns), 1)
		_ = f.SetCellStyle(sheetName, "A1", endCell, style)
	}

	for i, e := range entries {
		row := []interface{}{
			e.ID,
			e.Court.String(),
			e.Date().String(),
			fmt.Sprintf("%02d:00", e.Hour()),
			e.DisplayName(model.UnknownUserLabel),
			e.Highlighted,
		}
		if err := writeRow(f, i+2, row); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, rowNum int, values []interface{}) error {
	for i, val := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, rowNum)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, val); err != nil {
			return fmt.Errorf("set %s: %w", cell, err)
		}
	}
	return nil
}

func toCells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
