package tabular

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const maxSheetNameLen = 31

// XLSX reads and writes Office Open XML workbooks.
// Only the first worksheet is read. Cells are read raw so date cells arrive as serial numbers.
type XLSX struct{}

func (XLSX) Read(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func (XLSX) Write(w io.Writer, sheet *Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	name := "Sheet1"
	if sheet.Title != "" {
		title := sheet.Title
		if len(title) > maxSheetNameLen {
			title = title[:maxSheetNameLen]
		}
		if err := f.SetSheetName(name, title); err != nil {
			return fmt.Errorf("failed to name sheet: %w", err)
		}
		name = title
	}

	if err := writeRow(f, name, 1, sheet.Headers); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetRowStyle(name, 1, 1, bold); err != nil {
		return fmt.Errorf("failed to style header row: %w", err)
	}

	for i, row := range sheet.Rows {
		if err := writeRow(f, name, i+2, row); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func (XLSX) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (XLSX) Extension() string {
	return "xlsx"
}

func writeRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}
