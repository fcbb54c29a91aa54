package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// XLSXExporter renders datasets into a single-sheet workbook.
type XLSXExporter struct{}

var _ Renderer = (*XLSXExporter)(nil)

// NewXLSXExporter constructs a workbook exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// ContentType implements Renderer.
func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Extension implements Renderer.
func (e *XLSXExporter) Extension() string { return "xlsx" }

// Render writes headers on row 1 and one row per record below. The sheet is
// named after the dataset title when it fits Excel's limits.
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	sheet := defaultSheet
	if name := sheetName(data.Title); name != "" {
		if err := f.SetSheetName(defaultSheet, name); err != nil {
			return nil, fmt.Errorf("name sheet: %w", err)
		}
		sheet = name
	}

	for i, header := range data.Headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, fmt.Errorf("write xlsx header: %w", err)
		}
	}
	for r, row := range data.Rows {
		for i, value := range data.cells(row) {
			cell, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("write xlsx row: %w", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return bytes.Clone(buf.Bytes()), nil
}

func sheetName(title string) string {
	if title == "" {
		return ""
	}
	name := []rune(title)
	for i, r := range name {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			name[i] = '-'
		}
	}
	if len(name) > 31 {
		name = name[:31]
	}
	return string(name)
}
