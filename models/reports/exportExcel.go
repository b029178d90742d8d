package reports

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	excelMinColWidth = 10
	excelMaxColWidth = 60
	excelSheetMax    = 31
)

// cellValue converts engine values to what excelize writes natively.
func cellValue(v any) any {
	switch val := v.(type) {
	case decimal.Decimal:
		return val.InexactFloat64()
	case *decimal.Decimal:
		if val == nil {
			return nil
		}
		return val.InexactFloat64()
	default:
		return val
	}
}

func cellText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case decimal.Decimal:
		return val.StringFixed(2)
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

func sheetName(name string) string {
	name = strings.NewReplacer(":", " ", "\\", " ", "/", " ", "?", " ", "*", " ", "[", " ", "]", " ").Replace(name)
	name = strings.TrimSpace(name)
	if name == "" {
		return "Report"
	}
	if utf8.RuneCountInString(name) > excelSheetMax {
		name = string([]rune(name)[:excelSheetMax])
	}
	return name
}

// RenderExcel writes rows as a single sheet xlsx with a bold header row and
// column widths fitted to their content.
func RenderExcel(rows []Row, sheet string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet = sheetName(sheet)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	columns := ColumnsOf(rows)
	widths := make([]int, len(columns))

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return nil, err
		}
		widths[i] = utf8.RuneCountInString(col)
	}
	if len(columns) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(columns), 1)
		if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
			return nil, err
		}
	}

	for r, row := range rows {
		for i, col := range columns {
			cell, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				return nil, err
			}
			v, ok := row[col]
			if !ok {
				continue
			}
			if err := f.SetCellValue(sheet, cell, cellValue(v)); err != nil {
				return nil, err
			}
			if n := utf8.RuneCountInString(cellText(v)); n > widths[i] {
				widths[i] = n
			}
		}
	}

	for i, w := range widths {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		width := float64(min(max(w+2, excelMinColWidth), excelMaxColWidth))
		if err := f.SetColWidth(sheet, name, name, width); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}
