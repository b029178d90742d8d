package workflow

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mmdatafocus/prognosis_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestSniffDelimiter(t *testing.T) {
	cases := []struct {
		input string
		want  rune
	}{
		{"a,b,c\n1,2,3", ','},
		{"a;b;c\n1;2;3", ';'},
		{"a\tb\tc\n", '\t'},
		{"a|b|c", '|'},
		{"\n\n\"x;y\",b,c\n", ','},
		{"single", ','},
		{"\"Сумма, руб\";Период;Статья", ';'},
	}
	for _, tc := range cases {
		assert.Equal(t, string(tc.want), string(sniffDelimiter([]byte(tc.input))), tc.input)
	}
}

func TestLoadTable_CSV(t *testing.T) {
	data := "\ufeffСтатья ; Период;Сумма\n" +
		" REV-01 ;2025-01; 1 200,50 \n" +
		";;\n" +
		"\n" +
		"007;2025;10\n"
	table, err := LoadTable(strings.NewReader(data), models.ImportFileTypeCSV)
	require.NoError(t, err)

	assert.Equal(t, []string{"Статья", "Период", "Сумма"}, table.Header)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, 2, table.Rows[0].Line)
	assert.Equal(t, []string{"REV-01", "2025-01", "1 200,50"}, table.Rows[0].Cells)
	assert.Equal(t, 5, table.Rows[1].Line)
	assert.Equal(t, "007", table.Rows[1].Cell(0))
	assert.Equal(t, "", table.Rows[1].Cell(7))

	assert.Equal(t, 1, table.ColumnIndex([]string{"Period", "период"}))
	assert.Equal(t, -1, table.ColumnIndex([]string{"Project"}))
}

func TestLoadTable_EmptyFile(t *testing.T) {
	_, err := LoadTable(strings.NewReader("\n ; \n"), models.ImportFileTypeCSV)
	assert.ErrorIs(t, err, ErrEmptyTable)
}

func TestLoadTable_ExcelKeepsRawStrings(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Article", "Period", "Amount"}))
	require.NoError(t, f.SetCellStr(sheet, "A2", "007"))
	require.NoError(t, f.SetCellStr(sheet, "B2", "2025-02"))
	require.NoError(t, f.SetCellFloat(sheet, "C2", 1500.25, -1, 64))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	table, err := LoadTable(bytes.NewReader(buf.Bytes()), models.ImportFileTypeExcel)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, []string{"007", "2025-02", "1500.25"}, table.Rows[0].Cells)
	assert.Equal(t, 2, table.Rows[0].Line)
}

func TestLoadTable_ExcelRejectsGarbage(t *testing.T) {
	_, err := LoadTable(strings.NewReader("definitely not a workbook"), models.ImportFileTypeExcel)
	assert.Error(t, err)
}

func TestParsePeriodToken(t *testing.T) {
	year, month, err := ParsePeriodToken("2025-03")
	require.NoError(t, err)
	assert.Equal(t, 2025, year)
	require.NotNil(t, month)
	assert.Equal(t, 3, *month)

	year, month, err = ParsePeriodToken("2024")
	require.NoError(t, err)
	assert.Equal(t, 2024, year)
	assert.Nil(t, month)

	for _, bad := range []string{"2025-13", "2025-00", "25-01", "2025/01", "Q1 2025", "2025-1", "2025-+1", "+202", "-2025", ""} {
		_, _, err := ParsePeriodToken(bad)
		assert.ErrorIs(t, err, models.ErrInvalidPeriod, bad)
	}
}
