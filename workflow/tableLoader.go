package workflow

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mmdatafocus/prognosis_backend/models"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var ErrEmptyTable = errors.New("file has no header row")

var csvDelimiters = []rune{',', ';', '\t', '|'}

// TableRow is one data row with its 1-based line number in the source file.
type TableRow struct {
	Line  int
	Cells []string
}

// Table is an import file loaded as trimmed strings. Fully empty rows are dropped.
type Table struct {
	Header []string
	Rows   []TableRow
}

// ColumnIndex finds the first header matching one of labels, case-insensitively.
func (t *Table) ColumnIndex(labels []string) int {
	for _, label := range labels {
		for i, h := range t.Header {
			if strings.EqualFold(h, strings.TrimSpace(label)) {
				return i
			}
		}
	}
	return -1
}

func (r TableRow) Cell(index int) string {
	if index < 0 || index >= len(r.Cells) {
		return ""
	}
	return r.Cells[index]
}

func LoadTable(r io.Reader, fileType models.ImportFileType) (*Table, error) {
	switch fileType {
	case models.ImportFileTypeCSV:
		return loadCSV(r)
	case models.ImportFileTypeExcel:
		return loadExcel(r)
	default:
		return nil, fmt.Errorf("unsupported file type %q", fileType)
	}
}

func loadCSV(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var builder tableBuilder
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := reader.FieldPos(0)
		builder.add(line, record)
	}
	return builder.table()
}

// sniffDelimiter picks the candidate that occurs most often, outside quotes,
// on the first non-empty line. Ties keep the earlier candidate.
func sniffDelimiter(data []byte) rune {
	var first string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			first = line
			break
		}
	}
	counts := map[rune]int{}
	quoted := false
	for _, ch := range first {
		if ch == '"' {
			quoted = !quoted
			continue
		}
		if !quoted {
			counts[ch]++
		}
	}
	best := csvDelimiters[0]
	for _, d := range csvDelimiters[1:] {
		if counts[d] > counts[best] {
			best = d
		}
	}
	return best
}

func loadExcel(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyTable
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	var builder tableBuilder
	for i, row := range rows {
		builder.add(i+1, row)
	}
	return builder.table()
}

type tableBuilder struct {
	header []string
	rows   []TableRow
}

func (b *tableBuilder) add(line int, record []string) {
	cells := make([]string, len(record))
	empty := true
	for i, c := range record {
		cells[i] = strings.TrimSpace(c)
		if cells[i] != "" {
			empty = false
		}
	}
	if empty {
		return
	}
	if b.header == nil {
		b.header = cells
		return
	}
	b.rows = append(b.rows, TableRow{Line: line, Cells: cells})
}

func (b *tableBuilder) table() (*Table, error) {
	if b.header == nil {
		return nil, ErrEmptyTable
	}
	return &Table{Header: b.header, Rows: b.rows}, nil
}
