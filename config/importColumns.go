package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// ImportColumns maps each logical import field to the header labels accepted for it.
// Labels are compared case-insensitively after trimming.
type ImportColumns struct {
	Article    []string `toml:"article"`
	Period     []string `toml:"period"`
	Amount     []string `toml:"amount"`
	CostCenter []string `toml:"cost_center"`
	Department []string `toml:"department"`
	Project    []string `toml:"project"`
	Account    []string `toml:"account"`
	Comment    []string `toml:"comment"`
}

type importColumnsFile struct {
	Columns ImportColumns `toml:"columns"`
}

func DefaultImportColumns() ImportColumns {
	return ImportColumns{
		Article:    []string{"Статья", "Article", "article_code"},
		Period:     []string{"Период", "Period"},
		Amount:     []string{"Сумма", "Amount"},
		CostCenter: []string{"ЦФО", "Cost Center", "cost_center"},
		Department: []string{"Подразделение", "Department"},
		Project:    []string{"Проект", "Project"},
		Account:    []string{"Счет", "Счёт", "Account"},
		Comment:    []string{"Комментарий", "Comment"},
	}
}

var (
	importColumns     ImportColumns
	importColumnsErr  error
	importColumnsOnce sync.Once
)

// GetImportColumns returns the mapping from IMPORT_COLUMNS_FILE, or the defaults.
func GetImportColumns() (ImportColumns, error) {
	importColumnsOnce.Do(func() {
		path := strings.TrimSpace(os.Getenv("IMPORT_COLUMNS_FILE"))
		if path == "" {
			importColumns = DefaultImportColumns()
			return
		}
		importColumns, importColumnsErr = LoadImportColumns(path)
	})
	return importColumns, importColumnsErr
}

// LoadImportColumns reads a TOML file with a [columns] table. Fields left out
// keep their default labels.
//
//	[columns]
//	article = ["Budget line"]
//	amount  = ["Value", "Amount"]
func LoadImportColumns(path string) (ImportColumns, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ImportColumns{}, fmt.Errorf("read import columns file: %w", err)
	}
	return ParseImportColumns(data)
}

func ParseImportColumns(data []byte) (ImportColumns, error) {
	file := importColumnsFile{Columns: DefaultImportColumns()}
	if err := toml.Unmarshal(data, &file); err != nil {
		return ImportColumns{}, fmt.Errorf("parse import columns: %w", err)
	}
	c := file.Columns
	if len(c.Article) == 0 || len(c.Period) == 0 || len(c.Amount) == 0 {
		return ImportColumns{}, fmt.Errorf("import columns: article, period and amount need at least one label")
	}
	return c, nil
}
