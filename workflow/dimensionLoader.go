package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/mmdatafocus/prognosis_backend/models"
)

var ErrUnknownDimensionCode = errors.New("code not found")

type codeLoader = dataloader.Loader[string, int]

// codeReader batches code -> id lookups for one dimension table of one tenant.
type codeReader[T any] struct {
	tenantId string
	label    string
}

func (r codeReader[T]) resolve(ctx context.Context, codes []string) []*dataloader.Result[int] {
	ids, err := models.ResolveDimensionCodes[T](ctx, r.tenantId, codes)
	if err != nil {
		return handleError[int](len(codes), err)
	}
	results := make([]*dataloader.Result[int], 0, len(codes))
	for _, code := range codes {
		id, ok := ids[code]
		if !ok {
			results = append(results, &dataloader.Result[int]{Error: fmt.Errorf("%s %q: %w", r.label, code, ErrUnknownDimensionCode)})
			continue
		}
		results = append(results, &dataloader.Result[int]{Data: id})
	}
	return results
}

func newCodeLoader[T any](tenantId string, label string) *codeLoader {
	reader := codeReader[T]{tenantId: tenantId, label: label}
	return dataloader.NewBatchedLoader(reader.resolve,
		dataloader.WithWait[string, int](time.Millisecond),
		dataloader.WithBatchCapacity[string, int](500),
	)
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}

// dimensionLoaders live for one import run; results, including misses, are cached per code.
type dimensionLoaders struct {
	Articles    *codeLoader
	CostCenters *codeLoader
	Departments *codeLoader
	Projects    *codeLoader
	Accounts    *codeLoader
}

func newDimensionLoaders(tenantId string) *dimensionLoaders {
	return &dimensionLoaders{
		Articles:    newCodeLoader[models.BudgetArticle](tenantId, "article"),
		CostCenters: newCodeLoader[models.CostCenter](tenantId, "cost center"),
		Departments: newCodeLoader[models.Department](tenantId, "department"),
		Projects:    newCodeLoader[models.Project](tenantId, "project"),
		Accounts:    newCodeLoader[models.Account](tenantId, "account"),
	}
}

// prime resolves every distinct non-empty code of a column in batches before rows are processed.
func prime(ctx context.Context, loader *codeLoader, table *Table, column int) {
	if column < 0 {
		return
	}
	seen := map[string]bool{}
	codes := make([]string, 0)
	for _, row := range table.Rows {
		code := row.Cell(column)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
	}
	if len(codes) > 0 {
		loader.LoadMany(ctx, codes)()
	}
}

// lookupOptional returns nil for an empty cell, never a default.
func lookupOptional(ctx context.Context, loader *codeLoader, code string) (*int, error) {
	if code == "" {
		return nil, nil
	}
	id, err := loader.Load(ctx, code)()
	if err != nil {
		return nil, err
	}
	return &id, nil
}
