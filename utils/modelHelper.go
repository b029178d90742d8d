package utils

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

/* DB fetching */

// fetch model from db, scoped by tenant_id
// (may return ErrorRecordNotFound)
func FetchModel[T any](db *gorm.DB, tenantId string, id int) (*T, error) {
	var result T
	err := db.Where("tenant_id = ?", tenantId).First(&result, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

// fetch model and hold a row lock until the surrounding transaction ends
func FetchModelForUpdate[T any](tx *gorm.DB, tenantId string, id int) (*T, error) {
	return FetchModel[T](tx.Clauses(clause.Locking{Strength: "UPDATE"}), tenantId, id)
}

// fetch model by its tenant-unique code
func FetchModelByCode[T any](db *gorm.DB, tenantId string, code string) (*T, error) {
	var result T
	err := db.Where("tenant_id = ? AND code = ?", tenantId, code).First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

// fetch all models of a tenant, ordered
func FetchAllModels[T any](db *gorm.DB, tenantId string, order string) ([]*T, error) {
	var results []*T
	q := db.Where("tenant_id = ?", tenantId)
	if order != "" {
		q = q.Order(order)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
