package utils

import "gorm.io/gorm"

// check if id exists for the tenant, return ErrorRecordNotFound
func ValidateResourceId[T any](db *gorm.DB, tenantId string, id interface{}) error {
	count, err := ResourceCountWhere[T](db, tenantId, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}
	return nil
}

// count records, using WHERE tenant_id = ? AND $condition
func ResourceCountWhere[T any](db *gorm.DB, tenantId string, condition string, value ...interface{}) (int64, error) {
	var model T
	var count int64
	err := db.Model(&model).
		Where("tenant_id = ?", tenantId).
		Where(condition, value...).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
