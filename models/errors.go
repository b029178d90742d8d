package models

import "errors"

var (
	ErrValidation             = errors.New("validation failed")
	ErrInvalidPeriod          = errors.New("invalid period")
	ErrPeriodClosed           = errors.New("period is closed")
	ErrDuplicateFinancialLine = errors.New("financial line with the same dimensions already exists")
	ErrCrossTenantReference   = errors.New("referenced record belongs to another tenant or does not exist")
	ErrDuplicateCode          = errors.New("code already exists")
	ErrImportTaskNotFound     = errors.New("import task not found")
	ErrReportNotFound         = errors.New("report not found")
	ErrReportInProgress       = errors.New("an identical report is already pending or generating")
	ErrTenantInactive         = errors.New("company is inactive")
)
