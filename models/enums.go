package models

import (
	"encoding/json"
	"errors"
)

type ScenarioType string

const (
	ScenarioTypeActual     ScenarioType = "actual"
	ScenarioTypeBudget     ScenarioType = "budget"
	ScenarioTypeForecast   ScenarioType = "forecast"
	ScenarioTypeAdjustment ScenarioType = "adjustment"
	ScenarioTypePlan       ScenarioType = "plan"
)

func (t ScenarioType) IsValid() bool {
	switch t {
	case ScenarioTypeActual, ScenarioTypeBudget, ScenarioTypeForecast, ScenarioTypeAdjustment, ScenarioTypePlan:
		return true
	}
	return false
}

// IsPlan reports whether facts of this scenario count toward the plan bucket.
func (t ScenarioType) IsPlan() bool {
	return t == ScenarioTypeBudget || t == ScenarioTypePlan
}

// IsFact reports whether facts of this scenario count toward the fact bucket.
func (t ScenarioType) IsFact() bool {
	return t == ScenarioTypeActual
}

func (t *ScenarioType) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("scenario type must be string")
	}
	if !ScenarioType(str).IsValid() {
		return errors.New("invalid scenario type")
	}
	*t = ScenarioType(str)
	return nil
}

type ArticleType string

const (
	ArticleTypeRevenue ArticleType = "revenue"
	ArticleTypeExpense ArticleType = "expense"
	ArticleTypeCapex   ArticleType = "capex"
	ArticleTypeOpex    ArticleType = "opex"
	ArticleTypeOther   ArticleType = "other"
)

func (t ArticleType) IsValid() bool {
	switch t {
	case ArticleTypeRevenue, ArticleTypeExpense, ArticleTypeCapex, ArticleTypeOpex, ArticleTypeOther:
		return true
	}
	return false
}

func (t *ArticleType) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("article type must be string")
	}
	if !ArticleType(str).IsValid() {
		return errors.New("invalid article type")
	}
	*t = ArticleType(str)
	return nil
}

type ImportStatus string

const (
	ImportStatusPending    ImportStatus = "pending"
	ImportStatusProcessing ImportStatus = "processing"
	ImportStatusCompleted  ImportStatus = "completed"
	ImportStatusFailed     ImportStatus = "failed"
)

func (s ImportStatus) IsFinal() bool {
	return s == ImportStatusCompleted || s == ImportStatusFailed
}

type ImportFileType string

const (
	ImportFileTypeCSV   ImportFileType = "csv"
	ImportFileTypeExcel ImportFileType = "excel"
)

type ReportType string

const (
	ReportTypePnL      ReportType = "pnl"
	ReportTypeBalance  ReportType = "balance"
	ReportTypeCashflow ReportType = "cashflow"
	ReportTypePlanFact ReportType = "plan_fact"
	ReportTypeCustom   ReportType = "custom"
)

func (t ReportType) IsValid() bool {
	switch t {
	case ReportTypePnL, ReportTypeBalance, ReportTypeCashflow, ReportTypePlanFact, ReportTypeCustom:
		return true
	}
	return false
}

// IsSpreadsheet reports whether generated files of this type are xlsx (pdf otherwise).
func (t ReportType) IsSpreadsheet() bool {
	return t == ReportTypePnL || t == ReportTypePlanFact || t == ReportTypeCustom
}

func (t *ReportType) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("report type must be string")
	}
	if !ReportType(str).IsValid() {
		return errors.New("invalid report type")
	}
	*t = ReportType(str)
	return nil
}

type ReportStatus string

const (
	ReportStatusPending    ReportStatus = "pending"
	ReportStatusGenerating ReportStatus = "generating"
	ReportStatusReady      ReportStatus = "ready"
	ReportStatusFailed     ReportStatus = "failed"
)

type FinancialLineSource string

const (
	FinancialLineSourceManual FinancialLineSource = "manual"
	FinancialLineSourceImport FinancialLineSource = "import"
)

type PeriodGranularity string

const (
	PeriodGranularityYear    PeriodGranularity = "year"
	PeriodGranularityQuarter PeriodGranularity = "quarter"
	PeriodGranularityMonth   PeriodGranularity = "month"
)
