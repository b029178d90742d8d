package models

import (
	"github.com/mmdatafocus/prognosis_backend/config"
	"gorm.io/gorm"
)

func AllModels() []interface{} {
	return []interface{}{
		&Company{},
		&Period{}, &Scenario{},
		&Account{}, &BudgetArticle{}, &CostCenter{}, &Department{}, &Project{},
		&FinancialLine{},
		&ImportTask{},
		&ReportTemplate{}, &GeneratedReport{},
		&IdempotencyKey{},
	}
}

func MigrateTable() error {
	return MigrateTableOn(config.GetDB())
}

func MigrateTableOn(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
