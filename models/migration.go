package models

import (
	"gorm.io/gorm"
)

// AllModels lists every table this service owns or reads.
func AllModels() []interface{} {
	return []interface{}{
		&ReportPlan{}, &TestResult{}, &PaidReport{},
		&GenerationJob{}, &IdempotencyKey{},
	}
}

func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
