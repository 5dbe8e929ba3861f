// seed-plans creates or updates the report plan catalog (esencial, premium).
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-plans
//
// Prices are CLP with no decimals. Pass -deactivate=premium to hide a plan from checkout.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/vocari/reports_backend/config"
	"github.com/vocari/reports_backend/models"
	"github.com/vocari/reports_backend/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm/clause"
)

var plans = []models.ReportPlan{
	{
		ID:          "esencial",
		Name:        "esencial",
		DisplayName: "Informe Esencial",
		Price:       decimal.NewFromInt(9990),
		Features:    datatypes.JSON(`["Perfil vocacional","Análisis detallado","Carreras recomendadas","Próximos pasos"]`),
	},
	{
		ID:          "premium",
		Name:        models.PremiumPlanName,
		DisplayName: "Informe Premium",
		Price:       decimal.NewFromInt(19990),
		Features:    datatypes.JSON(`["Todo lo del Informe Esencial","Resumen visual","Revisión por orientador"]`),
	},
}

func main() {
	deactivate := flag.String("deactivate", "", "Optional: comma separated plan names to mark inactive")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	if err := models.MigrateTable(db); err != nil {
		fmt.Fprintf(os.Stderr, "failed to migrate: %v\n", err)
		os.Exit(1)
	}

	inactive := map[string]bool{}
	for _, name := range utils.SplitAndTrim(*deactivate) {
		inactive[name] = true
	}

	for _, plan := range plans {
		active := !inactive[plan.Name]
		plan.IsActive = &active
		err := db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "display_name", "price", "is_active", "features", "updated_at"}),
		}).Create(&plan).Error
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to upsert plan %s: %v\n", plan.Name, err)
			os.Exit(1)
		}
		fmt.Printf("Upserted plan: id=%q price=%s active=%t\n", plan.ID, plan.AmountCLP(), active)
	}
}
