package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const PremiumPlanName = "premium"

// ReportPlan is a catalog entry maintained out of band (see cmd/seed-plans).
type ReportPlan struct {
	ID          string          `gorm:"primaryKey;size:64" json:"id"`
	Name        string          `gorm:"size:64;not null;uniqueIndex" json:"name"`
	DisplayName string          `gorm:"size:255;not null" json:"display_name"`
	Price       decimal.Decimal `gorm:"type:decimal(12,0);not null" json:"price"`
	IsActive    *bool           `gorm:"not null;default:true" json:"is_active"`
	Features    datatypes.JSON  `json:"features"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p ReportPlan) Active() bool {
	return p.IsActive != nil && *p.IsActive
}

func (p ReportPlan) IsPremium() bool {
	return strings.EqualFold(strings.TrimSpace(p.Name), PremiumPlanName)
}

// AmountCLP renders the price with no decimals, as the gateway expects.
func (p ReportPlan) AmountCLP() string {
	return p.Price.Round(0).StringFixed(0)
}
