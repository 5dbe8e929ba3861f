package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type ReportStatus string

const (
	ReportStatusPendingPayment ReportStatus = "pending_payment"
	ReportStatusPaid           ReportStatus = "paid"
	ReportStatusGenerating     ReportStatus = "generating"
	ReportStatusReview         ReportStatus = "review"
	ReportStatusApproved       ReportStatus = "approved"
	ReportStatusRejected       ReportStatus = "rejected"
	ReportStatusDelivered      ReportStatus = "delivered"
)

// reportTransitions is the lifecycle of a paid report. review onwards belongs
// to the human review workflow.
var reportTransitions = map[ReportStatus][]ReportStatus{
	ReportStatusPendingPayment: {ReportStatusPaid, ReportStatusRejected},
	ReportStatusPaid:           {ReportStatusGenerating},
	ReportStatusGenerating:     {ReportStatusReview},
	ReportStatusReview:         {ReportStatusApproved, ReportStatusRejected},
	ReportStatusApproved:       {ReportStatusDelivered},
}

func CanTransition(from, to ReportStatus) bool {
	for _, next := range reportTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

const (
	NoteRejectedByGateway = "Pago rechazado por Flow"
	NoteVoidedByGateway   = "Pago anulado en Flow"
	ManualReviewMessage   = "Error al generar el informe. Requiere revisión manual."
)

type PaidReport struct {
	ID            string          `gorm:"primaryKey;size:36" json:"id"`
	UserId        string          `gorm:"size:64;not null;index" json:"user_id"`
	UserEmail     *string         `gorm:"size:255" json:"user_email"`
	PlanId        string          `gorm:"size:64;not null;index" json:"plan_id"`
	Plan          *ReportPlan     `gorm:"foreignKey:PlanId" json:"plan,omitempty"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,0);not null" json:"amount"`
	Status        ReportStatus    `gorm:"size:32;not null;index" json:"status"`
	FlowToken     *string         `gorm:"size:255;index" json:"flow_token"`
	FlowOrder     string          `gorm:"size:64;not null;uniqueIndex" json:"flow_order"`
	TestSnapshot  datatypes.JSON  `json:"test_snapshot"`
	ReportContent datatypes.JSON  `json:"report_content"`
	VisualContent datatypes.JSON  `json:"visual_content"`
	PaymentData   datatypes.JSON  `json:"payment_data"`
	ReviewerNotes *string         `gorm:"type:text" json:"reviewer_notes"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// Snapshot decodes the embedded test snapshot; nil when none was captured.
func (r PaidReport) Snapshot() (*TestResultSnapshot, error) {
	if len(r.TestSnapshot) == 0 || string(r.TestSnapshot) == "null" {
		return nil, nil
	}
	var snap TestResultSnapshot
	if err := json.Unmarshal(r.TestSnapshot, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// ReportContent holds the four prose sections of a generated report.
// Error is set instead when generation had to be skipped.
type ReportContent struct {
	Profile            string `json:"profile"`
	DetailedAnalysis   string `json:"detailedAnalysis"`
	RecommendedCareers string `json:"recommendedCareers"`
	NextSteps          string `json:"nextSteps"`
	Error              string `json:"error,omitempty"`
}

// VisualSummary is the premium-only compact summary.
type VisualSummary struct {
	Headline   string   `json:"headline"`
	Strengths  []string `json:"strengths"`
	TopCareers []string `json:"topCareers"`
	Closing    string   `json:"closing"`
}

func ManualReviewContent() ReportContent {
	return ReportContent{Error: ManualReviewMessage}
}
