package reports

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vocari/reports_backend/models"
	"github.com/vocari/reports_backend/utils"
	"github.com/xuri/excelize/v2"
)

const reviewSheet = "Revision"

var reviewHeaders = []string{
	"ReportId", "UserId", "Email", "Plan", "Amount", "Status", "FlowOrder", "NeedsManualReview", "ReviewerNotes", "UpdatedAt",
}

// ReviewRow is one line of the reviewer queue export.
type ReviewRow struct {
	ReportId          string
	UserId            string
	Email             string
	Plan              string
	Amount            string
	Status            string
	FlowOrder         string
	NeedsManualReview bool
	ReviewerNotes     string
	UpdatedAt         string
}

func (r ReviewRow) GetCellValues() []interface{} {
	manual := "NO"
	if r.NeedsManualReview {
		manual = "SI"
	}
	return []interface{}{
		r.ReportId, r.UserId, r.Email, r.Plan, r.Amount, r.Status, r.FlowOrder, manual, r.ReviewerNotes, r.UpdatedAt,
	}
}

func NewReviewRow(report models.PaidReport) ReviewRow {
	row := ReviewRow{
		ReportId:      report.ID,
		UserId:        report.UserId,
		Email:         utils.DereferencePtr(report.UserEmail, ""),
		Plan:          report.PlanId,
		Amount:        report.Amount.StringFixed(0),
		Status:        string(report.Status),
		FlowOrder:     report.FlowOrder,
		ReviewerNotes: utils.DereferencePtr(report.ReviewerNotes, ""),
		UpdatedAt:     report.UpdatedAt.UTC().Format("2006-01-02 15:04:05"),
	}
	if report.Plan != nil {
		row.Plan = report.Plan.DisplayName
	}
	var content models.ReportContent
	if len(report.ReportContent) > 0 && json.Unmarshal(report.ReportContent, &content) == nil {
		row.NeedsManualReview = content.Error != ""
	}
	return row
}

// ExportReviewQueue renders reports awaiting review as an xlsx workbook.
func ExportReviewQueue(reports []models.PaidReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", reviewSheet); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(reviewSheet, "A1", &reviewHeaders); err != nil {
		return nil, err
	}
	for i, report := range reports {
		values := NewReviewRow(report).GetCellValues()
		if err := f.SetSheetRow(reviewSheet, "A"+fmt.Sprint(i+2), &values); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
