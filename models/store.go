package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vocari/reports_backend/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Store is the persistence layer for plans, test results, paid reports and
// their generation jobs. Every status write goes through transition.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) GetActivePlan(ctx context.Context, planID string) (*ReportPlan, error) {
	var plan ReportPlan
	err := s.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", planID, true).
		Take(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// GetLatestTestResult returns (nil, nil) when the user has no result yet.
func (s *Store) GetLatestTestResult(ctx context.Context, userID string) (*TestResult, error) {
	var results []TestResult
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(1).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return &results[0], nil
}

// CreatePaidReport inserts a new report in pending_payment.
func (s *Store) CreatePaidReport(ctx context.Context, report *PaidReport) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	report.Status = ReportStatusPendingPayment
	return s.db.WithContext(ctx).Omit("Plan").Create(report).Error
}

func (s *Store) GetReportByFlowToken(ctx context.Context, token string) (*PaidReport, error) {
	var report PaidReport
	err := s.db.WithContext(ctx).
		Where("flow_token = ?", token).
		Order("created_at DESC").
		Take(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *Store) GetReportWithPlan(ctx context.Context, reportID string) (*PaidReport, error) {
	var report PaidReport
	err := s.db.WithContext(ctx).
		Preload("Plan").
		Where("id = ?", reportID).
		Take(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// transition is a compare-and-set on status. It reports false, without
// error, when the row is not in one of the from states.
func transition(tx *gorm.DB, reportID string, from []ReportStatus, to ReportStatus, fields map[string]interface{}) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("transition to %s: no source states", to)
	}
	for _, f := range from {
		if !CanTransition(f, to) {
			return false, fmt.Errorf("invalid report transition %s -> %s", f, to)
		}
	}
	updates := map[string]interface{}{"status": to}
	for k, v := range fields {
		updates[k] = v
	}
	res := tx.Model(&PaidReport{}).
		Where("id = ? AND status IN ?", reportID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkPaid moves pending_payment -> paid and stores the gateway payload verbatim.
func (s *Store) MarkPaid(ctx context.Context, reportID string, payment []byte) (bool, error) {
	return transition(s.db.WithContext(ctx), reportID,
		[]ReportStatus{ReportStatusPendingPayment}, ReportStatusPaid,
		map[string]interface{}{"payment_data": jsonOrNil(payment)})
}

// MarkRejected moves pending_payment -> rejected with a reviewer note.
func (s *Store) MarkRejected(ctx context.Context, reportID, note string, payment []byte) (bool, error) {
	return transition(s.db.WithContext(ctx), reportID,
		[]ReportStatus{ReportStatusPendingPayment}, ReportStatusRejected,
		map[string]interface{}{"reviewer_notes": note, "payment_data": jsonOrNil(payment)})
}

// StartGeneration moves paid -> generating and enqueues a GenerationJob in
// the same transaction. The job is nil when the report was not in paid.
func (s *Store) StartGeneration(ctx context.Context, reportID, correlationID string) (*GenerationJob, error) {
	var job *GenerationJob
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		applied, err := transition(tx, reportID, []ReportStatus{ReportStatusPaid}, ReportStatusGenerating, nil)
		if err != nil || !applied {
			return err
		}
		j := &GenerationJob{
			ID:            uuid.NewString(),
			ReportId:      reportID,
			PublishStatus: OutboxPublishStatusPending,
		}
		if correlationID != "" {
			j.CorrelationId = &correlationID
		}
		if err := tx.Create(j).Error; err != nil {
			return err
		}
		job = j
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// CompleteGeneration moves generating -> review with the generated artifacts.
// A nil visual stores NULL.
func (s *Store) CompleteGeneration(ctx context.Context, reportID string, content ReportContent, visual *VisualSummary) (bool, error) {
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return false, err
	}
	fields := map[string]interface{}{
		"report_content": datatypes.JSON(contentJSON),
		"visual_content": nil,
	}
	if visual != nil {
		visualJSON, err := json.Marshal(visual)
		if err != nil {
			return false, err
		}
		fields["visual_content"] = datatypes.JSON(visualJSON)
	}
	return transition(s.db.WithContext(ctx), reportID,
		[]ReportStatus{ReportStatusGenerating}, ReportStatusReview, fields)
}

// ListPendingPayments returns reports still waiting on the gateway that were
// created before olderThan, oldest first.
func (s *Store) ListPendingPayments(ctx context.Context, olderThan time.Time, limit int) ([]PaidReport, error) {
	var reports []PaidReport
	err := s.db.WithContext(ctx).
		Where("status = ? AND created_at <= ? AND flow_token IS NOT NULL", ReportStatusPendingPayment, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&reports).Error
	return reports, err
}

func (s *Store) ListReportsInStatus(ctx context.Context, status ReportStatus, limit int) ([]PaidReport, error) {
	var reports []PaidReport
	q := s.db.WithContext(ctx).
		Preload("Plan").
		Where("status = ?", status).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&reports).Error
	return reports, err
}

// ReviveDeadJobs puts DEAD generation jobs back in FAILED, due now.
func (s *Store) ReviveDeadJobs(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).
		Model(&GenerationJob{}).
		Where("publish_status = ?", OutboxPublishStatusDead).
		Updates(map[string]interface{}{
			"publish_status":     OutboxPublishStatusFailed,
			"publish_attempts":   0,
			"next_attempt_at":    &now,
			"locked_at":          nil,
			"locked_by":          nil,
			"last_publish_error": nil,
		})
	return res.RowsAffected, res.Error
}

// RequeueJob makes a single job due immediately, whatever its publish state.
func (s *Store) RequeueJob(ctx context.Context, jobID string) (bool, error) {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).
		Model(&GenerationJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"publish_status":     OutboxPublishStatusFailed,
			"next_attempt_at":    &now,
			"locked_at":          nil,
			"locked_by":          nil,
			"last_publish_error": nil,
		})
	return res.RowsAffected > 0, res.Error
}

func jsonOrNil(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return datatypes.JSON(raw)
}
