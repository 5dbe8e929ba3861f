package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vocari/reports_backend/config"
	"github.com/vocari/reports_backend/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Use(config.NewStatusGuardPlugin("paid_reports")); err != nil {
		t.Fatalf("install status guard: %v", err)
	}
	if err := MigrateTable(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewStore(db)
}

func seedPlan(t *testing.T, s *Store, id, name string, active bool) ReportPlan {
	t.Helper()
	isActive := active
	plan := ReportPlan{
		ID:          id,
		Name:        name,
		DisplayName: "Informe " + name,
		Price:       decimal.NewFromInt(9990),
		IsActive:    &isActive,
		Features:    []byte(`["Perfil RIASEC"]`),
	}
	if err := s.DB().Create(&plan).Error; err != nil {
		t.Fatalf("seed plan: %v", err)
	}
	return plan
}

func seedReport(t *testing.T, s *Store, planID, token string) *PaidReport {
	t.Helper()
	tok := token
	r := &PaidReport{
		UserId:    "u1",
		PlanId:    planID,
		Amount:    decimal.NewFromInt(9990),
		FlowToken: &tok,
		FlowOrder: "vocari-1700000000000-" + token,
	}
	if err := s.CreatePaidReport(context.Background(), r); err != nil {
		t.Fatalf("create report: %v", err)
	}
	return r
}

func reportStatus(t *testing.T, s *Store, id string) ReportStatus {
	t.Helper()
	r, err := s.GetReportWithPlan(context.Background(), id)
	if err != nil {
		t.Fatalf("load report: %v", err)
	}
	return r.Status
}

func TestGetActivePlan(t *testing.T) {
	s := newTestStore(t)
	seedPlan(t, s, "esencial-id", "esencial", true)
	seedPlan(t, s, "old-id", "antiguo", false)
	ctx := context.Background()

	plan, err := s.GetActivePlan(ctx, "esencial-id")
	if err != nil {
		t.Fatalf("get plan: %v", err)
	}
	if plan.AmountCLP() != "9990" || plan.IsPremium() {
		t.Fatalf("unexpected plan %+v", plan)
	}
	if _, err := s.GetActivePlan(ctx, "old-id"); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("inactive plan should be not found, got %v", err)
	}
	if _, err := s.GetActivePlan(ctx, "missing"); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("missing plan should be not found, got %v", err)
	}
}

func TestGetLatestTestResult(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetLatestTestResult(ctx, "u1")
	if err != nil || got != nil {
		t.Fatalf("expected (nil, nil) without results, got (%v, %v)", got, err)
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, code := range []string{"RIA", "SEC"} {
		tr := TestResult{ID: fmt.Sprintf("tr-%d", i), UserId: "u1", Code: code, CreatedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := s.DB().Create(&tr).Error; err != nil {
			t.Fatalf("seed result: %v", err)
		}
	}
	got, err = s.GetLatestTestResult(ctx, "u1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got.Code != "SEC" {
		t.Fatalf("expected most recent result, got %s", got.Code)
	}
}

func TestCreatePaidReportForcesPendingAndUniqueOrder(t *testing.T) {
	s := newTestStore(t)
	seedPlan(t, s, "p1", "esencial", true)
	ctx := context.Background()

	r := &PaidReport{UserId: "u1", PlanId: "p1", Amount: decimal.NewFromInt(9990), Status: ReportStatusReview, FlowOrder: "vocari-1-abcdef"}
	if err := s.CreatePaidReport(ctx, r); err != nil {
		t.Fatalf("create: %v", err)
	}
	if r.ID == "" || r.Status != ReportStatusPendingPayment {
		t.Fatalf("expected generated id and pending status, got %+v", r)
	}

	dup := &PaidReport{UserId: "u2", PlanId: "p1", Amount: decimal.NewFromInt(9990), FlowOrder: "vocari-1-abcdef"}
	if err := s.CreatePaidReport(ctx, dup); err == nil {
		t.Fatalf("expected unique violation on flow_order")
	}
}

func TestPaidFlowTransitions(t *testing.T) {
	s := newTestStore(t)
	seedPlan(t, s, "p1", "esencial", true)
	ctx := context.Background()
	r := seedReport(t, s, "p1", "abc123")

	found, err := s.GetReportByFlowToken(ctx, "abc123")
	if err != nil || found.ID != r.ID {
		t.Fatalf("lookup by token: %v %v", found, err)
	}

	// generating is not reachable from pending_payment.
	if job, err := s.StartGeneration(ctx, r.ID, "cid"); err != nil || job != nil {
		t.Fatalf("start generation from pending must be a no-op, got job=%v err=%v", job, err)
	}

	applied, err := s.MarkPaid(ctx, r.ID, []byte(`{"status":2,"commerceOrder":"vocari-x"}`))
	if err != nil || !applied {
		t.Fatalf("mark paid: applied=%v err=%v", applied, err)
	}
	applied, err = s.MarkPaid(ctx, r.ID, []byte(`{"status":2}`))
	if err != nil || applied {
		t.Fatalf("second mark paid should not apply: applied=%v err=%v", applied, err)
	}

	job, err := s.StartGeneration(ctx, r.ID, "cid-1")
	if err != nil || job == nil {
		t.Fatalf("start generation: job=%v err=%v", job, err)
	}
	if job.ReportId != r.ID || job.PublishStatus != OutboxPublishStatusPending || job.Message().CorrelationId != "cid-1" {
		t.Fatalf("unexpected job %+v", job)
	}
	if again, err := s.StartGeneration(ctx, r.ID, "cid-2"); err != nil || again != nil {
		t.Fatalf("second start must not enqueue, got job=%v err=%v", again, err)
	}
	var jobs int64
	s.DB().Model(&GenerationJob{}).Where("report_id = ?", r.ID).Count(&jobs)
	if jobs != 1 {
		t.Fatalf("expected exactly one job, got %d", jobs)
	}

	// rejected must not be reachable once paid.
	if applied, err := s.MarkRejected(ctx, r.ID, NoteRejectedByGateway, nil); err != nil || applied {
		t.Fatalf("late rejection must not apply: applied=%v err=%v", applied, err)
	}
	if st := reportStatus(t, s, r.ID); st != ReportStatusGenerating {
		t.Fatalf("expected generating, got %s", st)
	}

	content := ReportContent{Profile: "perfil", DetailedAnalysis: "análisis", RecommendedCareers: "carreras", NextSteps: "pasos"}
	visual := &VisualSummary{Headline: "Explorador", Strengths: []string{"a", "b", "c"}, TopCareers: []string{"x"}, Closing: "¡Vamos!"}
	applied, err = s.CompleteGeneration(ctx, r.ID, content, visual)
	if err != nil || !applied {
		t.Fatalf("complete: applied=%v err=%v", applied, err)
	}

	done, err := s.GetReportWithPlan(ctx, r.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if done.Status != ReportStatusReview || done.Plan == nil || done.Plan.ID != "p1" {
		t.Fatalf("unexpected final report %+v", done)
	}
	var stored ReportContent
	if err := json.Unmarshal(done.ReportContent, &stored); err != nil || stored != content {
		t.Fatalf("stored content mismatch: %+v %v", stored, err)
	}
	if len(done.PaymentData) == 0 {
		t.Fatalf("payment payload should be stored")
	}
}

func TestMarkRejectedStoresNote(t *testing.T) {
	s := newTestStore(t)
	seedPlan(t, s, "p1", "esencial", true)
	ctx := context.Background()
	r := seedReport(t, s, "p1", "tok-void")

	applied, err := s.MarkRejected(ctx, r.ID, NoteVoidedByGateway, []byte(`{"status":4}`))
	if err != nil || !applied {
		t.Fatalf("mark rejected: applied=%v err=%v", applied, err)
	}
	got, _ := s.GetReportByFlowToken(ctx, "tok-void")
	if got.Status != ReportStatusRejected || got.ReviewerNotes == nil || *got.ReviewerNotes != NoteVoidedByGateway {
		t.Fatalf("unexpected rejected report %+v", got)
	}
	if applied, _ := s.MarkPaid(ctx, r.ID, nil); applied {
		t.Fatalf("rejected report must not become paid")
	}
}

func TestCompleteGenerationWithoutVisual(t *testing.T) {
	s := newTestStore(t)
	seedPlan(t, s, "p1", "esencial", true)
	ctx := context.Background()
	r := seedReport(t, s, "p1", "tok-plain")
	if _, err := s.MarkPaid(ctx, r.ID, nil); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if _, err := s.StartGeneration(ctx, r.ID, ""); err != nil {
		t.Fatalf("start: %v", err)
	}
	if applied, err := s.CompleteGeneration(ctx, r.ID, ManualReviewContent(), nil); err != nil || !applied {
		t.Fatalf("complete: applied=%v err=%v", applied, err)
	}
	got, _ := s.GetReportWithPlan(ctx, r.ID)
	if len(got.VisualContent) != 0 {
		t.Fatalf("visual content should be NULL, got %s", got.VisualContent)
	}
	var content ReportContent
	_ = json.Unmarshal(got.ReportContent, &content)
	if content.Error != ManualReviewMessage {
		t.Fatalf("expected manual review marker, got %+v", content)
	}
}

func TestListPendingPaymentsAndReviveJobs(t *testing.T) {
	s := newTestStore(t)
	seedPlan(t, s, "p1", "esencial", true)
	ctx := context.Background()
	old := seedReport(t, s, "p1", "old")
	seedReport(t, s, "p1", "fresh")
	past := time.Now().UTC().Add(-2 * time.Hour)
	if err := s.DB().Model(&PaidReport{}).Where("id = ?", old.ID).Update("created_at", past).Error; err != nil {
		t.Fatalf("age report: %v", err)
	}

	pending, err := s.ListPendingPayments(ctx, time.Now().UTC().Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != old.ID {
		t.Fatalf("expected only the stale report, got %+v", pending)
	}

	dead := GenerationJob{ID: "job-dead", ReportId: old.ID, PublishStatus: OutboxPublishStatusDead, PublishAttempts: 20}
	if err := s.DB().Create(&dead).Error; err != nil {
		t.Fatalf("seed job: %v", err)
	}
	n, err := s.ReviveDeadJobs(ctx)
	if err != nil || n != 1 {
		t.Fatalf("revive: n=%d err=%v", n, err)
	}
	var job GenerationJob
	if err := s.DB().First(&job, "id = ?", "job-dead").Error; err != nil {
		t.Fatalf("load job: %v", err)
	}
	if job.PublishStatus != OutboxPublishStatusFailed || job.PublishAttempts != 0 || job.NextAttemptAt == nil {
		t.Fatalf("unexpected revived job %+v", job)
	}
}

func TestCanTransition(t *testing.T) {
	if !CanTransition(ReportStatusPendingPayment, ReportStatusPaid) {
		t.Fatalf("pending_payment -> paid must be allowed")
	}
	if CanTransition(ReportStatusGenerating, ReportStatusPaid) {
		t.Fatalf("status must never regress")
	}
	if CanTransition(ReportStatusPaid, ReportStatusRejected) {
		t.Fatalf("gateway rejection after payment is not a valid transition")
	}
}
