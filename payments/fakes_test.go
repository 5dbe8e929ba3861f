package payments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vocari/reports_backend/config"
	"github.com/vocari/reports_backend/flow"
	"github.com/vocari/reports_backend/models"
	"github.com/vocari/reports_backend/utils"
)

type fakeStore struct {
	mu          sync.Mutex
	plans       map[string]models.ReportPlan
	testResults map[string]*models.TestResult
	reports     map[string]*models.PaidReport
	jobs        []models.GenerationJob
	createErr   error
	statusLog   []models.ReportStatus
}

func newFakeStore() *fakeStore {
	active := true
	return &fakeStore{
		plans: map[string]models.ReportPlan{
			"esencial-id": {ID: "esencial-id", Name: "esencial", DisplayName: "Informe Esencial", Price: decimal.NewFromInt(9990), IsActive: &active},
		},
		testResults: map[string]*models.TestResult{},
		reports:     map[string]*models.PaidReport{},
	}
}

func (f *fakeStore) GetActivePlan(ctx context.Context, planID string) (*models.ReportPlan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.plans[planID]
	if !ok || !p.Active() {
		return nil, utils.ErrorRecordNotFound
	}
	return &p, nil
}

func (f *fakeStore) GetLatestTestResult(ctx context.Context, userID string) (*models.TestResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.testResults[userID], nil
}

func (f *fakeStore) CreatePaidReport(ctx context.Context, report *models.PaidReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	report.Status = models.ReportStatusPendingPayment
	cp := *report
	f.reports[cp.ID] = &cp
	return nil
}

func (f *fakeStore) GetReportByFlowToken(ctx context.Context, token string) (*models.PaidReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reports {
		if r.FlowToken != nil && *r.FlowToken == token {
			cp := *r
			return &cp, nil
		}
	}
	return nil, utils.ErrorRecordNotFound
}

func (f *fakeStore) transition(id string, from, to models.ReportStatus, apply func(r *models.PaidReport)) bool {
	r, ok := f.reports[id]
	if !ok || r.Status != from || !models.CanTransition(from, to) {
		return false
	}
	r.Status = to
	if apply != nil {
		apply(r)
	}
	f.statusLog = append(f.statusLog, to)
	return true
}

func (f *fakeStore) MarkPaid(ctx context.Context, reportID string, payment []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transition(reportID, models.ReportStatusPendingPayment, models.ReportStatusPaid, func(r *models.PaidReport) {
		r.PaymentData = payment
	}), nil
}

func (f *fakeStore) MarkRejected(ctx context.Context, reportID, note string, payment []byte) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transition(reportID, models.ReportStatusPendingPayment, models.ReportStatusRejected, func(r *models.PaidReport) {
		r.ReviewerNotes = &note
		r.PaymentData = payment
	}), nil
}

func (f *fakeStore) StartGeneration(ctx context.Context, reportID, correlationID string) (*models.GenerationJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.transition(reportID, models.ReportStatusPaid, models.ReportStatusGenerating, nil) {
		return nil, nil
	}
	job := models.GenerationJob{ID: uuid.NewString(), ReportId: reportID, PublishStatus: models.OutboxPublishStatusPending}
	f.jobs = append(f.jobs, job)
	return &job, nil
}

func (f *fakeStore) ListPendingPayments(ctx context.Context, olderThan time.Time, limit int) ([]models.PaidReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PaidReport
	for _, r := range f.reports {
		if r.Status == models.ReportStatusPendingPayment && !r.CreatedAt.After(olderThan) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStore) report(id string) models.PaidReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.reports[id]
}

func (f *fakeStore) addReport(token string, status models.ReportStatus) *models.PaidReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	tok := token
	r := &models.PaidReport{
		ID:        uuid.NewString(),
		UserId:    "u1",
		PlanId:    "esencial-id",
		Status:    status,
		FlowToken: &tok,
		FlowOrder: "vocari-1700000000000-" + token,
	}
	f.reports[r.ID] = r
	return r
}

type fakeGateway struct {
	mu          sync.Mutex
	orders      []flow.OrderRequest
	statusCalls []string
	createFn    func(req flow.OrderRequest) (*flow.OrderResponse, error)
	statusFn    func(token string) (*flow.PaymentStatus, error)
}

func (g *fakeGateway) CreateOrder(ctx context.Context, req flow.OrderRequest) (*flow.OrderResponse, error) {
	g.mu.Lock()
	g.orders = append(g.orders, req)
	g.mu.Unlock()
	if g.createFn != nil {
		return g.createFn(req)
	}
	return &flow.OrderResponse{URL: "https://sandbox.flow.cl/app/web/pay.php", Token: "tok-" + req.CommerceOrder}, nil
}

func (g *fakeGateway) GetStatus(ctx context.Context, token string) (*flow.PaymentStatus, error) {
	g.mu.Lock()
	g.statusCalls = append(g.statusCalls, token)
	g.mu.Unlock()
	if g.statusFn != nil {
		return g.statusFn(token)
	}
	return nil, errors.New("no status configured")
}

func statusReturning(code int) func(string) (*flow.PaymentStatus, error) {
	return func(token string) (*flow.PaymentStatus, error) {
		return &flow.PaymentStatus{
			Status:        code,
			CommerceOrder: "vocari-1700000000000-" + token,
			Raw:           []byte(fmt.Sprintf(`{"status":%d,"token":%q}`, code, token)),
		}, nil
	}
}

type fakeLocker struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (l *fakeLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	if l.err != nil {
		return nil, l.err
	}
	return func() {}, nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testSettings() config.FlowSettings {
	return config.FlowSettings{
		APIKey:            "KEY",
		SecretKey:         "secret",
		APIURL:            "https://sandbox.flow.cl/api",
		ConfirmationURL:   "https://vocari.cl/api/flow/webhook",
		ReturnURL:         "https://vocari.cl/pago/retorno",
		DefaultPayerEmail: "pagos@vocari.cl",
	}
}

func newTestService(store *fakeStore, gw *fakeGateway) *Service {
	svc := NewService(store, gw, testSettings(), nil, quietLogger())
	svc.Now = func() time.Time { return time.UnixMilli(1700000000000) }
	return svc
}
