package reportgen

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vocari/reports_backend/models"
	"github.com/vocari/reports_backend/utils"
	"gorm.io/datatypes"
)

type completion struct {
	text string
	err  error
}

// fakeCompleter answers calls in order; the last answer repeats.
type fakeCompleter struct {
	mu       sync.Mutex
	answers  []completion
	requests []CompletionRequest
}

func (f *fakeCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if len(f.answers) == 0 {
		return "", errors.New("no answer configured")
	}
	i := len(f.requests) - 1
	if i >= len(f.answers) {
		i = len(f.answers) - 1
	}
	return f.answers[i].text, f.answers[i].err
}

// cancellingCompleter cancels the caller's context mid-call, like a publisher timeout.
type cancellingCompleter struct {
	cancel context.CancelFunc
}

func (c *cancellingCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	c.cancel()
	return "", ctx.Err()
}

type completedCall struct {
	content models.ReportContent
	visual  *models.VisualSummary
}

type fakeStore struct {
	mu          sync.Mutex
	reports     map[string]*models.PaidReport
	completed   []completedCall
	completeErr []error
	getErr      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{reports: map[string]*models.PaidReport{}}
}

func (f *fakeStore) add(id, planName string, status models.ReportStatus) *models.PaidReport {
	active := true
	r := &models.PaidReport{
		ID:     id,
		UserId: "u1",
		PlanId: planName + "-id",
		Plan:   &models.ReportPlan{ID: planName + "-id", Name: planName, DisplayName: "Informe " + planName, Price: decimal.NewFromInt(9990), IsActive: &active},
		Status: status,
		TestSnapshot: datatypes.JSON(`{"code":"SIA","certainty":"Alta","scores":{"R":5,"I":25,"A":20,"S":30,"E":10,"C":8},` +
			`"careers":["Psicología",{"nombre":"Medicina","area":"Salud","compatibilidad":87}]}`),
	}
	f.reports[id] = r
	return r
}

func (f *fakeStore) GetReportWithPlan(ctx context.Context, reportID string) (*models.PaidReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	r, ok := f.reports[reportID]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) CompleteGeneration(ctx context.Context, reportID string, content models.ReportContent, visual *models.VisualSummary) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if len(f.completeErr) > 0 {
		err := f.completeErr[0]
		f.completeErr = f.completeErr[1:]
		if err != nil {
			return false, err
		}
	}
	r, ok := f.reports[reportID]
	if !ok || r.Status != models.ReportStatusGenerating {
		return false, nil
	}
	r.Status = models.ReportStatusReview
	f.completed = append(f.completed, completedCall{content: content, visual: visual})
	return true, nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestGenerator(store *fakeStore, llm Completer) *Generator {
	g := NewGenerator(store, llm, quietLogger())
	g.VisualEnabled = func() bool { return true }
	return g
}

const fullReportJSON = `{"profile":"Perfil social","detailedAnalysis":"Análisis","recommendedCareers":"Carreras","nextSteps":"Pasos"}`

const visualJSON = `{"headline":"Guía empática","strengths":["Empatía","Curiosidad","Comunicación","Creatividad","Extra"],` +
	`"topCareers":["Psicología","Medicina","Trabajo Social","Educación"],"closing":"Tu camino empieza hoy."}`
