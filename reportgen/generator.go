package reportgen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vocari/reports_backend/config"
	"github.com/vocari/reports_backend/models"
	"github.com/vocari/reports_backend/utils"
)

// ErrNotGenerating means the report is not waiting for content. Duplicate
// deliveries land here and are acknowledged without work.
var ErrNotGenerating = errors.New("report is not in generating status")

var errMissingLLM = errors.New("text generation client not configured")

// ReportStore is the persistence the generator needs. *models.Store satisfies it.
type ReportStore interface {
	GetReportWithPlan(ctx context.Context, reportID string) (*models.PaidReport, error)
	CompleteGeneration(ctx context.Context, reportID string, content models.ReportContent, visual *models.VisualSummary) (bool, error)
}

type Generator struct {
	Store  ReportStore
	LLM    Completer
	Logger *logrus.Logger
	// VisualEnabled gates the premium visual summary; nil means enabled.
	VisualEnabled func() bool
}

func NewGenerator(store ReportStore, llm Completer, logger *logrus.Logger) *Generator {
	return &Generator{
		Store:         store,
		LLM:           llm,
		Logger:        logger,
		VisualEnabled: config.VisualSummaryEnabled,
	}
}

const persistTimeout = 30 * time.Second

type Result struct {
	ReportId string
	// Degraded is set when the stored content is a fallback.
	Degraded bool
	Visual   bool
}

// Generate drafts the report content and moves the report to review. Once the
// report is loaded, generation failures are absorbed into a manual-review
// placeholder; only persistence failures reach the caller.
func (g *Generator) Generate(ctx context.Context, reportID string) (*Result, error) {
	reportID = strings.TrimSpace(reportID)
	if reportID == "" {
		return nil, utils.ValidationError("Falta el reportId", nil)
	}
	if g.Store == nil {
		return nil, utils.ConfigurationError("Configuración del servidor incompleta", errors.New("database not configured"))
	}
	ctx = utils.SetReportIdInContext(ctx, reportID)
	logger := g.logger()

	report, err := g.Store.GetReportWithPlan(ctx, reportID)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, utils.NotFoundError("Informe no encontrado", err)
	}
	if err != nil {
		return nil, utils.InternalError("Error al consultar el informe", err)
	}
	if report.Status != models.ReportStatusGenerating {
		logger.WithFields(utils.LogFields(ctx, "Generate")).
			WithField("status", report.Status).
			Info("report is not generating; skipping")
		return nil, fmt.Errorf("%w: %s", ErrNotGenerating, report.Status)
	}

	result := &Result{ReportId: reportID}
	content, visual, err := g.draft(ctx, report)
	if err != nil {
		config.LogError(logger, "reportgen", "Generate", "draft", map[string]string{"report_id": reportID}, err)
		content, visual = models.ManualReviewContent(), nil
		result.Degraded = true
	}

	// the caller may have given up while the completion ran; the row must still leave generating
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	applied, err := g.Store.CompleteGeneration(saveCtx, reportID, content, visual)
	if err != nil && !result.Degraded {
		// retry once with the placeholder so the row still reaches review
		config.LogError(logger, "reportgen", "Generate", "CompleteGeneration", map[string]string{"report_id": reportID}, err)
		result.Degraded = true
		visual = nil
		applied, err = g.Store.CompleteGeneration(saveCtx, reportID, models.ManualReviewContent(), nil)
	}
	if err != nil {
		return nil, utils.InternalError("Error al guardar el informe", err)
	}
	if !applied {
		return nil, fmt.Errorf("%w: completed concurrently", ErrNotGenerating)
	}
	result.Visual = visual != nil
	return result, nil
}

func (g *Generator) draft(ctx context.Context, report *models.PaidReport) (models.ReportContent, *models.VisualSummary, error) {
	if g.LLM == nil {
		return models.ReportContent{}, nil, errMissingLLM
	}
	snap, err := report.Snapshot()
	if err != nil {
		g.logger().WithFields(utils.LogFields(ctx, "draft")).Warn("unreadable test snapshot; generating without it: " + err.Error())
		snap = nil
	}

	text, err := g.LLM.Complete(ctx, buildReportPrompt(snap))
	if err != nil {
		return models.ReportContent{}, nil, err
	}
	content, degraded := parseReportContent(text)
	if degraded {
		g.logger().WithFields(utils.LogFields(ctx, "draft")).Warn("completion was not valid json; storing raw text")
	}

	var visual *models.VisualSummary
	if report.Plan != nil && report.Plan.IsPremium() && g.visualEnabled() {
		visual = g.visualSummary(ctx, snap)
	}
	return content, visual, nil
}

// visualSummary is optional: any failure yields nil.
func (g *Generator) visualSummary(ctx context.Context, snap *models.TestResultSnapshot) *models.VisualSummary {
	text, err := g.LLM.Complete(ctx, buildVisualPrompt(snap))
	if err != nil {
		g.logger().WithFields(utils.LogFields(ctx, "visualSummary")).Warn("visual summary generation failed: " + err.Error())
		return nil
	}
	v, err := parseVisualSummary(text)
	if err != nil {
		g.logger().WithFields(utils.LogFields(ctx, "visualSummary")).Warn("visual summary unparseable: " + err.Error())
		return nil
	}
	return v
}

func (g *Generator) visualEnabled() bool {
	if g.VisualEnabled == nil {
		return true
	}
	return g.VisualEnabled()
}

func (g *Generator) logger() *logrus.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return config.GetLogger()
}
