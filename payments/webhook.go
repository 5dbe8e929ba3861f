package payments

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vocari/reports_backend/config"
	"github.com/vocari/reports_backend/flow"
	"github.com/vocari/reports_backend/models"
	"github.com/vocari/reports_backend/utils"
)

// Notification outcomes.
const (
	OutcomePaid         = "paid"
	OutcomeRejected     = "rejected"
	OutcomeIgnored      = "ignored"
	OutcomeUnknownToken = "unknown_token"
)

// NotificationResult describes what a gateway status did to the local report.
type NotificationResult struct {
	Outcome       string
	GatewayStatus int
	ReportId      string
	JobId         string
	// Applied is false when the report was already past the target state.
	Applied bool
}

// HandleNotification re-queries the gateway for token and applies the
// authoritative status. The pushed body is never trusted.
func (s *Service) HandleNotification(ctx context.Context, token string) (*NotificationResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, utils.ValidationError("Falta el token", nil)
	}
	if err := s.checkConfigured(false); err != nil {
		return nil, err
	}
	ctx = utils.SetFlowTokenInContext(ctx, token)

	release := s.lockToken(ctx, token)
	defer release()

	status, err := s.Gateway.GetStatus(ctx, token)
	if err != nil {
		return nil, utils.UpstreamError("No se pudo consultar el estado del pago", err)
	}
	return s.ApplyGatewayStatus(ctx, token, status)
}

// ApplyGatewayStatus moves the report behind token according to status.
// Unknown tokens are logged and reported as OutcomeUnknownToken without error.
func (s *Service) ApplyGatewayStatus(ctx context.Context, token string, status *flow.PaymentStatus) (*NotificationResult, error) {
	logger := s.logger()
	result := &NotificationResult{Outcome: OutcomeIgnored, GatewayStatus: status.Status}

	var note string
	switch status.Status {
	case flow.StatusPaid:
	case flow.StatusRejected:
		note = models.NoteRejectedByGateway
	case flow.StatusVoided:
		note = models.NoteVoidedByGateway
	default:
		logger.WithFields(utils.LogFields(ctx, "ApplyGatewayStatus")).
			WithField("gateway_status", status.Status).
			Info("gateway status is not actionable")
		return result, nil
	}

	report, err := s.Store.GetReportByFlowToken(ctx, token)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		config.LogError(logger, "payments", "ApplyGatewayStatus", "GetReportByFlowToken", map[string]interface{}{
			"flow_token":     token,
			"commerce_order": status.CommerceOrder,
			"gateway_status": status.Status,
		}, err)
		result.Outcome = OutcomeUnknownToken
		return result, nil
	}
	if err != nil {
		return nil, utils.InternalError("Error al consultar el informe", err)
	}
	result.ReportId = report.ID
	ctx = utils.SetReportIdInContext(ctx, report.ID)

	if status.Status != flow.StatusPaid {
		result.Outcome = OutcomeRejected
		applied, err := s.Store.MarkRejected(ctx, report.ID, note, status.Raw)
		if err != nil {
			return nil, utils.InternalError("Error al actualizar el informe", err)
		}
		result.Applied = applied
		if !applied {
			s.logSkipped(ctx, report, models.ReportStatusRejected)
		}
		return result, nil
	}

	result.Outcome = OutcomePaid
	applied, err := s.Store.MarkPaid(ctx, report.ID, status.Raw)
	if err != nil {
		return nil, utils.InternalError("Error al actualizar el informe", err)
	}
	result.Applied = applied

	// Runs even when MarkPaid did not apply: a report left in paid by an
	// earlier crash still gets its generation job. StartGeneration is a
	// no-op once the report is generating.
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	job, err := s.Store.StartGeneration(ctx, report.ID, cid)
	if err != nil {
		return nil, utils.InternalError("Error al encolar la generación del informe", err)
	}
	if job != nil {
		result.JobId = job.ID
	} else if !applied {
		s.logSkipped(ctx, report, models.ReportStatusGenerating)
	}
	return result, nil
}

func (s *Service) logSkipped(ctx context.Context, report *models.PaidReport, target models.ReportStatus) {
	s.logger().WithFields(utils.LogFields(ctx, "ApplyGatewayStatus")).WithFields(logrus.Fields{
		"status_seen": report.Status,
		"target":      target,
	}).Info("duplicate or late notification; report already past target state")
}
