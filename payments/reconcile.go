package payments

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vocari/reports_backend/models"
	"github.com/vocari/reports_backend/utils"
)

type PendingReports interface {
	ListPendingPayments(ctx context.Context, olderThan time.Time, limit int) ([]models.PaidReport, error)
}

type ReconcileSummary struct {
	Checked  int
	Paid     int
	Rejected int
	Pending  int
	Failed   int
}

// Reconciler replays the webhook logic for reports whose notification never
// arrived, using the gateway status as the source of truth.
type Reconciler struct {
	Service *Service
	Pending PendingReports
}

func (r *Reconciler) Run(ctx context.Context, olderThan time.Duration, limit int) (ReconcileSummary, error) {
	var summary ReconcileSummary
	svc := r.Service
	if err := svc.checkConfigured(false); err != nil {
		return summary, err
	}
	logger := svc.logger()

	cutoff := svc.now().UTC().Add(-olderThan)
	reports, err := r.Pending.ListPendingPayments(ctx, cutoff, limit)
	if err != nil {
		return summary, err
	}

	for _, report := range reports {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		if report.FlowToken == nil || *report.FlowToken == "" {
			continue
		}
		summary.Checked++
		token := *report.FlowToken
		rctx := utils.SetReportIdInContext(utils.SetFlowTokenInContext(ctx, token), report.ID)

		release := svc.lockToken(rctx, token)
		status, err := svc.Gateway.GetStatus(rctx, token)
		if err != nil {
			release()
			summary.Failed++
			logger.WithFields(utils.LogFields(rctx, "Reconciler.Run")).Error("gateway status query failed: " + err.Error())
			continue
		}
		res, err := svc.ApplyGatewayStatus(rctx, token, status)
		release()
		if err != nil {
			summary.Failed++
			logger.WithFields(utils.LogFields(rctx, "Reconciler.Run")).Error("apply gateway status failed: " + err.Error())
			continue
		}
		switch res.Outcome {
		case OutcomePaid:
			summary.Paid++
		case OutcomeRejected:
			summary.Rejected++
		default:
			summary.Pending++
		}
	}

	logger.WithFields(logrus.Fields{
		"field":    "Reconciler.Run",
		"checked":  summary.Checked,
		"paid":     summary.Paid,
		"rejected": summary.Rejected,
		"pending":  summary.Pending,
		"failed":   summary.Failed,
	}).Info("pending payment sweep finished")
	return summary, nil
}
