package payments

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vocari/reports_backend/config"
	"github.com/vocari/reports_backend/flow"
	"github.com/vocari/reports_backend/models"
	"github.com/vocari/reports_backend/utils"
)

// ReportStore is the persistence the checkout and webhook flows need.
// *models.Store satisfies it.
type ReportStore interface {
	GetActivePlan(ctx context.Context, planID string) (*models.ReportPlan, error)
	GetLatestTestResult(ctx context.Context, userID string) (*models.TestResult, error)
	CreatePaidReport(ctx context.Context, report *models.PaidReport) error
	GetReportByFlowToken(ctx context.Context, token string) (*models.PaidReport, error)
	MarkPaid(ctx context.Context, reportID string, payment []byte) (bool, error)
	MarkRejected(ctx context.Context, reportID, note string, payment []byte) (bool, error)
	StartGeneration(ctx context.Context, reportID, correlationID string) (*models.GenerationJob, error)
}

// Gateway is the payment gateway. *flow.Client satisfies it.
type Gateway interface {
	CreateOrder(ctx context.Context, req flow.OrderRequest) (*flow.OrderResponse, error)
	GetStatus(ctx context.Context, token string) (*flow.PaymentStatus, error)
}

// Service implements checkout and payment notification handling.
// Store and Gateway are nil when their credentials are missing.
type Service struct {
	Store    ReportStore
	Gateway  Gateway
	Settings config.FlowSettings
	Locker   TokenLocker
	Logger   *logrus.Logger
	Now      func() time.Time
}

func NewService(store ReportStore, gateway Gateway, settings config.FlowSettings, locker TokenLocker, logger *logrus.Logger) *Service {
	return &Service{
		Store:    store,
		Gateway:  gateway,
		Settings: settings,
		Locker:   locker,
		Logger:   logger,
		Now:      time.Now,
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) logger() *logrus.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return config.GetLogger()
}

// checkConfigured fails before any side effect when credentials are missing.
func (s *Service) checkConfigured(needCallbacks bool) error {
	if s.Store == nil {
		return utils.ConfigurationError("Configuración del servidor incompleta", errMissingDatabase)
	}
	if s.Gateway == nil {
		return utils.ConfigurationError("Configuración del servidor incompleta", errMissingGateway)
	}
	if needCallbacks {
		if err := s.Settings.Validate(); err != nil {
			return utils.ConfigurationError("Configuración del servidor incompleta", err)
		}
	}
	return nil
}
