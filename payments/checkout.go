package payments

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/vocari/reports_backend/config"
	"github.com/vocari/reports_backend/flow"
	"github.com/vocari/reports_backend/models"
	"github.com/vocari/reports_backend/utils"
	"gorm.io/datatypes"
)

type CheckoutRequest struct {
	PlanId    string `json:"planId" validate:"required"`
	UserId    string `json:"userId" validate:"required"`
	UserEmail string `json:"userEmail" validate:"omitempty,email"`
}

type CheckoutResponse struct {
	OK            bool   `json:"ok"`
	URL           string `json:"url"`
	Token         string `json:"token"`
	CommerceOrder string `json:"commerceOrder"`
}

// Checkout creates a gateway order for the plan and records a pending_payment report.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	logger := s.logger()
	if err := s.checkConfigured(true); err != nil {
		return nil, err
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	ctx = utils.SetUserIdInContext(ctx, req.UserId)

	plan, err := s.Store.GetActivePlan(ctx, req.PlanId)
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return nil, utils.NotFoundError("Plan no encontrado", err)
	}
	if err != nil {
		return nil, utils.InternalError("Error al consultar el plan", err)
	}

	snapshot, err := s.loadSnapshot(ctx, req.UserId)
	if err != nil {
		return nil, utils.InternalError("Error al consultar el resultado del test", err)
	}

	commerceOrder := NewCommerceOrder(s.now())
	payerEmail := req.UserEmail
	if payerEmail == "" {
		payerEmail = s.Settings.DefaultPayerEmail
	}

	order, err := s.Gateway.CreateOrder(ctx, flow.OrderRequest{
		CommerceOrder:   commerceOrder,
		Subject:         "Vocari - " + plan.DisplayName,
		Amount:          plan.AmountCLP(),
		Email:           payerEmail,
		URLConfirmation: s.Settings.ConfirmationURL,
		URLReturn:       s.Settings.ReturnURL,
	})
	if err != nil {
		return nil, utils.UpstreamError("No se pudo crear la orden de pago", err)
	}

	token := order.Token
	report := &models.PaidReport{
		UserId:       req.UserId,
		PlanId:       plan.ID,
		Amount:       plan.Price,
		FlowToken:    &token,
		FlowOrder:    commerceOrder,
		TestSnapshot: snapshot,
	}
	if req.UserEmail != "" {
		report.UserEmail = &req.UserEmail
	}
	if err := s.Store.CreatePaidReport(ctx, report); err != nil {
		// The gateway order already exists; the payer still gets redirected and
		// the reconcile job reports the orphan.
		config.LogError(logger, "payments", "Checkout", "CreatePaidReport", map[string]string{
			"commerce_order": commerceOrder,
			"flow_token":     token,
			"user_id":        req.UserId,
		}, err)
	}

	return &CheckoutResponse{
		OK:            true,
		URL:           order.CheckoutURL(),
		Token:         token,
		CommerceOrder: commerceOrder,
	}, nil
}

// loadSnapshot returns nil when the user has no test result.
func (s *Service) loadSnapshot(ctx context.Context, userID string) (datatypes.JSON, error) {
	tr, err := s.Store.GetLatestTestResult(ctx, userID)
	if err != nil {
		return nil, err
	}
	if tr == nil {
		return nil, nil
	}
	data, err := json.Marshal(models.NewTestResultSnapshot(*tr))
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}
