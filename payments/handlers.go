package payments

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vocari/reports_backend/config"
	"github.com/vocari/reports_backend/utils"
)

// CheckoutHandler serves POST /api/checkout.
func CheckoutHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			status, body := utils.ErrorResponse(utils.ValidationError("Solicitud inválida", err))
			c.JSON(status, body)
			return
		}

		resp, err := svc.Checkout(c.Request.Context(), req)
		if err != nil {
			respondError(c, svc, "CheckoutHandler", err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// WebhookHandler serves POST /api/flow/webhook. A 5xx asks the gateway to retry.
func WebhookHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.PostForm("token")

		if _, err := svc.HandleNotification(c.Request.Context(), token); err != nil {
			respondError(c, svc, "WebhookHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}

func respondError(c *gin.Context, svc *Service, funcName string, err error) {
	status, body := utils.ErrorResponse(err)
	if status >= http.StatusInternalServerError {
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		config.LogError(svc.logger(), "payments", funcName, c.FullPath(), map[string]string{"correlation_id": cid}, err)
	}
	c.JSON(status, body)
}
