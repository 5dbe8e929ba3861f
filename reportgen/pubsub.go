package reportgen

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/vocari/reports_backend/config"
	"github.com/vocari/reports_backend/models"
	"github.com/vocari/reports_backend/utils"
	"github.com/vocari/reports_backend/workflow"
	"gorm.io/gorm"
)

const pushHandlerName = "report-generation"

// PushEnvelope is the body Pub/Sub push subscriptions POST.
type PushEnvelope struct {
	Message struct {
		Data       []byte            `json:"data,omitempty"`
		ID         string            `json:"messageId"`
		Attributes map[string]string `json:"attributes,omitempty"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// PushHandler serves POST /pubsub/report-generation. 2xx acks the message,
// 5xx makes Pub/Sub redeliver it.
func PushHandler(g *Generator, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var env PushEnvelope
		logger := g.logger()

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "reportgen", "PushHandler", "io.ReadAll", nil, err)
			// Malformed request body: ack/drop to avoid infinite retries.
			c.Status(http.StatusNoContent)
			return
		}

		// byte slice unmarshalling handles base64 decoding.
		if err := json.Unmarshal(body, &env); err != nil {
			config.LogError(logger, "reportgen", "PushHandler", "Unmarshal body", string(body), err)
			c.Status(http.StatusNoContent)
			return
		}

		var m models.GenerationJobMessage
		if err := json.Unmarshal(env.Message.Data, &m); err != nil || m.ReportId == "" {
			if err == nil {
				err = errors.New("reportId required")
			}
			config.LogError(logger, "reportgen", "PushHandler", "Unmarshal job message", string(env.Message.Data), err)
			c.Status(http.StatusNoContent)
			return
		}

		// Job id is stable across redeliveries and republishes of the same job.
		messageID := m.JobId
		if messageID == "" {
			messageID = env.Message.ID
		}
		correlationID := m.CorrelationId
		if correlationID == "" {
			correlationID = env.Message.ID
		}
		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), correlationID)
		fields := logrus.Fields{
			"field":          "PushHandler",
			"report_id":      m.ReportId,
			"job_id":         m.JobId,
			"message_id":     env.Message.ID,
			"correlation_id": correlationID,
		}

		if db == nil {
			logger.WithFields(fields).Error("database not configured; asking pubsub to retry")
			c.Status(http.StatusInternalServerError)
			return
		}
		idem := db.WithContext(ctx)
		skip, err := workflow.BeginIdempotency(idem, pushHandlerName, messageID)
		if errors.Is(err, workflow.ErrIdempotencyInProgress) {
			c.Status(http.StatusTooManyRequests)
			return
		}
		if err != nil {
			logger.WithFields(fields).Error("begin idempotency: " + err.Error())
			c.Status(http.StatusInternalServerError)
			return
		}
		if skip {
			c.Status(http.StatusNoContent)
			return
		}

		_, err = g.Generate(ctx, m.ReportId)
		var appErr *utils.AppError
		switch {
		case err == nil, errors.Is(err, ErrNotGenerating):
		case errors.As(err, &appErr) && appErr.Kind == utils.KindNotFound:
			logger.WithFields(fields).Warn("report not found; dropping message")
		default:
			_ = workflow.MarkIdempotencyFailed(idem, pushHandlerName, messageID, err)
			logger.WithFields(fields).Error("report generation failed: " + err.Error())
			c.Status(http.StatusInternalServerError)
			return
		}

		if err := workflow.MarkIdempotencySucceeded(idem, pushHandlerName, messageID); err != nil {
			logger.WithFields(fields).Warn(fmt.Sprintf("mark idempotency succeeded: %v", err))
		}
		c.Status(http.StatusNoContent)
	}
}
