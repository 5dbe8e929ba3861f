package reportgen

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vocari/reports_backend/config"
	"github.com/vocari/reports_backend/utils"
)

type GenerateRequest struct {
	ReportId string `json:"reportId"`
}

// GenerateHandler serves POST /api/reports/generate.
func GenerateHandler(g *Generator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req GenerateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			status, body := utils.ErrorResponse(utils.ValidationError("Falta el reportId", err))
			c.JSON(status, body)
			return
		}

		_, err := g.Generate(c.Request.Context(), req.ReportId)
		if errors.Is(err, ErrNotGenerating) {
			c.JSON(http.StatusOK, gin.H{"ok": true, "reportId": req.ReportId, "skipped": true})
			return
		}
		if err != nil {
			status, body := utils.ErrorResponse(err)
			if status >= http.StatusInternalServerError {
				config.LogError(g.logger(), "reportgen", "GenerateHandler", "Generate", map[string]string{"report_id": req.ReportId}, err)
			}
			c.JSON(status, body)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "reportId": req.ReportId})
	}
}
