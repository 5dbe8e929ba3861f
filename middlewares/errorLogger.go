package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/vocari/reports_backend/utils"
)

// ErrorLogger logs only requests that recorded errors on the gin context.
func ErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.WithFields(utils.LogFields(c.Request.Context(), "ErrorLogger")).
				WithFields(logrus.Fields{
					"path":   c.FullPath(),
					"status": c.Writer.Status(),
				}).Error(c.Errors.String())
		}
	}
}
