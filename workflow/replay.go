package workflow

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vocari/reports_backend/models"
)

// JobStore is the slice of models.Store the ops endpoints use.
type JobStore interface {
	RequeueJob(ctx context.Context, jobID string) (bool, error)
	ReviveDeadJobs(ctx context.Context) (int64, error)
}

type jobReplayRequest struct {
	JobId   string `json:"job_id"`
	AllDead bool   `json:"all_dead"`
}

// JobReplayHandler serves POST /internal/ops/generation-jobs/replay. It makes
// one job, or every DEAD job, due for the dispatcher again.
func JobReplayHandler(store JobStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req jobReplayRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid request"})
			return
		}
		if store == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "db is nil"})
			return
		}
		ctx := c.Request.Context()
		now := time.Now().UTC()

		if req.AllDead {
			n, err := store.ReviveDeadJobs(ctx)
			if err != nil {
				_ = c.Error(err)
				c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "could not revive jobs"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"ok": true, "revived": n, "next_attempt_at": now.Format(time.RFC3339Nano)})
			return
		}

		if req.JobId == "" {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "job_id or all_dead is required"})
			return
		}
		found, err := store.RequeueJob(ctx, req.JobId)
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "could not requeue job"})
			return
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "job not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"ok":              true,
			"job_id":          req.JobId,
			"publish_status":  models.OutboxPublishStatusFailed,
			"next_attempt_at": now.Format(time.RFC3339Nano),
		})
	}
}
