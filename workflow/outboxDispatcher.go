package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vocari/reports_backend/models"
	"github.com/vocari/reports_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OutboxDispatcher delivers GenerationJob rows written by the webhook.
type OutboxDispatcher struct {
	DB           *gorm.DB
	Publisher    JobPublisher
	Logger       *logrus.Logger
	DispatcherID string

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// NewOutboxDispatcher uses a long LockTimeout since the HTTP publisher waits
// for the whole generation.
func NewOutboxDispatcher(db *gorm.DB, publisher JobPublisher, logger *logrus.Logger) *OutboxDispatcher {
	return &OutboxDispatcher{
		DB:             db,
		Publisher:      publisher,
		Logger:         logger,
		DispatcherID:   uuid.NewString(),
		BatchSize:      20,
		PollInterval:   time.Second,
		LockTimeout:    5 * time.Minute,
		MaxAttempts:    10,
		InitialBackoff: 5 * time.Second,
		MaxBackoff:     10 * time.Minute,
	}
}

func (d *OutboxDispatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.DispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

// DispatchOnce claims one batch of due jobs and publishes them. It returns
// the number of jobs handed to the publisher.
func (d *OutboxDispatcher) DispatchOnce(ctx context.Context) int {
	now := time.Now().UTC()
	staleBefore := now.Add(-d.LockTimeout)
	db := d.DB
	if db == nil || d.Publisher == nil {
		return 0
	}

	var claimed []models.GenerationJob
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Eligible:
		// - PENDING / FAILED and ready to retry
		// - PROCESSING but lock is stale (dispatcher crashed mid-batch), reclaim after LockTimeout
		q := tx.
			Where(`
				(
					publish_status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
				)
				OR
				(
					publish_status = ? AND locked_at IS NOT NULL AND locked_at <= ?
				)
			`, []string{models.OutboxPublishStatusPending, models.OutboxPublishStatusFailed}, now, models.OutboxPublishStatusProcessing, staleBefore).
			Order("created_at ASC").
			Limit(d.BatchSize)
		if tx.Dialector.Name() == "mysql" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		for i := range claimed {
			// Poison jobs go terminal; reconcile-payments -revive-dead brings them back.
			if d.MaxAttempts > 0 && claimed[i].PublishAttempts >= d.MaxAttempts {
				msg := fmt.Sprintf("max publish attempts exceeded (%d)", d.MaxAttempts)
				claimed[i].PublishStatus = models.OutboxPublishStatusDead
				if err := tx.Model(&models.GenerationJob{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
					"publish_status":     models.OutboxPublishStatusDead,
					"last_publish_error": &msg,
					"next_attempt_at":    nil,
					"locked_at":          nil,
					"locked_by":          nil,
				}).Error; err != nil {
					return err
				}
				continue
			}

			claimed[i].PublishStatus = models.OutboxPublishStatusProcessing
			claimed[i].PublishAttempts++
			if err := tx.Model(&models.GenerationJob{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusProcessing,
				"locked_at":          &now,
				"locked_by":          &d.DispatcherID,
				"publish_attempts":   gorm.Expr("publish_attempts + 1"),
				"last_publish_error": nil,
				"next_attempt_at":    nil,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if d.Logger != nil {
			d.Logger.WithField("field", "OutboxDispatcher").Error("claim generation jobs: " + err.Error())
		}
		return 0
	}

	published := 0
	for _, job := range claimed {
		if job.PublishStatus == models.OutboxPublishStatusDead {
			continue
		}
		msgID, pubErr := d.Publisher.Publish(ctx, job.Message())
		if pubErr != nil {
			d.markPublishFailed(ctx, job, pubErr)
			continue
		}
		d.markPublishSent(ctx, job.ID, msgID)
		published++
	}
	return published
}

func (d *OutboxDispatcher) markPublishSent(ctx context.Context, jobID, messageID string) {
	now := time.Now().UTC()
	err := d.DB.WithContext(ctx).Model(&models.GenerationJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"publish_status":  models.OutboxPublishStatusSent,
			"published_at":    &now,
			"message_id":      &messageID,
			"locked_at":       nil,
			"locked_by":       nil,
			"next_attempt_at": nil,
		}).Error
	if err != nil && d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{
			"field":  "OutboxDispatcher",
			"job_id": jobID,
		}).Error("mark generation job sent: " + err.Error())
	}
}

func (d *OutboxDispatcher) markPublishFailed(ctx context.Context, job models.GenerationJob, err error) {
	db := d.DB.WithContext(ctx)
	msg := err.Error()
	attempt := job.PublishAttempts

	if d.MaxAttempts > 0 && attempt >= d.MaxAttempts {
		_ = db.Model(&models.GenerationJob{}).
			Where("id = ?", job.ID).
			Updates(map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusDead,
				"last_publish_error": &msg,
				"next_attempt_at":    nil,
				"locked_at":          nil,
				"locked_by":          nil,
			}).Error

		if d.Logger != nil {
			d.Logger.WithFields(logrus.Fields{
				"field":     "OutboxDispatcher",
				"report_id": job.ReportId,
				"job_id":    job.ID,
				"attempt":   attempt,
			}).Error("generation job moved to DEAD after max attempts: " + msg)
		}
		return
	}

	next := time.Now().UTC().Add(utils.Backoff(d.InitialBackoff, d.MaxBackoff, attempt))
	_ = db.Model(&models.GenerationJob{}).
		Where("id = ?", job.ID).
		Updates(map[string]interface{}{
			"publish_status":     models.OutboxPublishStatusFailed,
			"last_publish_error": &msg,
			"next_attempt_at":    &next,
			"locked_at":          nil,
			"locked_by":          nil,
		}).Error

	if d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{
			"field":           "OutboxDispatcher",
			"report_id":       job.ReportId,
			"job_id":          job.ID,
			"attempt":         attempt,
			"next_attempt_at": next.Format(time.RFC3339Nano),
		}).Error("generation job publish failed: " + msg)
	}
}
