package models

import "time"

// Publish statuses for GenerationJob.PublishStatus.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// GenerationJob is the outbox row for one report-generation request. It is
// inserted in the same transaction that moves the report to generating.
type GenerationJob struct {
	ID               string     `gorm:"primaryKey;size:36" json:"id"`
	ReportId         string     `gorm:"size:36;not null;index" json:"report_id"`
	CorrelationId    *string    `gorm:"size:64" json:"correlation_id"`
	PublishStatus    string     `gorm:"size:20;not null;index:idx_generation_jobs_dispatch" json:"publish_status"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index:idx_generation_jobs_dispatch" json:"next_attempt_at"`
	LockedAt         *time.Time `json:"locked_at"`
	LockedBy         *string    `gorm:"size:64" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	PublishedAt      *time.Time `json:"published_at"`
	MessageId        *string    `gorm:"size:255" json:"message_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// GenerationJobMessage is the payload delivered to the generator.
type GenerationJobMessage struct {
	JobId         string `json:"jobId"`
	ReportId      string `json:"reportId"`
	CorrelationId string `json:"correlationId,omitempty"`
}

func (j GenerationJob) Message() GenerationJobMessage {
	msg := GenerationJobMessage{JobId: j.ID, ReportId: j.ReportId}
	if j.CorrelationId != nil {
		msg.CorrelationId = *j.CorrelationId
	}
	return msg
}
