package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Job status values mirrored into the cache tier.
const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// ErrorDetails captures the diagnostic context of a failed attempt.
type ErrorDetails struct {
	Message  string `json:"message"`
	Stack    string `json:"stack,omitempty"`
	WorkerID string `json:"worker_id,omitempty"`
	Engine   string `json:"engine,omitempty"`
}

type TranscriptionJob struct {
	ID           uuid.UUID `gorm:"primaryKey;"`
	CreatedAt    time.Time `gorm:"not null;index"`
	UpdatedAt    *time.Time
	JobID        string                             `gorm:"type:VARCHAR(255);not null;uniqueIndex"`
	TranscriptID uuid.UUID                          `gorm:"not null;uniqueIndex"`
	Transcript   *Transcript                        `gorm:"foreignKey:TranscriptID;references:ID;constraint:OnDelete:CASCADE;"`
	Engine       string                             `gorm:"type:VARCHAR(20);not null"`
	EngineParams *JSONField[map[string]any]         `gorm:"type:jsonb"`
	WorkerID     *string                            `gorm:"type:VARCHAR(255)"`
	Attempts     int                                `gorm:"not null;default:0"`
	MaxRetries   int                                `gorm:"not null;default:3"`
	StartedAt    *time.Time
	CompletedAt  *time.Time
	ErrorDetails *JSONField[ErrorDetails] `gorm:"type:jsonb"`
}

type TranscriptionJobList []TranscriptionJob

func (j TranscriptionJob) String() string {
	val, _ := json.Marshal(j)
	return string(val)
}

// Retryable reports whether the queue may redeliver this job.
func (j TranscriptionJob) Retryable() bool {
	return j.Attempts < j.MaxRetries && j.CompletedAt == nil
}

// Terminal reports whether the job reached a final state.
func (j TranscriptionJob) Terminal() bool {
	return j.CompletedAt != nil
}

// Status derives the cache-tier status from the durable row and its transcript.
func (j TranscriptionJob) Status() string {
	if j.CompletedAt == nil {
		if j.StartedAt == nil {
			return JobStatusQueued
		}
		return JobStatusProcessing
	}
	if j.ErrorDetails != nil {
		return JobStatusFailed
	}
	return JobStatusCompleted
}
