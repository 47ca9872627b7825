package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scribehub/transcriber/internal/store/model"
)

type Job interface {
	Create(ctx context.Context, job model.TranscriptionJob) (*model.TranscriptionJob, error)
	GetByJobID(ctx context.Context, jobID string) (*model.TranscriptionJob, error)
	GetByTranscriptID(ctx context.Context, transcriptID uuid.UUID) (*model.TranscriptionJob, error)
	UpdateWorkerInfo(ctx context.Context, jobID string, workerID string, startedAt time.Time) error
	IncrementAttempts(ctx context.Context, jobID string) error
	MarkCompleted(ctx context.Context, jobID string, completedAt time.Time) error
	MarkFailed(ctx context.Context, jobID string, details model.ErrorDetails, completedAt time.Time) error
	ListRetryable(ctx context.Context) (model.TranscriptionJobList, error)
	DeleteCompletedBefore(ctx context.Context, olderThan time.Time) (int64, error)
	Delete(ctx context.Context, jobID string) error
}

type JobStore struct {
	db *gorm.DB
}

var _ Job = (*JobStore)(nil)

func NewJobStore(db *gorm.DB) Job {
	return &JobStore{db: db}
}

func (s *JobStore) Create(ctx context.Context, job model.TranscriptionJob) (*model.TranscriptionJob, error) {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}

	result := s.getDB(ctx).Create(&job)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("creating transcription job: %w", result.Error)
	}

	return &job, nil
}

func (s *JobStore) GetByJobID(ctx context.Context, jobID string) (*model.TranscriptionJob, error) {
	var job model.TranscriptionJob
	result := s.getDB(ctx).Preload("Transcript").First(&job, "job_id = ?", jobID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying transcription job: %w", result.Error)
	}

	return &job, nil
}

func (s *JobStore) GetByTranscriptID(ctx context.Context, transcriptID uuid.UUID) (*model.TranscriptionJob, error) {
	var job model.TranscriptionJob
	result := s.getDB(ctx).First(&job, "transcript_id = ?", transcriptID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying transcription job: %w", result.Error)
	}

	return &job, nil
}

func (s *JobStore) UpdateWorkerInfo(ctx context.Context, jobID string, workerID string, startedAt time.Time) error {
	result := s.getDB(ctx).Model(&model.TranscriptionJob{}).
		Where("job_id = ?", jobID).
		Updates(map[string]any{"worker_id": workerID, "started_at": startedAt})
	if result.Error != nil {
		return fmt.Errorf("updating worker info: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}

func (s *JobStore) IncrementAttempts(ctx context.Context, jobID string) error {
	result := s.getDB(ctx).Model(&model.TranscriptionJob{}).
		Where("job_id = ?", jobID).
		Update("attempts", gorm.Expr("attempts + 1"))
	if result.Error != nil {
		return fmt.Errorf("incrementing attempts: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}

	return nil
}

// MarkCompleted writes the terminal completed state. Terminal states absorb:
// once completed_at is set the row never changes again, so a replayed or
// late-arriving outcome is a no-op.
func (s *JobStore) MarkCompleted(ctx context.Context, jobID string, completedAt time.Time) error {
	result := s.getDB(ctx).Model(&model.TranscriptionJob{}).
		Where("job_id = ? AND completed_at IS NULL", jobID).
		Updates(map[string]any{"completed_at": completedAt, "error_details": nil})
	if result.Error != nil {
		return fmt.Errorf("marking job completed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return s.requireExists(ctx, jobID)
	}

	return nil
}

// MarkFailed writes the terminal failed state, with the same absorbing
// semantics as MarkCompleted.
func (s *JobStore) MarkFailed(ctx context.Context, jobID string, details model.ErrorDetails, completedAt time.Time) error {
	result := s.getDB(ctx).Model(&model.TranscriptionJob{}).
		Where("job_id = ? AND completed_at IS NULL", jobID).
		Updates(map[string]any{
			"completed_at":  completedAt,
			"error_details": model.MakeJSONField(details),
		})
	if result.Error != nil {
		return fmt.Errorf("marking job failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return s.requireExists(ctx, jobID)
	}

	return nil
}

// requireExists separates a missing row from an already terminal one after a
// guarded update matched nothing.
func (s *JobStore) requireExists(ctx context.Context, jobID string) error {
	var count int64
	result := s.getDB(ctx).Model(&model.TranscriptionJob{}).Where("job_id = ?", jobID).Count(&count)
	if result.Error != nil {
		return fmt.Errorf("querying transcription job: %w", result.Error)
	}
	if count == 0 {
		return ErrRecordNotFound
	}

	return nil
}

func (s *JobStore) ListRetryable(ctx context.Context) (model.TranscriptionJobList, error) {
	var jobs model.TranscriptionJobList
	result := s.getDB(ctx).
		Where("attempts < max_retries AND completed_at IS NULL").
		Order("created_at").
		Find(&jobs)
	if result.Error != nil {
		return nil, fmt.Errorf("listing retryable jobs: %w", result.Error)
	}

	return jobs, nil
}

// DeleteCompletedBefore is the retention sweep for old terminal jobs.
func (s *JobStore) DeleteCompletedBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	result := s.getDB(ctx).
		Where("completed_at IS NOT NULL AND completed_at < ?", olderThan).
		Delete(&model.TranscriptionJob{})
	if result.Error != nil {
		return 0, fmt.Errorf("deleting old jobs: %w", result.Error)
	}

	return result.RowsAffected, nil
}

func (s *JobStore) Delete(ctx context.Context, jobID string) error {
	result := s.getDB(ctx).Delete(&model.TranscriptionJob{}, "job_id = ?", jobID)
	if result.Error != nil {
		return fmt.Errorf("deleting transcription job: %w", result.Error)
	}

	return nil
}

func (s *JobStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
