package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	api "github.com/scribehub/transcriber/api/v1alpha1"
	"github.com/scribehub/transcriber/internal/cache"
	"github.com/scribehub/transcriber/internal/engine"
	"github.com/scribehub/transcriber/internal/pubsub"
	"github.com/scribehub/transcriber/internal/storage"
	"github.com/scribehub/transcriber/internal/store"
	"github.com/scribehub/transcriber/internal/store/model"
	"github.com/scribehub/transcriber/internal/worker"
	"github.com/scribehub/transcriber/pkg/log"
	"github.com/scribehub/transcriber/pkg/metrics"
)

// JobInserter enqueues jobs onto the durable queue.
type JobInserter interface {
	InsertJob(ctx context.Context, args worker.TranscribeArgs) (int64, error)
}

type TranscriptionService struct {
	store      store.Store
	jobs       *cache.JobManager
	subscriber *pubsub.Subscriber
	objects    storage.ObjectStore
	queue      JobInserter
	logger     *log.StructuredLogger

	maxUploadBytes  int64
	defaultLanguage string
	maxRetries      int
}

func NewTranscriptionService(
	s store.Store,
	jobs *cache.JobManager,
	subscriber *pubsub.Subscriber,
	objects storage.ObjectStore,
	queue JobInserter,
	maxUploadBytes int64,
	defaultLanguage string,
	maxRetries int,
) *TranscriptionService {
	if maxRetries <= 0 {
		maxRetries = worker.MaxJobRetries
	}
	return &TranscriptionService{
		store:           s,
		jobs:            jobs,
		subscriber:      subscriber,
		objects:         objects,
		queue:           queue,
		logger:          log.NewDebugLogger("transcription_service"),
		maxUploadBytes:  maxUploadBytes,
		defaultLanguage: defaultLanguage,
		maxRetries:      maxRetries,
	}
}

// EnqueueRequest is one transcription submission.
type EnqueueRequest struct {
	Filename  string
	Content   []byte
	Engine    string
	Language  string
	ContextID *uuid.UUID
	Params    map[string]any
}

type EnqueueResult struct {
	JobID        string
	TranscriptID uuid.UUID
}

// Enqueue validates the submission, stages the audio in the object store,
// records the durable rows and inserts the queue job. Validation happens
// before any I/O so a bad request costs nothing.
func (s *TranscriptionService) Enqueue(ctx context.Context, req EnqueueRequest) (*EnqueueResult, error) {
	tracer := s.logger.WithContext(ctx).Operation("enqueue_transcription").
		WithString("engine", req.Engine).
		WithString("filename", req.Filename).
		WithInt("size_bytes", len(req.Content)).
		Build()

	engineName, err := engine.Parse(req.Engine)
	if err != nil {
		return nil, NewErrInvalidEngine(req.Engine)
	}
	if req.Filename == "" {
		return nil, NewErrMissingFilename()
	}
	if len(req.Content) == 0 {
		return nil, NewErrEmptyUpload()
	}
	if s.maxUploadBytes > 0 && int64(len(req.Content)) > s.maxUploadBytes {
		return nil, NewErrUploadTooLarge(int64(len(req.Content)), s.maxUploadBytes)
	}

	language := req.Language
	if language == "" {
		language = s.defaultLanguage
	}

	if req.ContextID != nil {
		if _, err := s.store.Context().Get(ctx, *req.ContextID); err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return nil, NewErrContextNotFound(*req.ContextID)
			}
			return nil, err
		}
	}

	audioKey, err := s.objects.Save(ctx, req.Content, req.Filename, "uploads")
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	jobID := uuid.NewString()
	transcriptID := uuid.New()

	txCtx, err := s.store.NewTransactionContext(ctx)
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	if _, err := s.store.Transcript().Create(txCtx, model.Transcript{
		ID:       transcriptID,
		Filename: req.Filename,
		AudioKey: audioKey,
		Language: language,
	}); err != nil {
		_, _ = store.Rollback(txCtx)
		tracer.Error(err).Log()
		return nil, err
	}

	jobRow := model.TranscriptionJob{
		JobID:        jobID,
		TranscriptID: transcriptID,
		Engine:       string(engineName),
		MaxRetries:   s.maxRetries,
	}
	if len(req.Params) > 0 {
		jobRow.EngineParams = model.MakeJSONField(req.Params)
	}
	if _, err := s.store.Job().Create(txCtx, jobRow); err != nil {
		_, _ = store.Rollback(txCtx)
		tracer.Error(err).Log()
		return nil, err
	}

	if _, err := store.Commit(txCtx); err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	// cache seeding is best effort, a cold entry falls back to the store
	if err := s.jobs.CreateJob(ctx, jobID); err != nil {
		zap.S().Named("service").Warnw("failed to seed job cache", "job_id", jobID, "error", err)
	}

	if _, err := s.queue.InsertJob(ctx, worker.TranscribeArgs{
		JobID:        jobID,
		TranscriptID: transcriptID,
		Engine:       string(engineName),
		AudioKey:     audioKey,
		Filename:     req.Filename,
		Language:     language,
		ContextID:    req.ContextID,
		Params:       req.Params,
	}); err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	metrics.IncreaseJobsEnqueuedMetric(string(engineName))
	tracer.Success().WithString("job_id", jobID).WithString("transcript_id", transcriptID.String()).Log()

	return &EnqueueResult{JobID: jobID, TranscriptID: transcriptID}, nil
}

// GetStatus reads the cache tier first and falls back to the durable store.
// The fallback answer is written back so subsequent polls stay fast.
func (s *TranscriptionService) GetStatus(ctx context.Context, jobID string) (*api.JobStatusEntry, error) {
	entry, err := s.jobs.GetStatus(ctx, jobID)
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, cache.ErrNotFound) {
		zap.S().Named("service").Warnw("cache status read failed", "job_id", jobID, "error", err)
	}

	job, err := s.store.Job().GetByJobID(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrJobNotFound(jobID)
		}
		return nil, err
	}

	entry = statusFromJob(job)
	if err := s.jobs.UpdateStatus(ctx, *entry); err != nil {
		zap.S().Named("service").Warnw("failed to backfill status cache", "job_id", jobID, "error", err)
	}

	return entry, nil
}

// TranscriptResult is the full completed transcript.
type TranscriptResult struct {
	TranscriptID uuid.UUID
	Segments     []model.Segment
	Duration     float64
	Language     string
	SpeakerRoles map[string]string
}

// GetResult returns the transcript once the job completed. A job still in
// flight yields ErrStillProcessing, a failed one ErrJobFailed.
func (s *TranscriptionService) GetResult(ctx context.Context, jobID string) (*TranscriptResult, error) {
	tracer := s.logger.WithContext(ctx).Operation("get_result").WithString("job_id", jobID).Build()

	job, err := s.store.Job().GetByJobID(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrJobNotFound(jobID)
		}
		tracer.Error(err).Log()
		return nil, err
	}

	transcript := job.Transcript
	if transcript == nil {
		t, err := s.store.Transcript().Get(ctx, job.TranscriptID)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return nil, NewErrTranscriptNotFound(job.TranscriptID)
			}
			tracer.Error(err).Log()
			return nil, err
		}
		transcript = t
	}

	switch transcript.Status {
	case model.TranscriptStatusCompleted:
		result := &TranscriptResult{
			TranscriptID: transcript.ID,
			Duration:     transcript.Duration,
			Language:     transcript.Language,
		}
		if transcript.Segments != nil {
			result.Segments = transcript.Segments.Data
		}
		if transcript.SpeakerRoles != nil {
			result.SpeakerRoles = transcript.SpeakerRoles.Data
		}
		tracer.Success().WithInt("segments", len(result.Segments)).Log()
		return result, nil
	case model.TranscriptStatusFailed:
		reason := "transcription failed"
		if transcript.ErrorMessage != nil {
			reason = *transcript.ErrorMessage
		}
		return nil, NewErrJobFailed(jobID, reason)
	default:
		return nil, NewErrStillProcessing(jobID)
	}
}

// Subscribe streams live status events for a job. If the job already reached
// a terminal state the returned channel carries one synthesized terminal
// event and closes: late subscribers never hang on a silent channel.
func (s *TranscriptionService) Subscribe(ctx context.Context, jobID string) (<-chan api.StatusEvent, error) {
	entry, err := s.GetStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if entry.Status == model.JobStatusCompleted || entry.Status == model.JobStatusFailed {
		events := make(chan api.StatusEvent, 1)
		events <- api.StatusEvent{
			JobID:    jobID,
			Status:   entry.Status,
			Progress: entry.Progress,
			Result:   entry.Result,
			Error:    entry.Error,
		}
		close(events)
		return events, nil
	}

	return s.subscriber.Subscribe(ctx, jobID)
}

func statusFromJob(job *model.TranscriptionJob) *api.JobStatusEntry {
	entry := &api.JobStatusEntry{
		JobID:  job.JobID,
		Status: job.Status(),
	}

	switch entry.Status {
	case model.JobStatusCompleted:
		entry.Progress = 100
		if job.Transcript != nil {
			segments := 0
			if job.Transcript.Segments != nil {
				segments = len(job.Transcript.Segments.Data)
			}
			entry.Result = &api.ResultPayload{
				TranscriptID:  job.TranscriptID.String(),
				SegmentsCount: segments,
				Duration:      job.Transcript.Duration,
			}
		}
	case model.JobStatusFailed:
		if job.ErrorDetails != nil {
			entry.Error = job.ErrorDetails.Data.Message
		}
	}

	return entry
}
