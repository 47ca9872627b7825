// Package consumer applies transcription results arriving on the result
// stream. Engine workers in the decoupled deployment publish completion and
// failure messages instead of writing state themselves; this package is the
// only writer on their behalf.
package consumer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	api "github.com/scribehub/transcriber/api/v1alpha1"
	"github.com/scribehub/transcriber/internal/cache"
	"github.com/scribehub/transcriber/internal/pubsub"
	"github.com/scribehub/transcriber/internal/store"
	"github.com/scribehub/transcriber/internal/store/model"
)

// Reconciler turns one result message into durable, cache and pub/sub
// writes. Unknown job ids are dropped: the stream may replay messages for
// jobs already swept.
type Reconciler struct {
	store     store.Store
	jobs      *cache.JobManager
	publisher *pubsub.Publisher
	logger    *zap.SugaredLogger
}

func NewReconciler(s store.Store, jobs *cache.JobManager, publisher *pubsub.Publisher) *Reconciler {
	return &Reconciler{
		store:     s,
		jobs:      jobs,
		publisher: publisher,
		logger:    zap.S().Named("result_consumer"),
	}
}

// Apply is idempotent: a job already in a terminal state absorbs every
// later message, so replays and conflicting late outcomes are no-ops.
func (r *Reconciler) Apply(ctx context.Context, msg api.TranscriptionResultMessage) error {
	job, err := r.store.Job().GetByJobID(ctx, msg.JobID)
	if err != nil {
		if err == store.ErrRecordNotFound {
			r.logger.Warnw("dropping result for unknown job", "job_id", msg.JobID, "status", msg.Status)
			return nil
		}
		return fmt.Errorf("looking up job: %w", err)
	}

	if job.Terminal() {
		r.logger.Infow("dropping result for terminal job", "job_id", msg.JobID, "status", msg.Status)
		return nil
	}

	switch msg.Status {
	case model.JobStatusCompleted:
		return r.applyCompleted(ctx, job, msg)
	case model.JobStatusFailed:
		return r.applyFailed(ctx, job, msg)
	default:
		r.logger.Warnw("dropping result with unexpected status", "job_id", msg.JobID, "status", msg.Status)
		return nil
	}
}

func (r *Reconciler) applyCompleted(ctx context.Context, job *model.TranscriptionJob, msg api.TranscriptionResultMessage) error {
	transcriptID := job.TranscriptID
	if msg.TranscriptID != "" {
		id, err := uuid.Parse(msg.TranscriptID)
		if err != nil {
			r.logger.Warnw("dropping result with malformed transcript id", "job_id", msg.JobID, "transcript_id", msg.TranscriptID)
			return nil
		}
		if id != transcriptID {
			r.logger.Warnw("dropping result with mismatched transcript id", "job_id", msg.JobID, "transcript_id", msg.TranscriptID)
			return nil
		}
	}

	segments := make([]model.Segment, 0, len(msg.Segments))
	for _, s := range msg.Segments {
		segments = append(segments, model.Segment{
			Start:      s.Start,
			End:        s.End,
			Text:       s.Text,
			SpeakerTag: s.SpeakerTag,
			Confidence: s.Confidence,
			Estimated:  s.Estimated,
		})
	}

	duration := msg.Duration
	if duration == 0 && len(segments) > 0 {
		duration = segments[len(segments)-1].End
	}

	txCtx, err := r.store.NewTransactionContext(ctx)
	if err != nil {
		return fmt.Errorf("opening transaction: %w", err)
	}
	if err := r.store.Transcript().UpdateSegments(txCtx, transcriptID, segments, duration, msg.SpeakerRoles); err != nil {
		_, _ = store.Rollback(txCtx)
		return fmt.Errorf("persisting transcript: %w", err)
	}
	if err := r.store.Job().MarkCompleted(txCtx, msg.JobID, time.Now().UTC()); err != nil {
		_, _ = store.Rollback(txCtx)
		return fmt.Errorf("marking job completed: %w", err)
	}
	if _, err := store.Commit(txCtx); err != nil {
		return fmt.Errorf("committing result: %w", err)
	}

	payload := api.ResultPayload{
		TranscriptID:  transcriptID.String(),
		SegmentsCount: len(segments),
		Duration:      duration,
	}

	if err := r.jobs.SetResult(ctx, msg.JobID, payload); err != nil {
		r.logger.Warnw("failed to cache job result", "job_id", msg.JobID, "error", err)
	}
	if err := r.jobs.UpdateStatus(ctx, api.JobStatusEntry{
		JobID:    msg.JobID,
		Status:   model.JobStatusCompleted,
		Progress: 100,
		Result:   &payload,
	}); err != nil {
		r.logger.Warnw("failed to cache job status", "job_id", msg.JobID, "error", err)
	}
	if err := r.publisher.PublishCompleted(ctx, msg.JobID, payload); err != nil {
		r.logger.Warnw("failed to publish completion", "job_id", msg.JobID, "error", err)
	}

	r.logger.Infow("applied completed result", "job_id", msg.JobID, "segments", len(segments))
	return nil
}

func (r *Reconciler) applyFailed(ctx context.Context, job *model.TranscriptionJob, msg api.TranscriptionResultMessage) error {
	errMsg := msg.Error
	if errMsg == "" {
		errMsg = "transcription failed"
	}

	details := model.ErrorDetails{
		Message: errMsg,
		Engine:  job.Engine,
	}

	txCtx, err := r.store.NewTransactionContext(ctx)
	if err != nil {
		return fmt.Errorf("opening transaction: %w", err)
	}
	if err := r.store.Job().MarkFailed(txCtx, msg.JobID, details, time.Now().UTC()); err != nil {
		_, _ = store.Rollback(txCtx)
		return fmt.Errorf("marking job failed: %w", err)
	}
	if err := r.store.Transcript().UpdateStatus(txCtx, job.TranscriptID, model.TranscriptStatusFailed, &errMsg); err != nil {
		_, _ = store.Rollback(txCtx)
		return fmt.Errorf("marking transcript failed: %w", err)
	}
	if _, err := store.Commit(txCtx); err != nil {
		return fmt.Errorf("committing failure: %w", err)
	}

	if err := r.jobs.UpdateStatus(ctx, api.JobStatusEntry{
		JobID:  msg.JobID,
		Status: model.JobStatusFailed,
		Error:  errMsg,
	}); err != nil {
		r.logger.Warnw("failed to cache failure status", "job_id", msg.JobID, "error", err)
	}
	if err := r.publisher.PublishFailed(ctx, msg.JobID, errMsg); err != nil {
		r.logger.Warnw("failed to publish failure", "job_id", msg.JobID, "error", err)
	}

	r.logger.Infow("applied failed result", "job_id", msg.JobID, "error", errMsg)
	return nil
}
