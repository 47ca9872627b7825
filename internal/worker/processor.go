package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	api "github.com/scribehub/transcriber/api/v1alpha1"
	"github.com/scribehub/transcriber/internal/cache"
	"github.com/scribehub/transcriber/internal/engine"
	"github.com/scribehub/transcriber/internal/events"
	"github.com/scribehub/transcriber/internal/pubsub"
	"github.com/scribehub/transcriber/internal/storage"
	"github.com/scribehub/transcriber/internal/store"
	"github.com/scribehub/transcriber/internal/store/model"
	"github.com/scribehub/transcriber/pkg/metrics"
)

// progress milestones reported over the cache and pub/sub tiers
const (
	progressQueued      = 0
	progressDownloading = 10
	progressTranscribe  = 20
	progressPersisting  = 80
	progressDone        = 100
)

// Transcriber is the dispatch surface the processor needs from the engine
// layer.
type Transcriber interface {
	Transcribe(ctx context.Context, name engine.Name, req engine.Request) (*engine.Result, error)
}

// AudioNormalizer converts audio into the format the speech backend expects.
type AudioNormalizer interface {
	ToMono16kWAV(ctx context.Context, inputPath string) (string, error)
}

// Processor runs one transcription job end to end: claim, download,
// transcribe, persist, announce. All observable state transitions go through
// here so the durable row, the cache entry and the pub/sub stream never
// disagree for long.
type Processor struct {
	store       store.Store
	jobs        *cache.JobManager
	publisher   *pubsub.Publisher
	objects     storage.ObjectStore
	transcriber Transcriber
	normalizer  AudioNormalizer
	producer    *events.EventProducer

	workerID           string
	downloadRetries    int
	downloadRetryDelay time.Duration

	logger *zap.SugaredLogger
}

type ProcessorOption func(p *Processor)

func WithEventProducer(ep *events.EventProducer) ProcessorOption {
	return func(p *Processor) {
		p.producer = ep
	}
}

func WithDownloadRetry(retries int, delay time.Duration) ProcessorOption {
	return func(p *Processor) {
		p.downloadRetries = retries
		p.downloadRetryDelay = delay
	}
}

func NewProcessor(
	s store.Store,
	jobs *cache.JobManager,
	publisher *pubsub.Publisher,
	objects storage.ObjectStore,
	transcriber Transcriber,
	normalizer AudioNormalizer,
	workerID string,
	opts ...ProcessorOption,
) *Processor {
	p := &Processor{
		store:              s,
		jobs:               jobs,
		publisher:          publisher,
		objects:            objects,
		transcriber:        transcriber,
		normalizer:         normalizer,
		workerID:           workerID,
		downloadRetries:    10,
		downloadRetryDelay: 2 * time.Second,
		logger:             zap.S().Named("processor"),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Process executes the pipeline for one job. On error the caller decides
// between retry and cancellation; HandleFailure records the failure either
// way.
func (p *Processor) Process(ctx context.Context, args TranscribeArgs) error {
	started := time.Now()

	engineName, err := engine.Parse(args.Engine)
	if err != nil {
		return err
	}

	if err := p.initialize(ctx, args); err != nil {
		return err
	}

	audioPath, cleanup, err := p.download(ctx, args)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := p.transcribe(ctx, engineName, args, audioPath)
	if err != nil {
		return err
	}

	if err := p.persist(ctx, args, result); err != nil {
		return err
	}

	p.complete(ctx, args, result)

	metrics.IncreaseJobsProcessedMetric(args.Engine, model.JobStatusCompleted)
	metrics.ObserveJobDurationMetric(args.Engine, time.Since(started))

	p.logger.Infow("job completed",
		"job_id", args.JobID,
		"engine", args.Engine,
		"segments", len(result.Segments),
		"duration_s", result.Duration,
	)
	return nil
}

// initialize claims the job row and announces the processing state.
func (p *Processor) initialize(ctx context.Context, args TranscribeArgs) error {
	now := time.Now().UTC()
	if err := p.store.Job().UpdateWorkerInfo(ctx, args.JobID, p.workerID, now); err != nil {
		return fmt.Errorf("claiming job: %w", err)
	}
	if err := p.store.Job().IncrementAttempts(ctx, args.JobID); err != nil {
		return fmt.Errorf("recording attempt: %w", err)
	}

	p.announceProgress(ctx, args.JobID, progressQueued, "job started")
	return nil
}

// download waits for the audio object to land and stages it into a temp
// file. The object store write races the queue insert, so a missing object is
// polled before giving up.
func (p *Processor) download(ctx context.Context, args TranscribeArgs) (string, func(), error) {
	p.announceProgress(ctx, args.JobID, progressDownloading, "downloading audio")

	var exists bool
	var err error
	for attempt := 0; attempt < p.downloadRetries; attempt++ {
		exists, err = p.objects.Exists(ctx, args.AudioKey)
		if err != nil {
			return "", nil, fmt.Errorf("checking audio object: %w", err)
		}
		if exists || attempt == p.downloadRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return "", nil, ctx.Err()
		case <-time.After(p.downloadRetryDelay):
		}
	}
	if !exists {
		return "", nil, fmt.Errorf("audio object %q never appeared", args.AudioKey)
	}

	content, err := p.objects.Read(ctx, args.AudioKey)
	if err != nil {
		return "", nil, fmt.Errorf("downloading audio: %w", err)
	}

	f, err := os.CreateTemp("", "transcribe-*"+filepath.Ext(args.Filename))
	if err != nil {
		return "", nil, fmt.Errorf("staging audio: %w", err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("staging audio: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("staging audio: %w", err)
	}

	path := f.Name()
	return path, func() { os.Remove(path) }, nil
}

// transcribe dispatches to the selected engine, converting the audio first
// when the backend requires normalized PCM.
func (p *Processor) transcribe(ctx context.Context, engineName engine.Name, args TranscribeArgs, audioPath string) (*engine.Result, error) {
	p.announceProgress(ctx, args.JobID, progressTranscribe, "transcribing")

	if engineName == engine.EngineSpeech {
		converted, err := p.normalizer.ToMono16kWAV(ctx, audioPath)
		if err != nil {
			return nil, fmt.Errorf("normalizing audio: %w", err)
		}
		if converted != audioPath {
			defer os.Remove(converted)
		}
		audioPath = converted
	}

	result, err := p.transcriber.Transcribe(ctx, engineName, engine.Request{
		AudioPath:    audioPath,
		TranscriptID: args.TranscriptID,
		Filename:     args.Filename,
		Language:     args.Language,
		ContextID:    args.ContextID,
		Params:       args.Params,
	})
	if err != nil {
		return nil, err
	}

	p.announceProgress(ctx, args.JobID, progressPersisting, "persisting transcript")
	return result, nil
}

// persist writes the transcript and the job completion in one transaction so
// a crash between the two cannot leave a completed job without segments.
func (p *Processor) persist(ctx context.Context, args TranscribeArgs, result *engine.Result) error {
	txCtx, err := p.store.NewTransactionContext(ctx)
	if err != nil {
		return fmt.Errorf("opening transaction: %w", err)
	}

	if err := p.store.Transcript().UpdateSegments(txCtx, args.TranscriptID, result.Segments, result.Duration, result.SpeakerRoles); err != nil {
		_, _ = store.Rollback(txCtx)
		return fmt.Errorf("persisting transcript: %w", err)
	}
	if err := p.store.Job().MarkCompleted(txCtx, args.JobID, time.Now().UTC()); err != nil {
		_, _ = store.Rollback(txCtx)
		return fmt.Errorf("marking job completed: %w", err)
	}

	if _, err := store.Commit(txCtx); err != nil {
		return fmt.Errorf("committing transcript: %w", err)
	}
	return nil
}

// complete updates the ephemeral tiers after the durable write committed.
// Failures here are logged only: the durable store already holds the truth.
func (p *Processor) complete(ctx context.Context, args TranscribeArgs, result *engine.Result) {
	payload := api.ResultPayload{
		TranscriptID:  args.TranscriptID.String(),
		SegmentsCount: len(result.Segments),
		Duration:      result.Duration,
	}

	if err := p.jobs.SetResult(ctx, args.JobID, payload); err != nil {
		p.logger.Warnw("failed to cache job result", "job_id", args.JobID, "error", err)
	}
	if err := p.jobs.UpdateStatus(ctx, api.JobStatusEntry{
		JobID:    args.JobID,
		Status:   model.JobStatusCompleted,
		Progress: progressDone,
		Result:   &payload,
	}); err != nil {
		p.logger.Warnw("failed to cache job status", "job_id", args.JobID, "error", err)
	}
	if err := p.publisher.PublishCompleted(ctx, args.JobID, payload); err != nil {
		p.logger.Warnw("failed to publish completion", "job_id", args.JobID, "error", err)
	}

	p.emitEvent(events.JobCompletedKind, events.JobCompletedEvent{
		JobID:        args.JobID,
		TranscriptID: args.TranscriptID.String(),
		Engine:       args.Engine,
		Result:       payload,
	})
}

// HandleFailure records a failed attempt across all state tiers. When final
// is false the durable row keeps its retryable shape and only the ephemeral
// tiers reflect the pending retry.
func (p *Processor) HandleFailure(ctx context.Context, args TranscribeArgs, attempt int, jobErr error, final bool) {
	// On a job timeout the incoming context is already cancelled; the
	// failure record must still land in every tier.
	ctx = context.WithoutCancel(ctx)

	p.logger.Errorw("job attempt failed",
		"job_id", args.JobID,
		"engine", args.Engine,
		"attempt", attempt,
		"final", final,
		"error", jobErr,
	)

	if !final {
		if err := p.jobs.UpdateStatus(ctx, api.JobStatusEntry{
			JobID:    args.JobID,
			Status:   model.JobStatusQueued,
			Progress: progressQueued,
			Message:  fmt.Sprintf("attempt %d failed, retrying", attempt),
		}); err != nil {
			p.logger.Warnw("failed to cache retry status", "job_id", args.JobID, "error", err)
		}
		return
	}

	now := time.Now().UTC()
	details := model.ErrorDetails{
		Message:  jobErr.Error(),
		Stack:    fmt.Sprintf("%+v", errors.WithStack(jobErr)),
		WorkerID: p.workerID,
		Engine:   args.Engine,
	}

	txCtx, err := p.store.NewTransactionContext(ctx)
	if err != nil {
		p.logger.Errorw("failed to open failure transaction", "job_id", args.JobID, "error", err)
	} else {
		if err := p.store.Job().MarkFailed(txCtx, args.JobID, details, now); err != nil {
			p.logger.Errorw("failed to mark job failed", "job_id", args.JobID, "error", err)
		}
		msg := jobErr.Error()
		if err := p.store.Transcript().UpdateStatus(txCtx, args.TranscriptID, model.TranscriptStatusFailed, &msg); err != nil {
			p.logger.Errorw("failed to mark transcript failed", "job_id", args.JobID, "error", err)
		}
		if _, err := store.Commit(txCtx); err != nil {
			p.logger.Errorw("failed to commit failure state", "job_id", args.JobID, "error", err)
		}
	}

	if err := p.jobs.UpdateStatus(ctx, api.JobStatusEntry{
		JobID:  args.JobID,
		Status: model.JobStatusFailed,
		Error:  jobErr.Error(),
	}); err != nil {
		p.logger.Warnw("failed to cache failure status", "job_id", args.JobID, "error", err)
	}
	if err := p.publisher.PublishFailed(ctx, args.JobID, jobErr.Error()); err != nil {
		p.logger.Warnw("failed to publish failure", "job_id", args.JobID, "error", err)
	}

	p.emitEvent(events.JobFailedKind, events.JobFailedEvent{
		JobID:        args.JobID,
		TranscriptID: args.TranscriptID.String(),
		Engine:       args.Engine,
		Error:        jobErr.Error(),
		Attempts:     attempt,
	})

	metrics.IncreaseJobsProcessedMetric(args.Engine, model.JobStatusFailed)
}

func (p *Processor) announceProgress(ctx context.Context, jobID string, progress int, message string) {
	if err := p.jobs.UpdateStatus(ctx, api.JobStatusEntry{
		JobID:    jobID,
		Status:   model.JobStatusProcessing,
		Progress: progress,
		Message:  message,
	}); err != nil {
		p.logger.Warnw("failed to cache progress", "job_id", jobID, "error", err)
	}
	if err := p.publisher.PublishProgress(ctx, jobID, progress, message); err != nil {
		p.logger.Warnw("failed to publish progress", "job_id", jobID, "error", err)
	}
}

func (p *Processor) emitEvent(kind string, payload any) {
	if p.producer == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warnw("failed to encode event", "kind", kind, "error", err)
		return
	}
	if err := p.producer.Write(context.Background(), kind, bytes.NewReader(data)); err != nil {
		p.logger.Warnw("failed to emit event", "kind", kind, "error", err)
	}
}
