package worker

import (
	"context"
	"time"

	"github.com/riverqueue/river"

	"github.com/scribehub/transcriber/internal/engine"
)

type TranscribeWorker struct {
	river.WorkerDefaults[TranscribeArgs]
	processor *Processor
	timeout   time.Duration
}

func NewTranscribeWorker(processor *Processor, timeout time.Duration) *TranscribeWorker {
	if timeout <= 0 {
		timeout = JobTimeout
	}
	return &TranscribeWorker{processor: processor, timeout: timeout}
}

func (w *TranscribeWorker) Timeout(job *river.Job[TranscribeArgs]) time.Duration {
	return w.timeout
}

func (w *TranscribeWorker) Work(ctx context.Context, job *river.Job[TranscribeArgs]) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := w.processor.Process(ctx, job.Args)
	if err == nil {
		return nil
	}

	// malformed engine output never improves on retry
	fatal := engine.IsFatal(err)
	final := fatal || job.Attempt >= job.MaxAttempts

	w.processor.HandleFailure(ctx, job.Args, job.Attempt, err, final)

	if fatal {
		return river.JobCancel(err)
	}
	return err
}
