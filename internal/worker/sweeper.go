package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/scribehub/transcriber/internal/store"
)

const sweepInterval = time.Hour

// Sweeper deletes terminal job rows past the retention window. Transcripts
// outlive their jobs; only the processing bookkeeping is swept.
type Sweeper struct {
	store        store.Store
	retentionAge time.Duration
	logger       *zap.SugaredLogger
}

func NewSweeper(s store.Store, retentionAge time.Duration) *Sweeper {
	return &Sweeper{
		store:        s,
		retentionAge: retentionAge,
		logger:       zap.S().Named("sweeper"),
	}
}

// Run blocks until ctx is cancelled, sweeping once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.retentionAge)
	deleted, err := s.store.Job().DeleteCompletedBefore(ctx, cutoff)
	if err != nil {
		s.logger.Errorw("retention sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Infow("retention sweep removed old jobs", "count", deleted, "cutoff", cutoff)
	}
}
