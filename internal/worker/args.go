package worker

import (
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
)

const (
	DefaultQueue  = "transcription"
	JobKind       = "transcription"
	MaxJobRetries = 3
	JobTimeout    = time.Hour
)

// TranscribeArgs is the durable queue payload. The audio itself never rides
// the queue, only the object store key.
type TranscribeArgs struct {
	JobID        string         `json:"job_id"`
	TranscriptID uuid.UUID      `json:"transcript_id"`
	Engine       string         `json:"engine"`
	AudioKey     string         `json:"audio_key"`
	Filename     string         `json:"filename"`
	Language     string         `json:"language"`
	ContextID    *uuid.UUID     `json:"context_id,omitempty"`
	Params       map[string]any `json:"params,omitempty"`
}

func (TranscribeArgs) Kind() string {
	return JobKind
}

func (TranscribeArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       DefaultQueue,
		MaxAttempts: MaxJobRetries,
	}
}
