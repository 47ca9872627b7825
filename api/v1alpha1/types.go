// Package v1alpha1 holds the wire types shared by the cache tier, the pub/sub
// channel, the result stream, and external clients.
package v1alpha1

// JobStatusEntry is the ephemeral cache entry for one job. It is derived
// state: losing it must never lose information, only latency.
type JobStatusEntry struct {
	JobID    string         `json:"job_id"`
	Status   string         `json:"status"`
	Progress int            `json:"progress"`
	Message  string         `json:"message,omitempty"`
	Result   *ResultPayload `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// ResultPayload is the compact completion summary published alongside a
// terminal status. The full segment list lives only in the durable store.
type ResultPayload struct {
	TranscriptID  string  `json:"transcript_id"`
	SegmentsCount int     `json:"segments_count"`
	Duration      float64 `json:"duration"`
}

// StatusEvent is broadcast on a per-job channel. It is transient: consumed at
// most once per subscriber and never stored.
type StatusEvent struct {
	JobID    string         `json:"job_id"`
	Status   string         `json:"status"`
	Progress int            `json:"progress"`
	Message  string         `json:"message,omitempty"`
	Result   *ResultPayload `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Terminal reports whether no further events follow this one.
func (e StatusEvent) Terminal() bool {
	return e.Status == "completed" || e.Status == "failed"
}

// TranscriptionResultMessage is the completion/failure message engine workers
// emit onto the result stream in the decoupled deployment variant.
type TranscriptionResultMessage struct {
	JobID        string            `json:"job_id"`
	TranscriptID string            `json:"transcript_id"`
	Status       string            `json:"status"`
	Segments     []ResultSegment   `json:"segments,omitempty"`
	Duration     float64           `json:"duration,omitempty"`
	Language     string            `json:"language,omitempty"`
	SpeakerRoles map[string]string `json:"speaker_roles,omitempty"`
	Error        string            `json:"error,omitempty"`
	RetryCount   int               `json:"retry_count,omitempty"`
}

// ResultSegment mirrors the durable segment shape on the wire.
type ResultSegment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	SpeakerTag int     `json:"speaker_tag"`
	Confidence float64 `json:"confidence"`
	Estimated  bool    `json:"estimated,omitempty"`
}
