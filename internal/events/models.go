package events

import (
	api "github.com/scribehub/transcriber/api/v1alpha1"
)

type JobCompletedEvent struct {
	JobID        string            `json:"job_id"`
	TranscriptID string            `json:"transcript_id"`
	Engine       string            `json:"engine"`
	Result       api.ResultPayload `json:"result"`
}

type JobFailedEvent struct {
	JobID        string `json:"job_id"`
	TranscriptID string `json:"transcript_id"`
	Engine       string `json:"engine"`
	Error        string `json:"error"`
	Attempts     int    `json:"attempts"`
}
