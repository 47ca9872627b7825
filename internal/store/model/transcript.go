package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	TranscriptStatusProcessing = "processing"
	TranscriptStatusCompleted  = "completed"
	TranscriptStatusFailed     = "failed"
)

// Segment is one diarized piece of a transcript. Estimated marks timing that
// was regenerated from word counts instead of reported by the engine.
type Segment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	SpeakerTag int     `json:"speaker_tag"`
	Confidence float64 `json:"confidence"`
	Estimated  bool    `json:"estimated,omitempty"`
}

type Transcript struct {
	ID           uuid.UUID `gorm:"primaryKey;"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    *time.Time
	Filename     string                       `gorm:"type:VARCHAR(255);not null"`
	AudioKey     string                       `gorm:"type:VARCHAR(500);not null"`
	Language     string                       `gorm:"type:VARCHAR(10);not null;default:'en-US'"`
	Duration     float64                      `gorm:"not null;default:0"`
	Segments     *JSONField[[]Segment]        `gorm:"type:jsonb"`
	SpeakerRoles *JSONField[map[string]string] `gorm:"type:jsonb"`
	Status       string                       `gorm:"type:VARCHAR(20);not null;default:'processing'"`
	ErrorMessage *string                      `gorm:"type:TEXT"`
}

type TranscriptList []Transcript

func (t Transcript) String() string {
	val, _ := json.Marshal(t)
	return string(val)
}

// Terminal reports whether the transcript can no longer change status.
func (t Transcript) Terminal() bool {
	return t.Status == TranscriptStatusCompleted || t.Status == TranscriptStatusFailed
}
