package model

import (
	"time"

	"github.com/google/uuid"
)

// BoostCategory is one vocabulary category of a transcription context.
type BoostCategory struct {
	Terms []string `json:"terms"`
	Boost float64  `json:"boost"`
}

// Context carries domain configuration applied during transcription:
// a word-boosting vocabulary and speaker label mappings.
type Context struct {
	ID            uuid.UUID `gorm:"primaryKey;"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     *time.Time
	Name          string                                `gorm:"type:VARCHAR(255);not null"`
	Language      string                                `gorm:"type:VARCHAR(10);not null;default:'en-US'"`
	WordBoosting  *JSONField[map[string]BoostCategory]  `gorm:"type:jsonb"`
	SpeakerLabels *JSONField[map[string]string]         `gorm:"type:jsonb"`
}
