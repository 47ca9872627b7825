package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scribehub/transcriber/internal/store/model"
)

type Transcript interface {
	Create(ctx context.Context, transcript model.Transcript) (*model.Transcript, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Transcript, error)
	UpdateSegments(ctx context.Context, id uuid.UUID, segments []model.Segment, duration float64, speakerRoles map[string]string) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type TranscriptStore struct {
	db *gorm.DB
}

var _ Transcript = (*TranscriptStore)(nil)

func NewTranscriptStore(db *gorm.DB) Transcript {
	return &TranscriptStore{db: db}
}

func (s *TranscriptStore) Create(ctx context.Context, transcript model.Transcript) (*model.Transcript, error) {
	if transcript.ID == uuid.Nil {
		transcript.ID = uuid.New()
	}
	if transcript.Status == "" {
		transcript.Status = model.TranscriptStatusProcessing
	}

	result := s.getDB(ctx).Create(&transcript)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("creating transcript: %w", result.Error)
	}

	return &transcript, nil
}

func (s *TranscriptStore) Get(ctx context.Context, id uuid.UUID) (*model.Transcript, error) {
	var transcript model.Transcript
	result := s.getDB(ctx).First(&transcript, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying transcript: %w", result.Error)
	}

	return &transcript, nil
}

// UpdateSegments replaces the whole segment list in one write so readers never
// observe a partially written transcript. Only a processing transcript can
// move to completed; a transcript already in a terminal state stays there.
func (s *TranscriptStore) UpdateSegments(ctx context.Context, id uuid.UUID, segments []model.Segment, duration float64, speakerRoles map[string]string) error {
	updates := map[string]any{
		"segments":      model.MakeJSONField(segments),
		"duration":      duration,
		"speaker_roles": model.MakeJSONField(speakerRoles),
		"status":        model.TranscriptStatusCompleted,
		"error_message": nil,
	}

	result := s.getDB(ctx).Model(&model.Transcript{}).
		Where("id = ? AND status = ?", id, model.TranscriptStatusProcessing).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("updating transcript segments: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return s.requireExists(ctx, id)
	}

	return nil
}

// UpdateStatus moves a processing transcript into a terminal state. Writes
// against a transcript that already reached one are no-ops.
func (s *TranscriptStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string) error {
	updates := map[string]any{"status": status}
	if errorMessage != nil {
		updates["error_message"] = *errorMessage
	}

	result := s.getDB(ctx).Model(&model.Transcript{}).
		Where("id = ? AND status = ?", id, model.TranscriptStatusProcessing).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("updating transcript status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return s.requireExists(ctx, id)
	}

	return nil
}

// requireExists separates a missing row from an already terminal one after a
// guarded update matched nothing.
func (s *TranscriptStore) requireExists(ctx context.Context, id uuid.UUID) error {
	var count int64
	result := s.getDB(ctx).Model(&model.Transcript{}).Where("id = ?", id).Count(&count)
	if result.Error != nil {
		return fmt.Errorf("querying transcript: %w", result.Error)
	}
	if count == 0 {
		return ErrRecordNotFound
	}

	return nil
}

func (s *TranscriptStore) Delete(ctx context.Context, id uuid.UUID) error {
	result := s.getDB(ctx).Delete(&model.Transcript{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("deleting transcript: %w", result.Error)
	}

	return nil
}

func (s *TranscriptStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
