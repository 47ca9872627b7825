package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scribehub/transcriber/internal/store/model"
)

// TranscriptionContext persists domain vocabulary configuration.
type TranscriptionContext interface {
	Create(ctx context.Context, trCtx model.Context) (*model.Context, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Context, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type ContextStore struct {
	db *gorm.DB
}

var _ TranscriptionContext = (*ContextStore)(nil)

func NewContextStore(db *gorm.DB) TranscriptionContext {
	return &ContextStore{db: db}
}

func (s *ContextStore) Create(ctx context.Context, trCtx model.Context) (*model.Context, error) {
	if trCtx.ID == uuid.Nil {
		trCtx.ID = uuid.New()
	}

	result := s.getDB(ctx).Create(&trCtx)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("creating context: %w", result.Error)
	}

	return &trCtx, nil
}

func (s *ContextStore) Get(ctx context.Context, id uuid.UUID) (*model.Context, error) {
	var trCtx model.Context
	result := s.getDB(ctx).First(&trCtx, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying context: %w", result.Error)
	}

	return &trCtx, nil
}

func (s *ContextStore) Delete(ctx context.Context, id uuid.UUID) error {
	result := s.getDB(ctx).Delete(&model.Context{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("deleting context: %w", result.Error)
	}

	return nil
}

func (s *ContextStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return s.db
}
