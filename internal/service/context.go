package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/scribehub/transcriber/internal/store"
	"github.com/scribehub/transcriber/internal/store/model"
	"github.com/scribehub/transcriber/pkg/log"
)

// ContextService manages reusable transcription contexts: boosting
// vocabularies and speaker label mappings referenced by submissions.
type ContextService struct {
	store  store.Store
	logger *log.StructuredLogger
}

func NewContextService(store store.Store) *ContextService {
	return &ContextService{
		store:  store,
		logger: log.NewDebugLogger("context_service"),
	}
}

type CreateContextRequest struct {
	Name          string
	Language      string
	WordBoosting  map[string]model.BoostCategory
	SpeakerLabels map[string]string
}

func (s *ContextService) CreateContext(ctx context.Context, req CreateContextRequest) (*model.Context, error) {
	tracer := s.logger.WithContext(ctx).Operation("create_context").WithString("name", req.Name).Build()

	if req.Name == "" {
		return nil, NewErrMissingContextName()
	}

	m := model.Context{
		ID:       uuid.New(),
		Name:     req.Name,
		Language: req.Language,
	}
	if len(req.WordBoosting) > 0 {
		m.WordBoosting = model.MakeJSONField(req.WordBoosting)
	}
	if len(req.SpeakerLabels) > 0 {
		m.SpeakerLabels = model.MakeJSONField(req.SpeakerLabels)
	}

	created, err := s.store.Context().Create(ctx, m)
	if err != nil {
		tracer.Error(err).Log()
		return nil, err
	}

	tracer.Success().WithString("context_id", created.ID.String()).Log()
	return created, nil
}

func (s *ContextService) GetContext(ctx context.Context, id uuid.UUID) (*model.Context, error) {
	c, err := s.store.Context().Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, NewErrContextNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

func (s *ContextService) DeleteContext(ctx context.Context, id uuid.UUID) error {
	return s.store.Context().Delete(ctx, id)
}
