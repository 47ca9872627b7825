package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/scribehub/transcriber/internal/store/model"
)

type Store interface {
	NewTransactionContext(ctx context.Context) (context.Context, error)
	Transcript() Transcript
	Job() Job
	Context() TranscriptionContext
	InitialMigration() error
	Close() error
}

type DataStore struct {
	db         *gorm.DB
	transcript Transcript
	job        Job
	trCtx      TranscriptionContext
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		transcript: NewTranscriptStore(db),
		job:        NewJobStore(db),
		trCtx:      NewContextStore(db),
		db:         db,
	}
}

func (s *DataStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	return newTransactionContext(ctx, s.db)
}

func (s *DataStore) Transcript() Transcript {
	return s.transcript
}

func (s *DataStore) Job() Job {
	return s.job
}

func (s *DataStore) Context() TranscriptionContext {
	return s.trCtx
}

// InitialMigration creates the schema directly from the models. Production
// deployments run the versioned goose migrations instead.
func (s *DataStore) InitialMigration() error {
	return s.db.AutoMigrate(
		&model.Transcript{},
		&model.TranscriptionJob{},
		&model.Context{},
	)
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
