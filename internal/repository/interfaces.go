package repository

import (
	"context"

	"github.com/rpattn/recordkeep/internal/domain"

	"github.com/google/uuid"
)

// IdentifierRepository defines the interface for identifier operations
type IdentifierRepository interface {
	Create(ctx context.Context, identifier domain.Identifier) (domain.Identifier, error)
	GetByKey(ctx context.Context, key string) (domain.Identifier, error)
	GetByKeys(ctx context.Context, keys []string) ([]domain.Identifier, error)
	List(ctx context.Context, limit int, offset int) ([]domain.Identifier, error)
	Delete(ctx context.Context, key string) error
}

// RecordRepository defines the interface for record operations
type RecordRepository interface {
	Create(ctx context.Context, record domain.Record) (domain.Record, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Record, error)
	ListByIdentifier(ctx context.Context, identifier string, limit int, offset int) ([]domain.Record, error)
	CountByIdentifier(ctx context.Context, identifier string) (int64, error)
}

// RecordErrorRepository stores row level failures reported during import.
type RecordErrorRepository interface {
	Create(ctx context.Context, recordError domain.RecordError) (domain.RecordError, error)
	ListByIdentifier(ctx context.Context, identifier string, limit int, offset int) ([]domain.RecordError, error)
	CountByIdentifier(ctx context.Context, identifier string) (int64, error)
}

const defaultListLimit = 200

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
