package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/recordkeep/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type recordErrorRepository struct {
	pool *pgxpool.Pool
}

// NewRecordErrorRepository wires a repository backed by pgxpool.
func NewRecordErrorRepository(pool *pgxpool.Pool) RecordErrorRepository {
	return &recordErrorRepository{pool: pool}
}

func (r *recordErrorRepository) Create(ctx context.Context, recordError domain.RecordError) (domain.RecordError, error) {
	if r.pool == nil {
		return domain.RecordError{}, fmt.Errorf("record error repository not initialized")
	}
	if recordError.ID == uuid.Nil {
		recordError.ID = uuid.New()
	}

	var createdAt pgtype.Timestamptz
	err := r.pool.QueryRow(
		ctx,
		`INSERT INTO record_errors (id, identifier_key, row_number, text)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		recordError.ID,
		recordError.Identifier,
		recordError.Row,
		recordError.Text,
	).Scan(&createdAt)
	if err != nil {
		return domain.RecordError{}, fmt.Errorf("failed to record row error: %w", translate(err))
	}
	if createdAt.Valid {
		recordError.CreatedAt = createdAt.Time
	}

	return recordError, nil
}

func (r *recordErrorRepository) ListByIdentifier(ctx context.Context, identifier string, limit int, offset int) ([]domain.RecordError, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("record error repository not initialized")
	}
	limit, offset = normalizePage(limit, offset)

	rows, err := r.pool.Query(
		ctx,
		`SELECT id, identifier_key, row_number, text, created_at
		 FROM record_errors
		 WHERE identifier_key = $1
		 ORDER BY row_number, created_at, id
		 LIMIT $2 OFFSET $3`,
		identifier,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list record errors: %w", err)
	}
	defer rows.Close()

	recordErrors := []domain.RecordError{}
	for rows.Next() {
		var (
			entry     domain.RecordError
			createdAt pgtype.Timestamptz
		)
		if scanErr := rows.Scan(
			&entry.ID,
			&entry.Identifier,
			&entry.Row,
			&entry.Text,
			&createdAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan record error: %w", scanErr)
		}
		if createdAt.Valid {
			entry.CreatedAt = createdAt.Time
		}
		recordErrors = append(recordErrors, entry)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate record errors: %w", rowsErr)
	}

	return recordErrors, nil
}

func (r *recordErrorRepository) CountByIdentifier(ctx context.Context, identifier string) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("record error repository not initialized")
	}

	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM record_errors WHERE identifier_key = $1`, identifier).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count record errors: %w", err)
	}
	return count, nil
}
