package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/recordkeep/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// identifierRepository implements IdentifierRepository interface
type identifierRepository struct {
	pool *pgxpool.Pool
}

// NewIdentifierRepository creates a new identifier repository
func NewIdentifierRepository(pool *pgxpool.Pool) IdentifierRepository {
	return &identifierRepository{pool: pool}
}

// Create creates a new identifier
func (r *identifierRepository) Create(ctx context.Context, identifier domain.Identifier) (domain.Identifier, error) {
	if r.pool == nil {
		return domain.Identifier{}, errNotInitialized
	}

	row := r.pool.QueryRow(
		ctx,
		`INSERT INTO identifiers (id, key, created_at)
		 VALUES ($1, $2, $3)
		 RETURNING id, key, created_at`,
		identifier.ID,
		identifier.Key,
		identifier.CreatedAt,
	)

	created, err := scanIdentifier(row)
	if err != nil {
		return domain.Identifier{}, fmt.Errorf("failed to create identifier: %w", translate(err))
	}
	return created, nil
}

// GetByKey retrieves an identifier by its opaque key
func (r *identifierRepository) GetByKey(ctx context.Context, key string) (domain.Identifier, error) {
	if r.pool == nil {
		return domain.Identifier{}, errNotInitialized
	}

	row := r.pool.QueryRow(ctx, `SELECT id, key, created_at FROM identifiers WHERE key = $1`, key)
	identifier, err := scanIdentifier(row)
	if err != nil {
		return domain.Identifier{}, fmt.Errorf("failed to get identifier %q: %w", key, translate(err))
	}
	return identifier, nil
}

// GetByKeys retrieves every identifier whose key is in keys. Unknown keys are skipped.
func (r *identifierRepository) GetByKeys(ctx context.Context, keys []string) ([]domain.Identifier, error) {
	if r.pool == nil {
		return nil, errNotInitialized
	}
	if len(keys) == 0 {
		return []domain.Identifier{}, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT id, key, created_at FROM identifiers WHERE key = ANY($1)`, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to get identifiers by keys: %w", err)
	}
	return collectIdentifiers(rows)
}

// List retrieves identifiers ordered by creation time
func (r *identifierRepository) List(ctx context.Context, limit int, offset int) ([]domain.Identifier, error) {
	if r.pool == nil {
		return nil, errNotInitialized
	}
	limit, offset = normalizePage(limit, offset)

	rows, err := r.pool.Query(
		ctx,
		`SELECT id, key, created_at
		 FROM identifiers
		 ORDER BY created_at, key
		 LIMIT $1 OFFSET $2`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list identifiers: %w", err)
	}
	return collectIdentifiers(rows)
}

// Delete removes an identifier and, through the foreign keys, its records and errors
func (r *identifierRepository) Delete(ctx context.Context, key string) error {
	if r.pool == nil {
		return errNotInitialized
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM identifiers WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to delete identifier: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("failed to delete identifier %q: %w", key, ErrNotFound)
	}
	return nil
}

func scanIdentifier(row pgx.Row) (domain.Identifier, error) {
	var identifier domain.Identifier
	if err := row.Scan(&identifier.ID, &identifier.Key, &identifier.CreatedAt); err != nil {
		return domain.Identifier{}, err
	}
	return identifier, nil
}

func collectIdentifiers(rows pgx.Rows) ([]domain.Identifier, error) {
	defer rows.Close()

	identifiers := []domain.Identifier{}
	for rows.Next() {
		identifier, err := scanIdentifier(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan identifier: %w", err)
		}
		identifiers = append(identifiers, identifier)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate identifiers: %w", err)
	}
	return identifiers, nil
}
