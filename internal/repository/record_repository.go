package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/recordkeep/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const recordColumns = `id, identifier_key, row_number, email, phone, first_name, last_name, created_at, updated_at`

type recordRepository struct {
	pool *pgxpool.Pool
}

// NewRecordRepository wires a record repository backed by pgxpool.
func NewRecordRepository(pool *pgxpool.Pool) RecordRepository {
	return &recordRepository{pool: pool}
}

func (r *recordRepository) Create(ctx context.Context, record domain.Record) (domain.Record, error) {
	if r.pool == nil {
		return domain.Record{}, errNotInitialized
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	row := r.pool.QueryRow(
		ctx,
		`INSERT INTO records (id, identifier_key, row_number, email, phone, first_name, last_name, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+recordColumns,
		record.ID,
		record.Identifier,
		record.Row,
		record.Email,
		record.Phone,
		record.First,
		record.Last,
		record.CreatedAt,
		record.UpdatedAt,
	)

	created, err := scanRecord(row)
	if err != nil {
		return domain.Record{}, fmt.Errorf("failed to create record: %w", translate(err))
	}
	return created, nil
}

func (r *recordRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Record, error) {
	if r.pool == nil {
		return domain.Record{}, errNotInitialized
	}

	row := r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM records WHERE id = $1`, id)
	record, err := scanRecord(row)
	if err != nil {
		return domain.Record{}, fmt.Errorf("failed to get record: %w", translate(err))
	}
	return record, nil
}

func (r *recordRepository) ListByIdentifier(ctx context.Context, identifier string, limit int, offset int) ([]domain.Record, error) {
	if r.pool == nil {
		return nil, errNotInitialized
	}
	limit, offset = normalizePage(limit, offset)

	rows, err := r.pool.Query(
		ctx,
		`SELECT `+recordColumns+`
		 FROM records
		 WHERE identifier_key = $1
		 ORDER BY row_number, created_at, id
		 LIMIT $2 OFFSET $3`,
		identifier,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	records := []domain.Record{}
	for rows.Next() {
		record, scanErr := scanRecord(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan record: %w", scanErr)
		}
		records = append(records, record)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", rowsErr)
	}

	return records, nil
}

func (r *recordRepository) CountByIdentifier(ctx context.Context, identifier string) (int64, error) {
	if r.pool == nil {
		return 0, errNotInitialized
	}

	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM records WHERE identifier_key = $1`, identifier).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

func scanRecord(row pgx.Row) (domain.Record, error) {
	var record domain.Record
	err := row.Scan(
		&record.ID,
		&record.Identifier,
		&record.Row,
		&record.Email,
		&record.Phone,
		&record.First,
		&record.Last,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	return record, err
}
