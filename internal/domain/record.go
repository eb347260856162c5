package domain

import (
	"time"

	"github.com/google/uuid"
)

// Field names shared by validation, ingestion and export.
const (
	FieldRow        = "row"
	FieldEmail      = "email"
	FieldPhone      = "phone"
	FieldFirst      = "first"
	FieldLast       = "last"
	FieldIdentifier = "identifier"
	FieldText       = "text"
)

// Record represents one imported data row.
type Record struct {
	ID         uuid.UUID `json:"id"`
	Identifier string    `json:"identifier"`
	Row        int64     `json:"row"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	First      string    `json:"first"`
	Last       string    `json:"last"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewRecord creates a new record with immutable pattern
func NewRecord(identifier string, row int64, email, phone, first, last string) Record {
	now := time.Now()
	return Record{
		ID:         uuid.New(),
		Identifier: identifier,
		Row:        row,
		Email:      email,
		Phone:      phone,
		First:      first,
		Last:       last,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// WithIdentifier returns a copy of the record pointing at another identifier.
func (r Record) WithIdentifier(identifier string) Record {
	r.Identifier = identifier
	r.UpdatedAt = time.Now()
	return r
}

// Attributes exposes the record as a field -> value mapping for validation.
// The identifier is the raw key; resolution happens in the validator.
func (r Record) Attributes() map[string]any {
	return map[string]any{
		FieldRow:        r.Row,
		FieldEmail:      r.Email,
		FieldPhone:      r.Phone,
		FieldFirst:      r.First,
		FieldLast:       r.Last,
		FieldIdentifier: r.Identifier,
	}
}
