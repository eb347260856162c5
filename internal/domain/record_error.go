package domain

import (
	"time"

	"github.com/google/uuid"
)

// RecordError captures a row level validation failure reported during import.
type RecordError struct {
	ID         uuid.UUID `json:"id"`
	Identifier string    `json:"identifier"`
	Row        int64     `json:"row"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewRecordError creates a new record error
func NewRecordError(identifier string, row int64, text string) RecordError {
	return RecordError{
		ID:         uuid.New(),
		Identifier: identifier,
		Row:        row,
		Text:       text,
		CreatedAt:  time.Now(),
	}
}

// Attributes exposes the record error for validation.
func (e RecordError) Attributes() map[string]any {
	return map[string]any{
		FieldRow:        e.Row,
		FieldText:       e.Text,
		FieldIdentifier: e.Identifier,
	}
}
