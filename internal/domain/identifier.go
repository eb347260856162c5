package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Identifier is the opaque, caller-supplied key that groups records and record errors.
type Identifier struct {
	ID        uuid.UUID `json:"id"`
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
}

// NewIdentifier creates a new identifier for key
func NewIdentifier(key string) Identifier {
	return Identifier{
		ID:        uuid.New(),
		Key:       strings.TrimSpace(key),
		CreatedAt: time.Now(),
	}
}

func (i Identifier) String() string {
	return i.Key
}
