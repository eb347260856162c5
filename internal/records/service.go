package records

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rpattn/recordkeep/internal/domain"
	"github.com/rpattn/recordkeep/internal/repository"
	"github.com/rpattn/recordkeep/pkg/validator"
)

// Service is the persistence gate: records and record errors are only stored
// once they pass validation.
type Service struct {
	identifiers  repository.IdentifierRepository
	records      repository.RecordRepository
	recordErrors repository.RecordErrorRepository
	validator    *Validator
}

// NewService creates a record service resolving identifiers through the identifier repository.
func NewService(
	identifiers repository.IdentifierRepository,
	records repository.RecordRepository,
	recordErrors repository.RecordErrorRepository,
) *Service {
	return &Service{
		identifiers:  identifiers,
		records:      records,
		recordErrors: recordErrors,
		validator:    NewValidator(NewRepositoryResolver(identifiers)),
	}
}

// WithResolver returns a copy of the service that resolves identifiers through resolver.
func (s *Service) WithResolver(resolver IdentifierResolver) *Service {
	clone := *s
	clone.validator = NewValidator(resolver)
	return &clone
}

// Validator exposes the validator used by the service.
func (s *Service) Validator() *Validator {
	return s.validator
}

// SaveRecord validates and persists record. Validation failures are returned
// as validator.FieldErrors.
func (s *Service) SaveRecord(ctx context.Context, record domain.Record) (domain.Record, error) {
	result, err := s.validator.ValidateRecord(ctx, record.Attributes())
	if err != nil {
		return domain.Record{}, err
	}
	if !result.Valid {
		return domain.Record{}, result.Errors
	}

	created, err := s.records.Create(ctx, record)
	if err != nil {
		return domain.Record{}, missingIdentifier(err)
	}
	return created, nil
}

// SaveRecordError validates and persists a row failure.
func (s *Service) SaveRecordError(ctx context.Context, recordError domain.RecordError) (domain.RecordError, error) {
	result, err := s.validator.ValidateRecordError(ctx, recordError.Attributes())
	if err != nil {
		return domain.RecordError{}, err
	}
	if !result.Valid {
		return domain.RecordError{}, result.Errors
	}

	created, err := s.recordErrors.Create(ctx, recordError)
	if err != nil {
		return domain.RecordError{}, missingIdentifier(err)
	}
	return created, nil
}

// missingIdentifier reports a foreign key miss as an identifier failure. The
// identifier can vanish between validation and insert.
func missingIdentifier(err error) error {
	if errors.Is(err, repository.ErrMissingReference) {
		return validator.FieldErrors{domain.FieldIdentifier: {"is required"}}
	}
	return err
}

// CreateIdentifier registers a new identifier key.
func (s *Service) CreateIdentifier(ctx context.Context, key string) (domain.Identifier, error) {
	identifier := domain.NewIdentifier(key)
	if identifier.Key == "" {
		return domain.Identifier{}, validator.FieldErrors{domain.FieldIdentifier: {"is required"}}
	}
	return s.identifiers.Create(ctx, identifier)
}

// ListIdentifiers pages through registered identifiers.
func (s *Service) ListIdentifiers(ctx context.Context, limit, offset int) ([]domain.Identifier, error) {
	return s.identifiers.List(ctx, limit, offset)
}

// DeleteIdentifier removes an identifier together with its records and errors.
func (s *Service) DeleteIdentifier(ctx context.Context, key string) error {
	return s.identifiers.Delete(ctx, strings.TrimSpace(key))
}

// ParseRow converts a validated row attribute into an int64.
func ParseRow(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return parseUnsignedRow(uint64(v))
	case uint64:
		return parseUnsignedRow(v)
	case float64:
		if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
			return 0, fmt.Errorf("invalid row %v: %w", v, strconv.ErrRange)
		}
		return int64(v), nil
	case string:
		row, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid row %q: %w", v, err)
		}
		return row, nil
	default:
		return 0, fmt.Errorf("unsupported row value %T", value)
	}
}

func parseUnsignedRow(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("invalid row %d: %w", v, strconv.ErrRange)
	}
	return int64(v), nil
}

// ErrorText joins field errors into a single message no longer than the
// record error text limit.
func ErrorText(errs validator.FieldErrors) string {
	return Truncate(strings.Join(errs.Messages(), "; "), maxStringLength)
}

// Truncate shortens s to at most max characters.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
