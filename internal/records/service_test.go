package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rpattn/recordkeep/internal/domain"
	"github.com/rpattn/recordkeep/internal/repository"
	"github.com/rpattn/recordkeep/pkg/validator"

	"github.com/google/uuid"
)

func TestServiceSaveRecordPersistsValidRecord(t *testing.T) {
	identifiers := newStubIdentifierRepo("foo")
	recordRepo := &stubRecordRepo{}
	service := NewService(identifiers, recordRepo, &stubRecordErrorRepo{})

	record := domain.NewRecord("foo", 0, "me@mail.com", "555.234.5678", "Firstname", "Lastname")
	saved, err := service.SaveRecord(context.Background(), record)
	if err != nil {
		t.Fatalf("save returned error: %v", err)
	}
	if saved.ID != record.ID {
		t.Fatalf("expected saved record to keep id %s, got %s", record.ID, saved.ID)
	}
	if len(recordRepo.created) != 1 {
		t.Fatalf("expected 1 record persisted, got %d", len(recordRepo.created))
	}
}

func TestServiceSaveRecordRejectsUnknownIdentifier(t *testing.T) {
	recordRepo := &stubRecordRepo{}
	service := NewService(newStubIdentifierRepo(), recordRepo, &stubRecordErrorRepo{})

	record := domain.NewRecord("missing", 0, "me@mail.com", "555.234.5678", "Firstname", "Lastname")
	_, err := service.SaveRecord(context.Background(), record)
	if err == nil {
		t.Fatalf("expected validation error")
	}

	fieldErrors, ok := validator.ExtractFieldErrors(err)
	if !ok {
		t.Fatalf("expected field errors, got %T: %v", err, err)
	}
	if !fieldErrors.Has(domain.FieldIdentifier) {
		t.Fatalf("expected identifier error, got %v", fieldErrors)
	}
	if len(recordRepo.created) != 0 {
		t.Fatalf("invalid record must not be persisted")
	}
}

func TestServiceSaveRecordReportsEveryField(t *testing.T) {
	service := NewService(newStubIdentifierRepo("foo"), &stubRecordRepo{}, &stubRecordErrorRepo{})

	record := domain.NewRecord("", 1, "not-an-email", "12", "A", "B2")
	_, err := service.SaveRecord(context.Background(), record)

	fieldErrors, ok := validator.ExtractFieldErrors(err)
	if !ok {
		t.Fatalf("expected field errors, got %v", err)
	}
	want := []string{domain.FieldEmail, domain.FieldFirst, domain.FieldIdentifier, domain.FieldLast, domain.FieldPhone}
	got := fieldErrors.Fields()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected failing fields %v, got %v", want, got)
	}
}

func TestServiceSaveRecordPropagatesResolverFailure(t *testing.T) {
	identifiers := newStubIdentifierRepo()
	identifiers.err = errors.New("connection refused")
	service := NewService(identifiers, &stubRecordRepo{}, &stubRecordErrorRepo{})

	record := domain.NewRecord("foo", 0, "me@mail.com", "555.234.5678", "Firstname", "Lastname")
	_, err := service.SaveRecord(context.Background(), record)
	if err == nil {
		t.Fatalf("expected infrastructure error")
	}
	if _, ok := validator.ExtractFieldErrors(err); ok {
		t.Fatalf("resolver failures must not be reported as validation errors")
	}
}

func TestServiceSaveRecordError(t *testing.T) {
	errorRepo := &stubRecordErrorRepo{}
	service := NewService(newStubIdentifierRepo("foo"), &stubRecordRepo{}, errorRepo)

	if _, err := service.SaveRecordError(context.Background(), domain.NewRecordError("foo", 4, "phone: must contain exactly 10 digits")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(errorRepo.created) != 1 {
		t.Fatalf("expected record error to be stored")
	}

	_, err := service.SaveRecordError(context.Background(), domain.NewRecordError("foo", 5, ""))
	fieldErrors, ok := validator.ExtractFieldErrors(err)
	if !ok || !fieldErrors.Has(domain.FieldText) {
		t.Fatalf("expected text error, got %v", err)
	}
	if len(errorRepo.created) != 1 {
		t.Fatalf("invalid record error must not be stored")
	}
}

func TestServiceSaveReportsVanishedIdentifierAsFieldError(t *testing.T) {
	missing := fmt.Errorf("failed to create record: %w", repository.ErrMissingReference)
	recordRepo := &stubRecordRepo{err: missing}
	errorRepo := &stubRecordErrorRepo{err: missing}
	service := NewService(newStubIdentifierRepo("foo"), recordRepo, errorRepo)

	record := domain.NewRecord("foo", 0, "me@mail.com", "555.234.5678", "Firstname", "Lastname")
	_, err := service.SaveRecord(context.Background(), record)
	fieldErrors, ok := validator.ExtractFieldErrors(err)
	if !ok || !fieldErrors.Has(domain.FieldIdentifier) {
		t.Fatalf("expected identifier field error, got %v", err)
	}

	_, err = service.SaveRecordError(context.Background(), domain.NewRecordError("foo", 1, "email: is required"))
	fieldErrors, ok = validator.ExtractFieldErrors(err)
	if !ok || !fieldErrors.Has(domain.FieldIdentifier) {
		t.Fatalf("expected identifier field error, got %v", err)
	}
}

func TestServiceCreateIdentifier(t *testing.T) {
	identifiers := newStubIdentifierRepo()
	service := NewService(identifiers, &stubRecordRepo{}, &stubRecordErrorRepo{})

	created, err := service.CreateIdentifier(context.Background(), "  batch-7 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Key != "batch-7" {
		t.Fatalf("expected trimmed key, got %q", created.Key)
	}

	if _, err := service.CreateIdentifier(context.Background(), "   "); err == nil {
		t.Fatalf("expected blank key to be rejected")
	}

	if _, err := service.CreateIdentifier(context.Background(), "batch-7"); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected conflict for duplicate key, got %v", err)
	}
}

func TestServiceWithResolverOverridesLookup(t *testing.T) {
	service := NewService(newStubIdentifierRepo(), &stubRecordRepo{}, &stubRecordErrorRepo{})
	scoped := service.WithResolver(resolverFunc(func(ctx context.Context, key string) (*domain.Identifier, error) {
		identifier := domain.NewIdentifier(key)
		return &identifier, nil
	}))

	record := domain.NewRecord("anything", 0, "me@mail.com", "555.234.5678", "Firstname", "Lastname")
	if _, err := scoped.SaveRecord(context.Background(), record); err != nil {
		t.Fatalf("expected scoped resolver to accept identifier, got %v", err)
	}
	if _, err := service.SaveRecord(context.Background(), record); err == nil {
		t.Fatalf("original service must keep its own resolver")
	}
}

func TestParseRow(t *testing.T) {
	cases := map[any]int64{"12": 12, " +3 ": 3, 7: 7, int64(9): 9, float64(4): 4, "9223372036854775807": 9223372036854775807}
	for input, want := range cases {
		got, err := ParseRow(input)
		if err != nil {
			t.Fatalf("ParseRow(%#v) returned error: %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseRow(%#v) = %d, want %d", input, got, want)
		}
	}

	if _, err := ParseRow("x"); err == nil {
		t.Fatalf("expected error for non numeric row")
	}
	for _, input := range []any{"99999999999999999999", "-9223372036854775809", float64(1e19), uint64(1 << 63)} {
		if _, err := ParseRow(input); err == nil {
			t.Fatalf("expected range error for %#v", input)
		}
	}
}

func TestErrorTextTruncates(t *testing.T) {
	errs := validator.FieldErrors{}
	for i := 0; i < 40; i++ {
		errs.Add(fmt.Sprintf("field_%02d", i), "is required")
	}

	text := ErrorText(errs)
	if len([]rune(text)) != 255 {
		t.Fatalf("expected text truncated to 255 characters, got %d", len([]rune(text)))
	}
	if !strings.HasPrefix(text, "field_00: is required; field_01") {
		t.Fatalf("unexpected text prefix: %s", text)
	}
}

type resolverFunc func(ctx context.Context, key string) (*domain.Identifier, error)

func (f resolverFunc) Resolve(ctx context.Context, key string) (*domain.Identifier, error) {
	return f(ctx, key)
}

type stubIdentifierRepo struct {
	byKey map[string]domain.Identifier
	err   error
}

func newStubIdentifierRepo(keys ...string) *stubIdentifierRepo {
	repo := &stubIdentifierRepo{byKey: map[string]domain.Identifier{}}
	for _, key := range keys {
		repo.byKey[key] = domain.NewIdentifier(key)
	}
	return repo
}

func (s *stubIdentifierRepo) Create(ctx context.Context, identifier domain.Identifier) (domain.Identifier, error) {
	if _, exists := s.byKey[identifier.Key]; exists {
		return domain.Identifier{}, fmt.Errorf("failed to create identifier: %w", repository.ErrConflict)
	}
	s.byKey[identifier.Key] = identifier
	return identifier, nil
}

func (s *stubIdentifierRepo) GetByKey(ctx context.Context, key string) (domain.Identifier, error) {
	if s.err != nil {
		return domain.Identifier{}, s.err
	}
	identifier, ok := s.byKey[key]
	if !ok {
		return domain.Identifier{}, fmt.Errorf("failed to get identifier %q: %w", key, repository.ErrNotFound)
	}
	return identifier, nil
}

func (s *stubIdentifierRepo) GetByKeys(ctx context.Context, keys []string) ([]domain.Identifier, error) {
	var out []domain.Identifier
	for _, key := range keys {
		if identifier, ok := s.byKey[key]; ok {
			out = append(out, identifier)
		}
	}
	return out, s.err
}

func (s *stubIdentifierRepo) List(ctx context.Context, limit int, offset int) ([]domain.Identifier, error) {
	return nil, errors.New("not implemented")
}

func (s *stubIdentifierRepo) Delete(ctx context.Context, key string) error {
	delete(s.byKey, key)
	return nil
}

type stubRecordRepo struct {
	created []domain.Record
	err     error
}

func (s *stubRecordRepo) Create(ctx context.Context, record domain.Record) (domain.Record, error) {
	if s.err != nil {
		return domain.Record{}, s.err
	}
	s.created = append(s.created, record)
	return record, nil
}

func (s *stubRecordRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Record, error) {
	return domain.Record{}, errors.New("not implemented")
}

func (s *stubRecordRepo) ListByIdentifier(ctx context.Context, identifier string, limit int, offset int) ([]domain.Record, error) {
	return nil, errors.New("not implemented")
}

func (s *stubRecordRepo) CountByIdentifier(ctx context.Context, identifier string) (int64, error) {
	return int64(len(s.created)), nil
}

type stubRecordErrorRepo struct {
	created []domain.RecordError
	err     error
}

func (s *stubRecordErrorRepo) Create(ctx context.Context, recordError domain.RecordError) (domain.RecordError, error) {
	if s.err != nil {
		return domain.RecordError{}, s.err
	}
	s.created = append(s.created, recordError)
	return recordError, nil
}

func (s *stubRecordErrorRepo) ListByIdentifier(ctx context.Context, identifier string, limit int, offset int) ([]domain.RecordError, error) {
	return nil, errors.New("not implemented")
}

func (s *stubRecordErrorRepo) CountByIdentifier(ctx context.Context, identifier string) (int64, error) {
	return int64(len(s.created)), nil
}

var _ repository.IdentifierRepository = (*stubIdentifierRepo)(nil)
var _ repository.RecordRepository = (*stubRecordRepo)(nil)
var _ repository.RecordErrorRepository = (*stubRecordErrorRepo)(nil)
