package records

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rpattn/recordkeep/internal/domain"
	"github.com/rpattn/recordkeep/internal/repository"
	"github.com/rpattn/recordkeep/pkg/validator"
)

// IdentifierResolver turns an identifier key into the stored identifier.
// Unknown keys resolve to (nil, nil); errors are reserved for infrastructure failures.
type IdentifierResolver interface {
	Resolve(ctx context.Context, key string) (*domain.Identifier, error)
}

// RepositoryResolver resolves identifiers one at a time through a repository.
type RepositoryResolver struct {
	repo repository.IdentifierRepository
}

// NewRepositoryResolver adapts repo to IdentifierResolver.
func NewRepositoryResolver(repo repository.IdentifierRepository) *RepositoryResolver {
	return &RepositoryResolver{repo: repo}
}

func (r *RepositoryResolver) Resolve(ctx context.Context, key string) (*domain.Identifier, error) {
	identifier, err := r.repo.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &identifier, nil
}

// Validator checks records and record errors, resolving the identifier
// reference before the presence rule runs.
type Validator struct {
	resolver     IdentifierResolver
	records      validator.Schema
	recordErrors validator.Schema
}

// NewValidator builds a validator. A nil resolver leaves identifier keys
// unresolved, so only their presence is checked.
func NewValidator(resolver IdentifierResolver) *Validator {
	return &Validator{
		resolver:     resolver,
		records:      RecordSchema(),
		recordErrors: RecordErrorSchema(),
	}
}

// ValidateRecord validates record attributes.
func (v *Validator) ValidateRecord(ctx context.Context, attrs validator.Attributes) (validator.Result, error) {
	resolved, err := v.resolveIdentifier(ctx, attrs)
	if err != nil {
		return validator.Result{}, err
	}
	return v.records.Validate(resolved), nil
}

// ValidateRecordError validates record error attributes.
func (v *Validator) ValidateRecordError(ctx context.Context, attrs validator.Attributes) (validator.Result, error) {
	resolved, err := v.resolveIdentifier(ctx, attrs)
	if err != nil {
		return validator.Result{}, err
	}
	return v.recordErrors.Validate(resolved), nil
}

func (v *Validator) resolveIdentifier(ctx context.Context, attrs validator.Attributes) (validator.Attributes, error) {
	resolved := attrs.Clone()

	switch value := attrs.Get(domain.FieldIdentifier).(type) {
	case string:
		key := strings.TrimSpace(value)
		if key == "" {
			resolved[domain.FieldIdentifier] = nil
			return resolved, nil
		}
		if v.resolver == nil {
			return resolved, nil
		}
		identifier, err := v.resolver.Resolve(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve identifier %q: %w", key, err)
		}
		if identifier == nil {
			resolved[domain.FieldIdentifier] = nil
		} else {
			resolved[domain.FieldIdentifier] = identifier
		}
	case domain.Identifier:
		resolved[domain.FieldIdentifier] = &value
	}

	return resolved, nil
}
