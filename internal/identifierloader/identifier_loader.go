package identifierloader

import (
	"context"
	"fmt"
	"time"

	"github.com/rpattn/recordkeep/internal/domain"
	"github.com/rpattn/recordkeep/internal/repository"

	"github.com/graph-gophers/dataloader"
)

const defaultWait = 5 * time.Millisecond

// IdentifierLoader batches identifier lookups issued by concurrent row
// validations into GetByKeys calls. A loader caches results for its
// lifetime, so create one per import.
type IdentifierLoader struct {
	Loader *dataloader.Loader
}

func NewIdentifierLoader(repo repository.IdentifierRepository, wait time.Duration) *IdentifierLoader {
	if wait <= 0 {
		wait = defaultWait
	}

	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		results := make([]*dataloader.Result, len(keys))

		identifiers, err := repo.GetByKeys(ctx, keys.Keys())
		if err != nil {
			for i := range results {
				results[i] = &dataloader.Result{Error: fmt.Errorf("failed to load identifiers: %w", err)}
			}
			return results
		}

		byKey := make(map[string]domain.Identifier, len(identifiers))
		for _, identifier := range identifiers {
			byKey[identifier.Key] = identifier
		}

		// results must line up with keys
		for i, key := range keys {
			if identifier, ok := byKey[key.String()]; ok {
				found := identifier
				results[i] = &dataloader.Result{Data: &found}
			} else {
				results[i] = &dataloader.Result{Data: nil}
			}
		}
		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(wait))

	return &IdentifierLoader{Loader: loader}
}

// Resolve returns the identifier stored under key, or nil when none exists.
func (l *IdentifierLoader) Resolve(ctx context.Context, key string) (*domain.Identifier, error) {
	data, err := l.Loader.Load(ctx, dataloader.StringKey(key))()
	if err != nil {
		return nil, err
	}
	identifier, ok := data.(*domain.Identifier)
	if !ok || identifier == nil {
		return nil, nil
	}
	return identifier, nil
}
