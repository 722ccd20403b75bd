package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emperorhan/revision-indexer/internal/domain/model"
	"github.com/emperorhan/revision-indexer/internal/metrics"
	"github.com/emperorhan/revision-indexer/internal/pipeline/retry"
)

// RetryingStore retries transient failures of the wrapped store and marks
// exhausted or terminal I/O failures with ErrUnavailable.
type RetryingStore struct {
	next   RevisionStore
	policy retry.Policy
}

var _ RevisionStore = (*RetryingStore)(nil)

func WithRetry(next RevisionStore, policy retry.Policy) *RetryingStore {
	if policy.OnRetry == nil {
		policy.OnRetry = func(stage string, _ int, _ error) {
			metrics.StoreRetriesTotal.WithLabelValues(stage).Inc()
		}
	}
	return &RetryingStore{next: next, policy: policy}
}

func (s *RetryingStore) FetchOne(ctx context.Context, revID int64) (model.Revision, error) {
	var rev model.Revision
	err := s.policy.Do(ctx, "store.fetch_one", func(ctx context.Context) error {
		var err error
		rev, err = s.next.FetchOne(ctx, revID)
		if errors.Is(err, ErrNotFound) {
			return retry.Terminal(err)
		}
		return err
	})
	if err != nil {
		return model.Revision{}, unavailable(err)
	}
	return rev, nil
}

func (s *RetryingStore) FetchOlder(ctx context.Context, pageID, beforeID int64, limit int) ([]model.Revision, error) {
	var revs []model.Revision
	err := s.policy.Do(ctx, "store.fetch_older", func(ctx context.Context) error {
		var err error
		revs, err = s.next.FetchOlder(ctx, pageID, beforeID, limit)
		return err
	})
	if err != nil {
		return nil, unavailable(err)
	}
	return revs, nil
}

func (s *RetryingStore) FetchNewer(ctx context.Context, pageID, afterID int64, limit int, notAfter time.Time) ([]model.Revision, error) {
	var revs []model.Revision
	err := s.policy.Do(ctx, "store.fetch_newer", func(ctx context.Context) error {
		var err error
		revs, err = s.next.FetchNewer(ctx, pageID, afterID, limit, notAfter)
		return err
	})
	if err != nil {
		return nil, unavailable(err)
	}
	return revs, nil
}

// unavailable tags I/O failures; not-found and cancellation pass through unchanged.
func unavailable(err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
