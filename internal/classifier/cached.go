package classifier

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/emperorhan/revision-indexer/internal/cache"
	"github.com/emperorhan/revision-indexer/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// ScoreCache is a shared score store such as the Redis tier.
type ScoreCache interface {
	Get(ctx context.Context, model string, revID int64) (float64, bool, error)
	Set(ctx context.Context, model string, revID int64, score float64) error
}

// CachedScorer serves revert scores from an in-process LRU, then an optional
// shared cache, and only then the wrapped Scorer. Concurrent misses for the
// same revision share one upstream call. Cache failures degrade to a miss.
type CachedScorer struct {
	next   Scorer
	local  *cache.LRU[int64, float64]
	remote ScoreCache
	group  singleflight.Group
	logger *slog.Logger
}

var _ Scorer = (*CachedScorer)(nil)

// NewCachedScorer wraps next. remote may be nil.
func NewCachedScorer(next Scorer, local *cache.LRU[int64, float64], remote ScoreCache, logger *slog.Logger) *CachedScorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedScorer{
		next:   next,
		local:  local,
		remote: remote,
		logger: logger.With("component", "score_cache"),
	}
}

func (s *CachedScorer) ScoreReverted(ctx context.Context, revID int64) (float64, error) {
	if score, ok := s.local.Get(revID); ok {
		metrics.ScoreCacheLookups.WithLabelValues("local", "hit").Inc()
		return score, nil
	}
	metrics.ScoreCacheLookups.WithLabelValues("local", "miss").Inc()

	// The shared load outlives any one caller; the client bounds each
	// attempt with its own timeout.
	loadCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(strconv.FormatInt(revID, 10), func() (any, error) {
		return s.load(loadCtx, revID)
	})
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(float64), nil
	}
}

func (s *CachedScorer) load(ctx context.Context, revID int64) (float64, error) {
	if s.remote != nil {
		score, ok, err := s.remote.Get(ctx, ModelReverted, revID)
		switch {
		case err != nil:
			metrics.ScoreCacheLookups.WithLabelValues("remote", "error").Inc()
			s.logger.Warn("remote score cache read failed", "rev_id", revID, "error", err)
		case ok:
			metrics.ScoreCacheLookups.WithLabelValues("remote", "hit").Inc()
			s.local.Put(revID, score)
			return score, nil
		default:
			metrics.ScoreCacheLookups.WithLabelValues("remote", "miss").Inc()
		}
	}

	score, err := s.next.ScoreReverted(ctx, revID)
	if err != nil {
		return 0, err
	}

	s.local.Put(revID, score)
	if s.remote != nil {
		if err := s.remote.Set(ctx, ModelReverted, revID, score); err != nil {
			s.logger.Warn("remote score cache write failed", "rev_id", revID, "error", err)
		}
	}
	return score, nil
}
