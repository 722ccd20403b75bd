package window

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/emperorhan/revision-indexer/internal/domain/model"
	"github.com/emperorhan/revision-indexer/internal/metrics"
	"github.com/emperorhan/revision-indexer/internal/store"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrInsufficientHistory means the target or its immediate past could not
	// be located. Callers report unknown flags rather than failing.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrStoreUnavailable wraps any revision store failure during a build.
	ErrStoreUnavailable = errors.New("store unavailable")
)

const (
	DefaultRadius = 15
	DefaultWindow = 48 * time.Hour
)

type Config struct {
	Radius int
	Window time.Duration
}

// Builder assembles the revision window around a target revision.
type Builder struct {
	store  store.RevisionStore
	radius int
	window time.Duration
	logger *slog.Logger
}

func NewBuilder(s store.RevisionStore, cfg Config, logger *slog.Logger) *Builder {
	if cfg.Radius < 0 {
		cfg.Radius = 0
	}
	if cfg.Window < 0 {
		cfg.Window = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		store:  s,
		radius: cfg.Radius,
		window: cfg.Window,
		logger: logger.With("component", "window_builder"),
	}
}

func (b *Builder) Radius() int { return b.radius }

// Build returns up to radius revisions on each side of revID. The past side is
// count-bounded only; the future side is also bounded to revisions saved
// within the configured window after the target.
func (b *Builder) Build(ctx context.Context, revID int64) (model.Window, error) {
	start := time.Now()
	defer func() { metrics.WindowBuildLatency.Observe(time.Since(start).Seconds()) }()

	target, err := b.store.FetchOne(ctx, revID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Window{}, fmt.Errorf("%w: revision %d not found", ErrInsufficientHistory, revID)
	}
	if err != nil {
		return model.Window{}, storeFailure("fetch target", err)
	}

	w := model.Window{Target: target}
	if b.radius == 0 {
		metrics.WindowSize.Observe(1)
		return w, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		past, err := b.fetchPast(gctx, target)
		if err != nil {
			return err
		}
		w.Past = past
		return nil
	})
	g.Go(func() error {
		future, err := b.fetchFuture(gctx, target)
		if err != nil {
			return err
		}
		w.Future = future
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.Window{}, err
	}

	metrics.WindowSize.Observe(float64(w.Len()))
	b.logger.Debug("window built",
		"rev_id", revID,
		"page_id", target.PageID,
		"past", len(w.Past),
		"future", len(w.Future),
	)
	return w, nil
}

// fetchPast asks for the target itself plus radius older revisions so that
// a page history that does not contain the target is detected.
func (b *Builder) fetchPast(ctx context.Context, target model.Revision) ([]model.Revision, error) {
	rows, err := b.store.FetchOlder(ctx, target.PageID, target.ID+1, b.radius+1)
	if err != nil {
		return nil, storeFailure("fetch past", err)
	}
	if len(rows) == 0 || rows[0].ID != target.ID {
		return nil, fmt.Errorf("%w: revision %d missing from page %d history", ErrInsufficientHistory, target.ID, target.PageID)
	}

	rows = rows[1:]
	past := make([]model.Revision, len(rows))
	for i, rev := range rows {
		past[len(rows)-1-i] = rev
	}
	return past, nil
}

func (b *Builder) fetchFuture(ctx context.Context, target model.Revision) ([]model.Revision, error) {
	notAfter := target.Timestamp.Add(b.window)
	rows, err := b.store.FetchNewer(ctx, target.PageID, target.ID, b.radius, notAfter)
	if err != nil {
		return nil, storeFailure("fetch future", err)
	}

	future := make([]model.Revision, 0, len(rows))
	for _, rev := range rows {
		if len(future) == b.radius {
			break
		}
		if rev.ID <= target.ID || rev.Timestamp.After(notAfter) {
			continue
		}
		future = append(future, rev)
	}
	return future, nil
}

func storeFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}
