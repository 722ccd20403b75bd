// Package quality compares article-quality predictions at the start and end
// of page history periods.
package quality

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/emperorhan/revision-indexer/internal/classifier"
	"github.com/emperorhan/revision-indexer/internal/domain/model"
	"github.com/emperorhan/revision-indexer/internal/metrics"
	"github.com/emperorhan/revision-indexer/internal/store"
)

// ClassValues weights each assessment class for WeightedSum.
var ClassValues = map[string]float64{
	"FA":    5,
	"GA":    4,
	"B":     3,
	"C":     2,
	"Start": 1,
	"Stub":  0,
}

// ErrNoPreviousRevision is returned when a period starts at the first
// revision of its page.
var ErrNoPreviousRevision = errors.New("no revision before period start")

const (
	outcomeWritten = "written"
	outcomeMissing = "missing_previous"
	outcomeFailed  = "failed"
)

// WeightedSum collapses a class distribution into one number. Classes
// without a weight contribute nothing.
func WeightedSum(probabilities map[string]float64) float64 {
	var sum float64
	for class, p := range probabilities {
		sum += p * ClassValues[class]
	}
	return sum
}

// PeriodSource yields periods until io.EOF.
type PeriodSource interface {
	Next() (model.ArticlePeriod, error)
}

// RecordSink receives one row per scored period.
type RecordSink interface {
	Write(model.QualityRecord) error
}

// Summary counts period outcomes of one run.
type Summary struct {
	Read    int
	Written int
	Missing int
	Failed  int
}

type Runner struct {
	store  store.RevisionStore
	scorer classifier.QualityScorer
	logger *slog.Logger
}

func NewRunner(revisions store.RevisionStore, scorer classifier.QualityScorer, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		store:  revisions,
		scorer: scorer,
		logger: logger.With("component", "quality"),
	}
}

// Score builds the quality record of a single period.
func (r *Runner) Score(ctx context.Context, period model.ArticlePeriod) (model.QualityRecord, error) {
	older, err := r.store.FetchOlder(ctx, period.PageID, period.StartRevID, 1)
	if err != nil {
		return model.QualityRecord{}, fmt.Errorf("fetch revision before %d: %w", period.StartRevID, err)
	}
	if len(older) == 0 {
		return model.QualityRecord{}, ErrNoPreviousRevision
	}
	prevID := older[0].ID

	prev, err := r.scorer.ScoreQuality(ctx, prevID)
	if err != nil {
		return model.QualityRecord{}, fmt.Errorf("score previous revision %d: %w", prevID, err)
	}
	end, err := r.scorer.ScoreQuality(ctx, period.EndRevID)
	if err != nil {
		return model.QualityRecord{}, fmt.Errorf("score end revision %d: %w", period.EndRevID, err)
	}

	return model.QualityRecord{
		PageID:          period.PageID,
		PrevRevID:       prevID,
		PrevPrediction:  prev.Prediction,
		PrevWeightedSum: WeightedSum(prev.Probabilities),
		EndRevID:        period.EndRevID,
		EndPrediction:   end.Prediction,
		EndWeightedSum:  WeightedSum(end.Probabilities),
	}, nil
}

// Run scores every period from src. A period that cannot be scored is logged
// and skipped; read errors, sink errors and cancellation stop the run.
func (r *Runner) Run(ctx context.Context, src PeriodSource, sink RecordSink) (Summary, error) {
	var sum Summary
	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		period, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sum, fmt.Errorf("read period: %w", err)
		}
		sum.Read++

		rec, err := r.Score(ctx, period)
		switch {
		case errors.Is(err, ErrNoPreviousRevision):
			sum.Missing++
			metrics.QualityPeriodsTotal.WithLabelValues(outcomeMissing).Inc()
			r.logger.Debug("period has no previous revision",
				"page_id", period.PageID, "start_rev_id", period.StartRevID)
			continue
		case err != nil:
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			sum.Failed++
			metrics.QualityPeriodsTotal.WithLabelValues(outcomeFailed).Inc()
			r.logger.Warn("skip period",
				"page_id", period.PageID,
				"start_rev_id", period.StartRevID,
				"end_rev_id", period.EndRevID,
				"error", err,
			)
			continue
		}

		if err := sink.Write(rec); err != nil {
			return sum, fmt.Errorf("write period of page %d: %w", period.PageID, err)
		}
		sum.Written++
		metrics.QualityPeriodsTotal.WithLabelValues(outcomeWritten).Inc()
	}
	return sum, nil
}
