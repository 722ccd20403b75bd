package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/emperorhan/revision-indexer/internal/domain/model"
	"github.com/emperorhan/revision-indexer/internal/metrics"
	"github.com/emperorhan/revision-indexer/internal/pipeline/annotator"
	"github.com/emperorhan/revision-indexer/internal/pipeline/revertdetector"
	"github.com/emperorhan/revision-indexer/internal/pipeline/window"
	"github.com/emperorhan/revision-indexer/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
)

const tracerName = "revision-indexer/pipeline"

// WindowBuilder is satisfied by *window.Builder.
type WindowBuilder interface {
	Build(ctx context.Context, revID int64) (model.Window, error)
	Radius() int
}

// Labeler answers one revert-status query end to end.
type Labeler struct {
	builder   WindowBuilder
	annotator *annotator.Annotator
	logger    *slog.Logger
}

// NewLabeler wires the query stages. A nil annotator leaves scores absent.
func NewLabeler(builder WindowBuilder, annot *annotator.Annotator, logger *slog.Logger) *Labeler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Labeler{
		builder:   builder,
		annotator: annot,
		logger:    logger.With("component", "labeler"),
	}
}

// Label returns the revert flags of revID and, when it was reverted, its
// vandalism score.
//
// A target without enough history yields unknown flags and no error. A store
// failure is returned as an error wrapping window.ErrStoreUnavailable. A
// classifier failure is logged and leaves the score nil.
func (l *Labeler) Label(ctx context.Context, revID int64) (rec model.StatusRecord, err error) {
	ctx, span := tracing.StartRevisionSpan(ctx, tracerName, "labeler.Label", revID)
	start := time.Now()
	outcome := metrics.OutcomeLabeled
	defer func() {
		tracing.EndSpan(span, err)
		metrics.LabelQueriesTotal.WithLabelValues(outcome).Inc()
		metrics.LabelLatency.Observe(time.Since(start).Seconds())
	}()

	w, err := l.builder.Build(ctx, revID)
	if errors.Is(err, window.ErrInsufficientHistory) {
		outcome = metrics.OutcomeInsufficientHistory
		l.logger.Debug("insufficient history", "rev_id", revID, "reason", err)
		span.SetAttributes(attribute.Bool("revision.insufficient_history", true))
		unknown := model.UnknownStatus()
		return model.StatusRecord{RevID: revID, Reverting: unknown.Reverting, Reverted: unknown.Reverted}, nil
	}
	if err != nil {
		outcome = metrics.OutcomeStoreUnavailable
		return model.StatusRecord{}, fmt.Errorf("label revision %d: %w", revID, err)
	}

	status, reverts := revertdetector.WindowStatus(w, l.builder.Radius())
	metrics.RevertEventsDetected.Add(float64(len(reverts)))
	span.SetAttributes(
		attribute.Int64("revision.page_id", w.Target.PageID),
		attribute.Int("window.size", w.Len()),
		attribute.Int("window.reverts", len(reverts)),
		attribute.String("revision.reverting", status.Reverting.String()),
		attribute.String("revision.reverted", status.Reverted.String()),
	)

	rec = model.StatusRecord{RevID: revID, Reverting: status.Reverting, Reverted: status.Reverted}
	if l.annotator != nil {
		score, aerr := l.annotator.Annotate(ctx, revID, status)
		if aerr != nil {
			outcome = metrics.OutcomeClassifierUnavailable
			span.RecordError(aerr)
			l.logger.Warn("score unavailable; keeping flags", "rev_id", revID, "error", aerr)
		}
		rec.Score = score
	}

	metrics.RevisionFlagsTotal.WithLabelValues("reverting", status.Reverting.String()).Inc()
	metrics.RevisionFlagsTotal.WithLabelValues("reverted", status.Reverted.String()).Inc()
	return rec, nil
}
