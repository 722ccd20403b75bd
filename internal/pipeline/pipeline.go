package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/emperorhan/revision-indexer/internal/alert"
	"github.com/emperorhan/revision-indexer/internal/domain/model"
	"github.com/emperorhan/revision-indexer/internal/metrics"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultWorkers = 4

	progressEvery = 1000

	alertTimeout = 10 * time.Second
)

// RevisionLabeler is satisfied by *Labeler.
type RevisionLabeler interface {
	Label(ctx context.Context, revID int64) (model.StatusRecord, error)
}

// LabelFunc adapts a function to RevisionLabeler.
type LabelFunc func(ctx context.Context, revID int64) (model.StatusRecord, error)

func (f LabelFunc) Label(ctx context.Context, revID int64) (model.StatusRecord, error) {
	return f(ctx, revID)
}

// RecordSink receives labeled records from a single goroutine.
type RecordSink interface {
	Write(rec model.StatusRecord) error
}

// FailureSink receives the revisions whose query failed.
type FailureSink interface {
	WriteFailure(revID int64, cause error) error
}

type Config struct {
	Workers int
	// Ordered restores input order before the sink. Otherwise records are
	// written as queries complete.
	Ordered  bool
	Failures FailureSink
	Health   *PipelineHealth
	// Alerter is told when the run turns unhealthy and when it recovers.
	Alerter alert.Alerter
}

// Summary counts the outcomes of one run.
type Summary struct {
	RunID     string
	Processed int
	Written   int
	Unknown   int
	Reverting int
	Reverted  int
	Scored    int
	Failed    int
	Duration  time.Duration
}

// Pipeline labels a stream of revision IDs with a bounded worker pool and a
// single sink writer. A failed query affects only its own revision.
type Pipeline struct {
	labeler  RevisionLabeler
	workers  int
	ordered  bool
	failures FailureSink
	health   *PipelineHealth
	alerter  alert.Alerter
	alerts   sync.WaitGroup
	logger   *slog.Logger
}

func New(labeler RevisionLabeler, cfg Config, logger *slog.Logger) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Health == nil {
		cfg.Health = NewPipelineHealth("revert-status")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		labeler:  labeler,
		workers:  cfg.Workers,
		ordered:  cfg.Ordered,
		failures: cfg.Failures,
		health:   cfg.Health,
		alerter:  cfg.Alerter,
		logger:   logger.With("component", "pipeline"),
	}
}

func (p *Pipeline) Health() *PipelineHealth { return p.health }

type job struct {
	seq   uint64
	revID int64
}

type result struct {
	seq     uint64
	revID   int64
	record  model.StatusRecord
	err     error
	latency time.Duration
}

// Run labels every revision ID received from src until src is closed or ctx
// is done. It returns an error only for cancellation or a sink failure;
// per-revision failures are counted in the Summary.
func (p *Pipeline) Run(ctx context.Context, src <-chan int64, sink RecordSink) (Summary, error) {
	start := time.Now()
	sum := Summary{RunID: uuid.NewString()}
	logger := p.logger.With("run_id", sum.RunID)
	logger.Info("pipeline started", "workers", p.workers, "ordered", p.ordered)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan job, p.workers)
	results := make(chan result, p.workers)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		var seq uint64
		for {
			select {
			case <-gctx.Done():
				return nil
			case revID, ok := <-src:
				if !ok {
					return nil
				}
				select {
				case jobs <- job{seq: seq, revID: revID}:
					seq++
				case <-gctx.Done():
					return nil
				}
			}
		}
	})

	var workers sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		workers.Add(1)
		g.Go(func() error {
			defer workers.Done()
			for j := range jobs {
				metrics.PipelineInFlight.Inc()
				r := p.process(gctx, j)
				metrics.PipelineInFlight.Dec()
				if r.err != nil && gctx.Err() != nil {
					return nil
				}
				select {
				case results <- r:
				case <-gctx.Done():
					return nil
				}
			}
			return nil
		})
	}
	go func() {
		workers.Wait()
		close(results)
	}()

	err := p.collect(ctx, results, sink, &sum, logger)
	if err != nil {
		cancel()
	}
	for range results {
	}
	_ = g.Wait()
	p.alerts.Wait()

	if err == nil {
		err = ctx.Err()
	}
	sum.Duration = time.Since(start)
	if err == nil {
		p.health.SetStatus(HealthStatusFinished)
	}
	logger.Info("pipeline finished",
		"processed", sum.Processed,
		"written", sum.Written,
		"unknown", sum.Unknown,
		"reverting", sum.Reverting,
		"reverted", sum.Reverted,
		"scored", sum.Scored,
		"failed", sum.Failed,
		"elapsed", sum.Duration.String(),
		"error", err,
	)
	return sum, err
}

func (p *Pipeline) process(ctx context.Context, j job) (r result) {
	r = result{seq: j.seq, revID: j.revID}
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			r.err = fmt.Errorf("label panic: %v\n%s", rec, debug.Stack())
		}
		r.latency = time.Since(start)
	}()
	r.record, r.err = p.labeler.Label(ctx, j.revID)
	return r
}

// collect is the only goroutine touching the sinks. In ordered mode
// completed results wait in pending until every earlier sequence arrived.
func (p *Pipeline) collect(ctx context.Context, results <-chan result, sink RecordSink, sum *Summary, logger *slog.Logger) error {
	pending := make(map[uint64]result)
	var next uint64
	defer metrics.PipelineReorderDepth.Set(0)

	for r := range results {
		if !p.ordered {
			if err := p.emit(r, sink, sum, logger); err != nil {
				return err
			}
			continue
		}

		pending[r.seq] = r
		for {
			nr, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			if err := p.emit(nr, sink, sum, logger); err != nil {
				return err
			}
		}
		metrics.PipelineReorderDepth.Set(float64(len(pending)))
	}
	return ctx.Err()
}

func (p *Pipeline) emit(r result, sink RecordSink, sum *Summary, logger *slog.Logger) error {
	sum.Processed++
	defer func() {
		if sum.Processed%progressEvery == 0 {
			logger.Info("pipeline progress", "processed", sum.Processed, "failed", sum.Failed, "reverted", sum.Reverted)
		}
	}()

	if r.err != nil {
		sum.Failed++
		if p.health.RecordFailure() {
			failures := p.health.Snapshot().ConsecutiveFailures
			logger.Error("pipeline unhealthy", "consecutive_failures", failures)
			p.notify(alert.Alert{
				Type:    alert.AlertTypeUnhealthy,
				RunID:   sum.RunID,
				Title:   "Revision queries failing",
				Message: fmt.Sprintf("%d consecutive revision queries failed", failures),
				Fields: map[string]string{
					"rev_id": fmt.Sprint(r.revID),
					"error":  r.err.Error(),
				},
			}, logger)
		}
		logger.Warn("revision query failed", "rev_id", r.revID, "error", r.err)
		if p.failures != nil {
			if err := p.failures.WriteFailure(r.revID, r.err); err != nil {
				return fmt.Errorf("write failure for revision %d: %w", r.revID, err)
			}
		}
		return nil
	}

	if p.health.RecordSuccess(r.latency) {
		logger.Info("pipeline recovered")
		p.notify(alert.Alert{
			Type:    alert.AlertTypeRecovery,
			RunID:   sum.RunID,
			Title:   "Revision queries recovered",
			Message: fmt.Sprintf("query for revision %d succeeded", r.revID),
		}, logger)
	}
	tally(sum, r.record)

	if err := sink.Write(r.record); err != nil {
		return fmt.Errorf("write record for revision %d: %w", r.revID, err)
	}
	sum.Written++
	metrics.PipelineRecordsWritten.Inc()
	return nil
}

// notify sends in the background so a slow alert channel never holds up the
// sink. Run waits for pending sends before returning.
func (p *Pipeline) notify(a alert.Alert, logger *slog.Logger) {
	if p.alerter == nil {
		return
	}
	a.Run = p.health.Name()
	p.alerts.Add(1)
	go func() {
		defer p.alerts.Done()
		ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
		defer cancel()
		if err := p.alerter.Send(ctx, a); err != nil {
			logger.Warn("alert delivery failed", "type", a.Type, "error", err)
		}
	}()
}

func tally(sum *Summary, rec model.StatusRecord) {
	if !rec.Reverting.IsKnown() && !rec.Reverted.IsKnown() {
		sum.Unknown++
	}
	if rec.Reverting.IsTrue() {
		sum.Reverting++
	}
	if rec.Reverted.IsTrue() {
		sum.Reverted++
	}
	if rec.Score != nil {
		sum.Scored++
	}
}

// IsCancellation reports whether err only reflects the run being stopped.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
