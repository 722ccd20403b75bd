package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/emperorhan/revision-indexer/internal/pipeline"
	"github.com/emperorhan/revision-indexer/internal/pipeline/annotator"
	"github.com/emperorhan/revision-indexer/internal/pipeline/window"
	"github.com/emperorhan/revision-indexer/internal/recordio"
)

type revertStatusOptions struct {
	radius      int
	windowHours int
	revisions   string
	output      string
	failures    string
	workers     int
	ordered     bool
	noScores    bool
}

func newRevertStatusCmd(a *app) *cobra.Command {
	opts := &revertStatusOptions{}
	cmd := &cobra.Command{
		Use:   "revert-status",
		Short: "Label revisions as reverting and reverted, scoring reverted ones",
		Long: `Reads revision IDs (one per line, optional rev_id header) and writes
rev_id, reverting, reverted and score as tab-separated rows. The score is the
classifier's revert probability and is only present for reverted revisions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.applyTo(a, cmd)
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			return a.runRevertStatus(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.radius, "radius", window.DefaultRadius, "maximum revert distance in revisions")
	f.IntVar(&opts.windowHours, "window", int(window.DefaultWindow/time.Hour), "maximum revert delay in hours")
	f.StringVar(&opts.revisions, "revisions", "-", "revision ID input file, - for stdin")
	f.StringVar(&opts.output, "output", "-", "status output file, - for stdout")
	f.StringVar(&opts.failures, "failures", "", "file for revisions whose query failed")
	f.IntVar(&opts.workers, "workers", pipeline.DefaultWorkers, "concurrent queries")
	f.BoolVar(&opts.ordered, "ordered", true, "write rows in input order")
	f.BoolVar(&opts.noScores, "no-scores", false, "skip classifier scoring of reverted revisions")
	return cmd
}

// applyTo copies explicitly set flags over the loaded configuration.
func (o *revertStatusOptions) applyTo(a *app, cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("radius") {
		a.cfg.Revert.Radius = o.radius
	}
	if f.Changed("window") {
		a.cfg.Revert.Window = time.Duration(o.windowHours) * time.Hour
	}
	if f.Changed("workers") {
		a.cfg.Pipeline.Workers = o.workers
	}
	if f.Changed("ordered") {
		a.cfg.Pipeline.Ordered = o.ordered
	}
}

func (a *app) runRevertStatus(ctx context.Context, opts *revertStatusOptions) error {
	in, err := a.openInput(opts.revisions)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := a.openOutput(opts.output)
	if err != nil {
		return err
	}
	defer out.Close()

	statusWriter, err := recordio.NewStatusWriter(out)
	if err != nil {
		return err
	}

	var failureWriter *recordio.FailureWriter
	if opts.failures != "" {
		failOut, err := a.openOutput(opts.failures)
		if err != nil {
			return err
		}
		defer failOut.Close()
		if failureWriter, err = recordio.NewFailureWriter(failOut); err != nil {
			return err
		}
	}

	rt, err := a.openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx, a.logger)

	var annot *annotator.Annotator
	if !opts.noScores && a.cfg.Classifier.URL != "" {
		client, err := a.newClassifier(ctx, rt, "revert-status")
		if err != nil {
			return err
		}
		annot = annotator.New(a.newRevertScorer(client, rt))
	}

	builder := window.NewBuilder(rt.store, window.Config{
		Radius: a.cfg.Revert.Radius,
		Window: a.cfg.Revert.Window,
	}, a.logger)
	labeler := pipeline.NewLabeler(builder, annot, a.logger)

	pcfg := pipeline.Config{
		Workers: a.cfg.Pipeline.Workers,
		Ordered: a.cfg.Pipeline.Ordered,
		Health:  pipeline.NewPipelineHealth("revert-status"),
		Alerter: rt.alerter,
	}
	if failureWriter != nil {
		pcfg.Failures = failureWriter
	}
	p := pipeline.New(labeler, pcfg, a.logger)

	a.logger.Info("revert-status started",
		"radius", a.cfg.Revert.Radius,
		"window", a.cfg.Revert.Window.String(),
		"workers", a.cfg.Pipeline.Workers,
		"ordered", a.cfg.Pipeline.Ordered,
		"scoring", annot != nil,
	)

	var sum pipeline.Summary
	err = a.serve(ctx, rt, p.Health(), func(ctx context.Context) error {
		var runErr error
		sum, runErr = feedAndRun(ctx, recordio.NewRevisionIDReader(in), p, statusWriter)
		return runErr
	})
	writers := []flusher{statusWriter}
	if failureWriter != nil {
		writers = append(writers, failureWriter)
	}
	flushErr := flushAll(writers...)
	if err != nil {
		return err
	}
	if flushErr != nil {
		return flushErr
	}

	a.logger.Info("revert-status finished",
		"run_id", sum.RunID,
		"processed", sum.Processed,
		"written", sum.Written,
		"unknown", sum.Unknown,
		"reverting", sum.Reverting,
		"reverted", sum.Reverted,
		"scored", sum.Scored,
		"failed", sum.Failed,
		"duration", sum.Duration.String(),
	)
	return nil
}

// feedAndRun streams IDs from the reader into the pipeline. A read error
// stops the run.
func feedAndRun(ctx context.Context, reader *recordio.RevisionIDReader, p *pipeline.Pipeline, sink pipeline.RecordSink) (pipeline.Summary, error) {
	g, gCtx := errgroup.WithContext(ctx)
	ids := make(chan int64, 64)

	g.Go(func() error {
		if err := reader.Feed(gCtx, ids); err != nil {
			return fmt.Errorf("read revisions: %w", err)
		}
		return nil
	})

	var sum pipeline.Summary
	g.Go(func() error {
		var err error
		sum, err = p.Run(gCtx, ids, sink)
		return err
	})

	return sum, g.Wait()
}

type flusher interface {
	Flush() error
}

func flushAll(writers ...flusher) error {
	for _, w := range writers {
		if err := w.Flush(); err != nil {
			return fmt.Errorf("flush output: %w", err)
		}
	}
	return nil
}
