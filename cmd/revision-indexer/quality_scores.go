package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/emperorhan/revision-indexer/internal/pipeline"
	"github.com/emperorhan/revision-indexer/internal/quality"
	"github.com/emperorhan/revision-indexer/internal/recordio"
)

type qualityScoresOptions struct {
	periods string
	output  string
}

func newQualityScoresCmd(a *app) *cobra.Command {
	opts := &qualityScoresOptions{}
	cmd := &cobra.Command{
		Use:   "quality-scores",
		Short: "Compare article quality before and at the end of page periods",
		Long: `Reads periods with a header naming page_id, start_rev_id and end_rev_id.
For each period the revision just before start_rev_id and the end revision are
scored with the wp10 model and written with their weighted class sums.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runQualityScores(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.periods, "periods", "-", "period input file, - for stdin")
	cmd.Flags().StringVar(&opts.output, "output", "-", "quality output file, - for stdout")
	return cmd
}

func (a *app) runQualityScores(ctx context.Context, opts *qualityScoresOptions) error {
	if a.cfg.Classifier.URL == "" {
		return errors.New("quality-scores requires CLASSIFIER_URL")
	}

	in, err := a.openInput(opts.periods)
	if err != nil {
		return err
	}
	defer in.Close()

	periods, err := recordio.NewPeriodReader(in)
	if err != nil {
		return err
	}

	out, err := a.openOutput(opts.output)
	if err != nil {
		return err
	}
	defer out.Close()

	writer, err := recordio.NewQualityWriter(out)
	if err != nil {
		return err
	}

	rt, err := a.openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx, a.logger)

	client, err := a.newClassifier(ctx, rt, "quality-scores")
	if err != nil {
		return err
	}
	runner := quality.NewRunner(rt.store, client, a.logger)

	health := pipeline.NewPipelineHealth("quality-scores")
	health.SetStatus(pipeline.HealthStatusHealthy)

	var sum quality.Summary
	err = a.serve(ctx, rt, health, func(ctx context.Context) error {
		var runErr error
		sum, runErr = runner.Run(ctx, periods, writer)
		return runErr
	})
	flushErr := flushAll(writer)
	if err != nil {
		return err
	}
	if flushErr != nil {
		return flushErr
	}
	health.SetStatus(pipeline.HealthStatusFinished)

	a.logger.Info("quality-scores finished",
		"read", sum.Read,
		"written", sum.Written,
		"missing_previous", sum.Missing,
		"failed", sum.Failed,
	)
	return nil
}
