package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/emperorhan/revision-indexer/internal/domain/model"
	"github.com/emperorhan/revision-indexer/internal/pipeline"
	"github.com/emperorhan/revision-indexer/internal/recordio"
)

type importRevisionsOptions struct {
	input     string
	batchSize int
	migrate   bool
}

func newImportRevisionsCmd(a *app) *cobra.Command {
	opts := &importRevisionsOptions{}
	cmd := &cobra.Command{
		Use:   "import-revisions",
		Short: "Load revision metadata into the revision store",
		Long: `Reads rows with a header naming rev_id, rev_page, rev_timestamp and
rev_sha1 and upserts them in batches. Timestamps are either 14-digit UTC
(20150601120000) or RFC 3339. A NULL sha1 is stored as unknown content.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("batch-size") {
				a.cfg.Pipeline.ImportBatchSize = opts.batchSize
			}
			return a.runImportRevisions(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.input, "input", "-", "revision metadata file, - for stdin")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", 1000, "rows per transaction")
	cmd.Flags().BoolVar(&opts.migrate, "migrate", true, "apply schema migrations before importing")
	return cmd
}

func (a *app) runImportRevisions(ctx context.Context, opts *importRevisionsOptions) error {
	in, err := a.openInput(opts.input)
	if err != nil {
		return err
	}
	defer in.Close()

	reader, err := recordio.NewHistoryReader(in)
	if err != nil {
		return err
	}

	rt, err := a.openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close(ctx, a.logger)

	if opts.migrate {
		if err := rt.db.RunMigrations(ctx); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	health := pipeline.NewPipelineHealth("import-revisions")
	health.SetStatus(pipeline.HealthStatusHealthy)

	var total int
	err = a.serve(ctx, rt, health, func(ctx context.Context) error {
		var runErr error
		total, runErr = reader.Batches(ctx, a.cfg.Pipeline.ImportBatchSize, func(ctx context.Context, revs []model.Revision) error {
			start := time.Now()
			n, err := rt.revisions.BulkUpsert(ctx, revs)
			if err != nil {
				health.RecordFailure()
				return fmt.Errorf("upsert batch starting at rev %d: %w", revs[0].ID, err)
			}
			health.RecordSuccess(time.Since(start))
			a.logger.Debug("imported batch", "rows", n, "first_rev_id", revs[0].ID)
			return nil
		})
		return runErr
	})
	if err != nil {
		return err
	}
	health.SetStatus(pipeline.HealthStatusFinished)

	a.logger.Info("import-revisions finished", "rows", total)
	return nil
}
