package orchestrator

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/setflow/callsheet-cli/internal/model"
)

// ExtractBatch fans the pipeline out over several documents. Each document
// runs in isolation: one failure never aborts another, and the report
// carries both counts and per-document outcomes in input order.
func (o *Orchestrator) ExtractBatch(ctx context.Context, inputs []Input, opts Options) *model.BatchReport {
	report := &model.BatchReport{}
	results := make([]model.DocumentResult, len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.batchLimit)

	for i, in := range inputs {
		g.Go(func() error {
			extraction, err := o.Extract(ctx, in, opts)
			results[i] = model.DocumentResult{
				Source:     in.Source(),
				Extraction: extraction,
				Err:        err,
			}
			if err != nil {
				zap.L().Warn("batch: document failed",
					zap.String("source", in.Source()),
					zap.Error(err),
				)
			}
			return nil
		})
	}

	// Workers never return errors; Wait only observes completion.
	_ = g.Wait()

	for _, res := range results {
		report.Add(res)
	}
	return report
}
