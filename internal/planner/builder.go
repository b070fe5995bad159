package planner

import (
	"context"

	"golang.org/x/sync/errgroup"

	domain "github.com/packhouse/api/internal/domain"
)

// Plan is the result of resolving one batch of order lines: the aggregated
// physical rows plus every diagnostic issue, one entry per occurrence.
type Plan struct {
	Rows   []domain.PhysicalRow
	Issues []domain.MissingIssue
}

// BuildOptions tunes plan construction. A Parallelism above one fans line
// resolution out across that many goroutines; results are always re-ordered
// by original input index before aggregation, so the output is identical to
// the sequential build.
type BuildOptions struct {
	Parallelism int
}

type lineResult struct {
	rows   []domain.PhysicalRow
	issues []domain.MissingIssue
}

// BuildPlan builds the index once, resolves every order line against it, and
// aggregates the resulting rows. The only error it returns is a catalog-load
// failure (ErrCatalogLoad) or context cancellation; every per-line anomaly is
// reported through the plan's issues instead.
func BuildPlan(ctx context.Context, lines []domain.OrderLine, products []domain.CatalogProduct, opts BuildOptions) (Plan, error) {
	idx, err := BuildIndex(products)
	if err != nil {
		return Plan{}, err
	}

	results := make([]lineResult, len(lines))

	if opts.Parallelism > 1 && len(lines) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Parallelism)
		for i, line := range lines {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				rows, issues := ResolveLine(line, idx)
				results[i] = lineResult{rows: rows, issues: issues}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return Plan{}, err
		}
	} else {
		for i, line := range lines {
			if err := ctx.Err(); err != nil {
				return Plan{}, err
			}
			rows, issues := ResolveLine(line, idx)
			results[i] = lineResult{rows: rows, issues: issues}
		}
	}

	var plan Plan
	for _, res := range results {
		plan.Rows = append(plan.Rows, res.rows...)
		plan.Issues = append(plan.Issues, res.issues...)
	}
	plan.Rows = AggregateRows(plan.Rows)
	return plan, nil
}
