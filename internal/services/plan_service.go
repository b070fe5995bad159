package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/packhouse/api/internal/domain"
	"github.com/packhouse/api/internal/planner"
	"github.com/packhouse/api/internal/repositories"
)

var (
	// ErrPlanInvalidInput indicates the caller supplied an unusable plan request.
	ErrPlanInvalidInput = errors.New("plan service: invalid input")
	// ErrPlanRepositoryMissing indicates the repository dependency is absent.
	ErrPlanRepositoryMissing = errors.New("plan service: repository is not configured")
)

// PlanServiceDeps bundles collaborators required to construct a plan service.
type PlanServiceDeps struct {
	Catalog     CatalogService
	Plans       repositories.PlanRepository
	Issues      IssuePublisher
	Parallelism int
	Clock       func() time.Time
	NewID       func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type planService struct {
	catalog     CatalogService
	plans       repositories.PlanRepository
	issues      IssuePublisher
	parallelism int
	clock       func() time.Time
	newID       func() string
	sanitize    *bluemonday.Policy
	logger      func(ctx context.Context, event string, fields map[string]any)
}

var _ PlanService = (*planService)(nil)

// NewPlanService constructs the plan service with the supplied dependencies.
func NewPlanService(deps PlanServiceDeps) (PlanService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("plan service: catalog service is required")
	}
	if deps.Plans == nil {
		return nil, ErrPlanRepositoryMissing
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.NewID
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	return &planService{
		catalog:     deps.Catalog,
		plans:       deps.Plans,
		issues:      deps.Issues,
		parallelism: deps.Parallelism,
		clock:       func() time.Time { return clock().UTC() },
		newID:       newID,
		sanitize:    bluemonday.StrictPolicy(),
		logger:      deps.Logger,
	}, nil
}

func (s *planService) CreatePlan(ctx context.Context, cmd CreatePlanCommand) (PackingPlan, error) {
	lines := make([]domain.OrderLine, 0, len(cmd.Lines))
	for _, input := range cmd.Lines {
		identifier := strings.TrimSpace(input.Identifier)
		if planner.IsEmptyToken(identifier) {
			continue
		}
		lines = append(lines, domain.OrderLine{
			Identifier:  identifier,
			Quantity:    planner.ParseQuantity(input.Quantity),
			RawQuantity: strings.TrimSpace(input.Quantity),
		})
	}
	if len(lines) == 0 {
		return PackingPlan{}, fmt.Errorf("%w: no order lines with identifiers", ErrPlanInvalidInput)
	}

	snapshot, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return PackingPlan{}, fmt.Errorf("plan service: load catalog: %w", err)
	}

	result, err := planner.BuildPlan(ctx, lines, snapshot.Products, planner.BuildOptions{
		Parallelism: s.parallelism,
	})
	if err != nil {
		return PackingPlan{}, fmt.Errorf("plan service: resolve lines: %w", err)
	}

	plan := domain.PackingPlan{
		ID:        s.newID(),
		CreatedAt: s.clock(),
		CreatedBy: strings.TrimSpace(cmd.CreatedBy),
		Source:    snapshot.Source,
		Note:      s.sanitize.Sanitize(strings.TrimSpace(cmd.Note)),
		LineCount: len(lines),
		Rows:      result.Rows,
		Issues:    result.Issues,
	}
	if source := strings.TrimSpace(cmd.Source); source != "" {
		plan.Source = source
	}

	if err := s.plans.Insert(ctx, plan); err != nil {
		return PackingPlan{}, fmt.Errorf("plan service: persist plan: %w", err)
	}

	s.publishIssues(ctx, plan)
	s.log(ctx, "plan.created", map[string]any{
		"planId": plan.ID,
		"lines":  plan.LineCount,
		"rows":   len(plan.Rows),
		"issues": len(plan.Issues),
	})
	return plan, nil
}

func (s *planService) GetPlan(ctx context.Context, planID string) (PackingPlan, error) {
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return PackingPlan{}, fmt.Errorf("%w: plan id is required", ErrPlanInvalidInput)
	}
	return s.plans.FindByID(ctx, planID)
}

func (s *planService) ListPlans(ctx context.Context, filter PlanListFilter) (domain.CursorPage[PackingPlan], error) {
	filter.CreatedBy = strings.TrimSpace(filter.CreatedBy)
	filter.Pagination.PageToken = strings.TrimSpace(filter.Pagination.PageToken)
	return s.plans.List(ctx, toRepositoryPlanFilter(filter))
}

// publishIssues forwards plan diagnostics to the publisher. Delivery is best
// effort; the plan is already persisted and failures only lose the event.
func (s *planService) publishIssues(ctx context.Context, plan domain.PackingPlan) {
	if s.issues == nil || len(plan.Issues) == 0 {
		return
	}
	for _, issue := range plan.Issues {
		event := PlanIssueEvent{
			PlanID:      plan.ID,
			Kind:        string(issue.Kind),
			Identifier:  issue.Identifier,
			ProductName: issue.ProductName,
			SplitInfo:   issue.SplitInfo,
			Detail:      issue.Detail,
			Quantity:    issue.Quantity,
			CreatedAt:   plan.CreatedAt,
		}
		if _, err := s.issues.PublishIssueEvent(ctx, event); err != nil {
			s.log(ctx, "plan.issue_publish_failed", map[string]any{
				"planId": plan.ID,
				"kind":   event.Kind,
				"error":  err.Error(),
			})
		}
	}
}

func (s *planService) log(ctx context.Context, event string, fields map[string]any) {
	if s.logger != nil {
		s.logger(ctx, event, fields)
	}
}
