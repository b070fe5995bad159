package services

import (
	"context"
	"time"

	domain "github.com/packhouse/api/internal/domain"
	"github.com/packhouse/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	CatalogProduct     = domain.CatalogProduct
	CatalogSnapshot    = domain.CatalogSnapshot
	OrderLine          = domain.OrderLine
	PhysicalRow        = domain.PhysicalRow
	MissingIssue       = domain.MissingIssue
	PackingPlan        = domain.PackingPlan
	SystemHealthReport = domain.SystemHealthReport
)

// CatalogService owns catalog access: fetching from the source of record,
// caching the result, and falling back to the last good snapshot.
type CatalogService interface {
	// Snapshot returns the current catalog, refreshing from the source when the
	// cached copy is older than the configured max age.
	Snapshot(ctx context.Context) (CatalogSnapshot, error)
	// Refresh forces a fetch from the source and persists the result.
	Refresh(ctx context.Context) (CatalogSnapshot, error)
}

// PlanService resolves submitted order lines into persisted packing plans.
type PlanService interface {
	CreatePlan(ctx context.Context, cmd CreatePlanCommand) (PackingPlan, error)
	GetPlan(ctx context.Context, planID string) (PackingPlan, error)
	ListPlans(ctx context.Context, filter PlanListFilter) (domain.CursorPage[PackingPlan], error)
}

// ExportService renders a plan as CSV, stores it, and returns a download link.
type ExportService interface {
	ExportPlanCSV(ctx context.Context, cmd ExportPlanCommand) (ExportResult, error)
}

// LabelService renders printable packet labels for a plan's ready rows.
type LabelService interface {
	RenderLabels(ctx context.Context, planID string) (LabelSheet, error)
}

// SystemService aggregates utility endpoints (health checks, build metadata).
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// IssuePublisher forwards plan diagnostics to downstream consumers.
type IssuePublisher interface {
	PublishIssueEvent(ctx context.Context, event PlanIssueEvent) (string, error)
}

// Command and DTO definitions ------------------------------------------------

// PlanLineInput is one submitted order line before quantity parsing. Quantity
// stays textual here so lenient parsing happens in exactly one place.
type PlanLineInput struct {
	Identifier string
	Quantity   string
}

// CreatePlanCommand carries one plan resolution request.
type CreatePlanCommand struct {
	Lines     []PlanLineInput
	CreatedBy string
	Source    string
	Note      string
}

// PlanListFilter narrows and pages plan listings.
type PlanListFilter struct {
	CreatedBy    string
	CreatedAfter *time.Time
	Pagination   Pagination
}

// ExportPlanCommand selects the plan to export and who asked for it.
type ExportPlanCommand struct {
	PlanID      string
	RequestedBy string
}

// ExportResult describes the stored CSV object and its signed download URL.
type ExportResult struct {
	PlanID     string
	ObjectPath string
	URL        string
	ExpiresAt  time.Time
}

// LabelSheet is a rendered PNG containing one label per ready plan row.
type LabelSheet struct {
	PlanID      string
	PNG         []byte
	LabelCount  int
	RenderedAt  time.Time
	ContentType string
}

// PlanIssueEvent is the message published for each diagnostic issue of a
// freshly created plan.
type PlanIssueEvent struct {
	PlanID      string    `json:"planId"`
	Kind        string    `json:"kind"`
	Identifier  string    `json:"identifier,omitempty"`
	ProductName string    `json:"productName,omitempty"`
	SplitInfo   string    `json:"splitInfo,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	Quantity    int       `json:"quantity"`
	CreatedAt   time.Time `json:"createdAt"`
}

// BuildInfo captures runtime metadata exposed via health endpoints.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// Shared filter conversion helpers -------------------------------------------

func toRepositoryPlanFilter(filter PlanListFilter) repositories.PlanListFilter {
	return repositories.PlanListFilter{
		CreatedBy:    filter.CreatedBy,
		CreatedAfter: filter.CreatedAfter,
		Pagination:   filter.Pagination,
	}
}
