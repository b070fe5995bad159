package repositories

import (
	"context"
	"time"

	domain "github.com/packhouse/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	CatalogSource() CatalogSourceRepository
	CatalogSnapshots() CatalogSnapshotRepository
	Plans() PlanRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CatalogSourceRepository fetches the master catalog from its system of record.
// Implementations return rows in source order; the planner relies on that order
// for identifier precedence and variant selection.
type CatalogSourceRepository interface {
	FetchProducts(ctx context.Context) ([]domain.CatalogProduct, error)
	SourceName() string
}

// CatalogSnapshotRepository persists the most recent successfully fetched
// catalog so plan builds survive source outages.
type CatalogSnapshotRepository interface {
	Save(ctx context.Context, snapshot domain.CatalogSnapshot) error
	Latest(ctx context.Context) (domain.CatalogSnapshot, error)
}

// PlanRepository stores resolved packing plans for later retrieval and export.
type PlanRepository interface {
	Insert(ctx context.Context, plan domain.PackingPlan) error
	FindByID(ctx context.Context, planID string) (domain.PackingPlan, error)
	List(ctx context.Context, filter PlanListFilter) (domain.CursorPage[domain.PackingPlan], error)
}

// PlanListFilter narrows and pages plan listings. Plans are always returned
// newest first.
type PlanListFilter struct {
	CreatedBy    string
	CreatedAfter *time.Time
	Pagination   domain.Pagination
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
