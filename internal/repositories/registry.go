package repositories

import (
	"context"
	"errors"
)

// RegistryDeps lists the repository implementations assembled into a Registry.
// Closers run in order during Close; a nil closer is skipped.
type RegistryDeps struct {
	CatalogSource    CatalogSourceRepository
	CatalogSnapshots CatalogSnapshotRepository
	Plans            PlanRepository
	Health           HealthRepository
	Closers          []func(ctx context.Context) error
}

type staticRegistry struct {
	source    CatalogSourceRepository
	snapshots CatalogSnapshotRepository
	plans     PlanRepository
	health    HealthRepository
	closers   []func(ctx context.Context) error
}

var _ Registry = (*staticRegistry)(nil)

// NewRegistry bundles concrete repositories behind the Registry interface.
// The catalog source, snapshot store, and plan store are required.
func NewRegistry(deps RegistryDeps) (Registry, error) {
	if deps.CatalogSource == nil {
		return nil, errors.New("registry: catalog source repository is required")
	}
	if deps.CatalogSnapshots == nil {
		return nil, errors.New("registry: catalog snapshot repository is required")
	}
	if deps.Plans == nil {
		return nil, errors.New("registry: plan repository is required")
	}
	return &staticRegistry{
		source:    deps.CatalogSource,
		snapshots: deps.CatalogSnapshots,
		plans:     deps.Plans,
		health:    deps.Health,
		closers:   deps.Closers,
	}, nil
}

func (r *staticRegistry) CatalogSource() CatalogSourceRepository {
	return r.source
}

func (r *staticRegistry) CatalogSnapshots() CatalogSnapshotRepository {
	return r.snapshots
}

func (r *staticRegistry) Plans() PlanRepository {
	return r.plans
}

func (r *staticRegistry) Health() HealthRepository {
	return r.health
}

func (r *staticRegistry) Close(ctx context.Context) error {
	var firstErr error
	for _, closer := range r.closers {
		if closer == nil {
			continue
		}
		if err := closer(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
