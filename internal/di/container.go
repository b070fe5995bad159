package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/packhouse/api/internal/platform/config"
	"github.com/packhouse/api/internal/repositories"
	"github.com/packhouse/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Catalog services.CatalogService
	Plans   services.PlanService
	Exports services.ExportService
	Labels  services.LabelService
	System  services.SystemService
}

// Dependencies carries the infrastructure collaborators that live outside the
// repository registry. Issues, Store, and Renderer are optional; the services
// that need an absent collaborator are simply not built.
type Dependencies struct {
	Registry repositories.Registry
	Issues   services.IssuePublisher
	Store    services.ExportStore
	Renderer services.LabelRenderer
	Build    services.BuildInfo
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

// Container wires repositories, services, and supporting infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring provides real
// implementations, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, deps Dependencies) (*Container, error) {
	if deps.Registry == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(ctx, cfg, deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: deps.Registry,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients and external connections.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, cfg config.Config, deps Dependencies) (Services, error) {
	var svc Services
	reg := deps.Registry

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		Source:    reg.CatalogSource(),
		Snapshots: reg.CatalogSnapshots(),
		MaxAge:    cfg.Catalog.SnapshotMaxAge,
		Clock:     time.Now,
		Logger:    deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalogSvc

	planSvc, err := services.NewPlanService(services.PlanServiceDeps{
		Catalog:     catalogSvc,
		Plans:       reg.Plans(),
		Issues:      deps.Issues,
		Parallelism: cfg.Planner.Parallelism,
		Clock:       time.Now,
		Logger:      deps.Logger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build plan service: %w", err)
	}
	svc.Plans = planSvc

	if deps.Store != nil {
		exportSvc, err := services.NewExportService(services.ExportServiceDeps{
			Plans:     planSvc,
			Store:     deps.Store,
			URLExpiry: cfg.Export.URLExpiry,
			Clock:     time.Now,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build export service: %w", err)
		}
		svc.Exports = exportSvc
	}

	if deps.Renderer != nil {
		labelSvc, err := services.NewLabelService(services.LabelServiceDeps{
			Plans:    planSvc,
			Renderer: deps.Renderer,
			Clock:    time.Now,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build label service: %w", err)
		}
		svc.Labels = labelSvc
	}

	if healthRepo := reg.Health(); healthRepo != nil {
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            time.Now,
			Build:            deps.Build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}
