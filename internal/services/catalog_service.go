package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	domain "github.com/packhouse/api/internal/domain"
	"github.com/packhouse/api/internal/repositories"
)

const defaultSnapshotMaxAge = 10 * time.Minute

var (
	// ErrCatalogSourceMissing indicates the source dependency is absent.
	ErrCatalogSourceMissing = errors.New("catalog service: source is not configured")
	// ErrCatalogUnavailable indicates neither the source nor a stored snapshot could supply the catalog.
	ErrCatalogUnavailable = errors.New("catalog service: catalog unavailable")
)

// CatalogServiceDeps bundles constructor inputs for the catalog service.
type CatalogServiceDeps struct {
	Source    repositories.CatalogSourceRepository
	Snapshots repositories.CatalogSnapshotRepository
	MaxAge    time.Duration
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type catalogService struct {
	source    repositories.CatalogSourceRepository
	snapshots repositories.CatalogSnapshotRepository
	maxAge    time.Duration
	clock     func() time.Time
	logger    func(ctx context.Context, event string, fields map[string]any)

	mu     sync.RWMutex
	cached domain.CatalogSnapshot
}

var _ CatalogService = (*catalogService)(nil)

// NewCatalogService constructs the catalog service with the supplied dependencies.
// The snapshot repository is optional; without it the service still works but
// cannot survive a source outage across restarts.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Source == nil {
		return nil, ErrCatalogSourceMissing
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	maxAge := deps.MaxAge
	if maxAge <= 0 {
		maxAge = defaultSnapshotMaxAge
	}
	return &catalogService{
		source:    deps.Source,
		snapshots: deps.Snapshots,
		maxAge:    maxAge,
		clock:     func() time.Time { return clock().UTC() },
		logger:    deps.Logger,
	}, nil
}

func (s *catalogService) Snapshot(ctx context.Context) (CatalogSnapshot, error) {
	now := s.clock()

	s.mu.RLock()
	cached := s.cached
	s.mu.RUnlock()
	if len(cached.Products) > 0 && cached.Age(now) <= s.maxAge {
		return cached, nil
	}

	snapshot, err := s.Refresh(ctx)
	if err == nil {
		return snapshot, nil
	}
	s.log(ctx, "catalog.refresh_failed", map[string]any{"error": err.Error()})

	// The source is down. Serve the in-memory copy if we have one, then the
	// persisted snapshot, regardless of age.
	if len(cached.Products) > 0 {
		return cached, nil
	}
	if s.snapshots != nil {
		stored, storedErr := s.snapshots.Latest(ctx)
		if storedErr == nil && len(stored.Products) > 0 {
			s.mu.Lock()
			s.cached = stored
			s.mu.Unlock()
			return stored, nil
		}
	}
	return CatalogSnapshot{}, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
}

func (s *catalogService) Refresh(ctx context.Context) (CatalogSnapshot, error) {
	products, err := s.source.FetchProducts(ctx)
	if err != nil {
		return CatalogSnapshot{}, err
	}

	snapshot := domain.CatalogSnapshot{
		Source:    s.source.SourceName(),
		FetchedAt: s.clock(),
		Products:  products,
	}

	s.mu.Lock()
	s.cached = snapshot
	s.mu.Unlock()

	if s.snapshots != nil {
		if err := s.snapshots.Save(ctx, snapshot); err != nil {
			// A failed persist must not fail the refresh; the fresh data is
			// already in memory.
			s.log(ctx, "catalog.snapshot_save_failed", map[string]any{"error": err.Error()})
		}
	}

	s.log(ctx, "catalog.refreshed", map[string]any{
		"source":   snapshot.Source,
		"products": len(snapshot.Products),
	})
	return snapshot, nil
}

func (s *catalogService) log(ctx context.Context, event string, fields map[string]any) {
	if s.logger != nil {
		s.logger(ctx, event, fields)
	}
}
