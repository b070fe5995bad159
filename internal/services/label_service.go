package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/packhouse/api/internal/domain"
)

// ErrLabelNoRows indicates the plan has no rows that can carry a label.
var ErrLabelNoRows = errors.New("label service: plan has no printable rows")

// LabelRenderer draws a sheet of packet labels for the given rows.
type LabelRenderer interface {
	Render(rows []domain.PhysicalRow) ([]byte, error)
}

// LabelServiceDeps bundles collaborators required to construct a label service.
type LabelServiceDeps struct {
	Plans    PlanService
	Renderer LabelRenderer
	Clock    func() time.Time
}

type labelService struct {
	plans    PlanService
	renderer LabelRenderer
	clock    func() time.Time
}

var _ LabelService = (*labelService)(nil)

// NewLabelService constructs the label service with the supplied dependencies.
func NewLabelService(deps LabelServiceDeps) (LabelService, error) {
	if deps.Plans == nil {
		return nil, errors.New("label service: plan service is required")
	}
	if deps.Renderer == nil {
		return nil, errors.New("label service: renderer is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &labelService{
		plans:    deps.Plans,
		renderer: deps.Renderer,
		clock:    func() time.Time { return clock().UTC() },
	}, nil
}

func (s *labelService) RenderLabels(ctx context.Context, planID string) (LabelSheet, error) {
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return LabelSheet{}, errors.New("label service: plan id is required")
	}

	plan, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return LabelSheet{}, err
	}

	// Placeholder rows for unknown identifiers have nothing worth printing.
	rows := make([]domain.PhysicalRow, 0, len(plan.Rows))
	for _, row := range plan.Rows {
		if row.Status == domain.RowStatusMissingFromCatalog {
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return LabelSheet{}, ErrLabelNoRows
	}

	png, err := s.renderer.Render(rows)
	if err != nil {
		return LabelSheet{}, fmt.Errorf("label service: render: %w", err)
	}

	return LabelSheet{
		PlanID:      plan.ID,
		PNG:         png,
		LabelCount:  len(rows),
		RenderedAt:  s.clock(),
		ContentType: "image/png",
	}, nil
}
