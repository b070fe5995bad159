package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	domain "github.com/packhouse/api/internal/domain"
)

const (
	exportContentType      = "text/csv"
	defaultExportURLExpiry = 15 * time.Minute
)

// ErrExportStoreMissing indicates the object store dependency is absent.
var ErrExportStoreMissing = errors.New("export service: store is not configured")

// ExportStore persists export artifacts and issues download links for them.
type ExportStore interface {
	WriteObject(ctx context.Context, objectPath string, contentType string, data []byte) error
	SignedDownloadURL(ctx context.Context, objectPath string, expiresIn time.Duration, disposition string) (string, time.Time, error)
}

// ExportServiceDeps bundles collaborators required to construct an export service.
type ExportServiceDeps struct {
	Plans     PlanService
	Store     ExportStore
	URLExpiry time.Duration
	Clock     func() time.Time
}

type exportService struct {
	plans     PlanService
	store     ExportStore
	urlExpiry time.Duration
	clock     func() time.Time
}

var _ ExportService = (*exportService)(nil)

// NewExportService constructs the export service with the supplied dependencies.
func NewExportService(deps ExportServiceDeps) (ExportService, error) {
	if deps.Plans == nil {
		return nil, errors.New("export service: plan service is required")
	}
	if deps.Store == nil {
		return nil, ErrExportStoreMissing
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	urlExpiry := deps.URLExpiry
	if urlExpiry <= 0 {
		urlExpiry = defaultExportURLExpiry
	}
	return &exportService{
		plans:     deps.Plans,
		store:     deps.Store,
		urlExpiry: urlExpiry,
		clock:     func() time.Time { return clock().UTC() },
	}, nil
}

func (s *exportService) ExportPlanCSV(ctx context.Context, cmd ExportPlanCommand) (ExportResult, error) {
	planID := strings.TrimSpace(cmd.PlanID)
	if planID == "" {
		return ExportResult{}, errors.New("export service: plan id is required")
	}

	plan, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return ExportResult{}, err
	}

	data, err := renderPlanCSV(plan)
	if err != nil {
		return ExportResult{}, fmt.Errorf("export service: render csv: %w", err)
	}

	objectPath := fmt.Sprintf("exports/%s/packing-plan.csv", plan.ID)
	if err := s.store.WriteObject(ctx, objectPath, exportContentType, data); err != nil {
		return ExportResult{}, fmt.Errorf("export service: store object: %w", err)
	}

	disposition := fmt.Sprintf("attachment; filename=%q", "packing-plan-"+plan.ID+".csv")
	url, expiresAt, err := s.store.SignedDownloadURL(ctx, objectPath, s.urlExpiry, disposition)
	if err != nil {
		return ExportResult{}, fmt.Errorf("export service: sign url: %w", err)
	}

	return ExportResult{
		PlanID:     plan.ID,
		ObjectPath: objectPath,
		URL:        url,
		ExpiresAt:  expiresAt,
	}, nil
}

var exportHeader = []string{
	"Name", "Weight", "Qty", "FNSKU", "M.R.P", "Packet Size", "Packet Used", "ASIN", "FSSAI", "Status",
}

func renderPlanCSV(plan domain.PackingPlan) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, row := range plan.Rows {
		record := []string{
			row.DisplayName,
			row.Weight,
			strconv.Itoa(row.Quantity),
			row.FulfillmentCode,
			row.MRP,
			row.PacketSize,
			row.PacketUsed,
			row.Identifier,
			row.RegulatoryCode,
			string(row.Status),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
