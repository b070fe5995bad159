package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/packhouse/api/internal/domain"
)

type stubPlanService struct {
	plan domain.PackingPlan
	err  error
}

func (s *stubPlanService) CreatePlan(ctx context.Context, cmd CreatePlanCommand) (domain.PackingPlan, error) {
	return s.plan, s.err
}

func (s *stubPlanService) GetPlan(ctx context.Context, planID string) (domain.PackingPlan, error) {
	return s.plan, s.err
}

func (s *stubPlanService) ListPlans(ctx context.Context, filter PlanListFilter) (domain.CursorPage[domain.PackingPlan], error) {
	return domain.CursorPage[domain.PackingPlan]{}, s.err
}

type stubExportStore struct {
	objectPath  string
	contentType string
	data        []byte
	writeErr    error

	disposition string
	expiresIn   time.Duration
	url         string
	expiresAt   time.Time
	signErr     error
}

func (s *stubExportStore) WriteObject(ctx context.Context, objectPath string, contentType string, data []byte) error {
	s.objectPath = objectPath
	s.contentType = contentType
	s.data = data
	return s.writeErr
}

func (s *stubExportStore) SignedDownloadURL(ctx context.Context, objectPath string, expiresIn time.Duration, disposition string) (string, time.Time, error) {
	s.disposition = disposition
	s.expiresIn = expiresIn
	return s.url, s.expiresAt, s.signErr
}

func exportTestPlan() domain.PackingPlan {
	return domain.PackingPlan{
		ID: "PLAN01",
		Rows: []domain.PhysicalRow{
			{
				DisplayName:     "Ghee Jar",
				Weight:          "1",
				Quantity:        4,
				FulfillmentCode: "FN1",
				MRP:             "450",
				PacketSize:      "jar",
				PacketUsed:      "1",
				Identifier:      "B001",
				RegulatoryCode:  "FSSAI-1",
				Status:          domain.RowStatusReady,
			},
			{
				DisplayName:     "Coconut Thekua 0.7",
				Weight:          "0.35",
				Quantity:        3,
				FulfillmentCode: "FN2",
				Identifier:      "B021",
				Status:          domain.RowStatusReady,
				IsSplit:         true,
			},
		},
	}
}

func TestExportServiceExportPlanCSV(t *testing.T) {
	expiresAt := time.Date(2026, 2, 1, 10, 15, 0, 0, time.UTC)
	store := &stubExportStore{url: "https://storage.example/signed", expiresAt: expiresAt}
	svc, err := NewExportService(ExportServiceDeps{
		Plans:     &stubPlanService{plan: exportTestPlan()},
		Store:     store,
		URLExpiry: 10 * time.Minute,
	})
	if err != nil {
		t.Fatalf("NewExportService: %v", err)
	}

	result, err := svc.ExportPlanCSV(context.Background(), ExportPlanCommand{PlanID: "PLAN01"})
	if err != nil {
		t.Fatalf("ExportPlanCSV: %v", err)
	}

	if result.ObjectPath != "exports/PLAN01/packing-plan.csv" {
		t.Fatalf("unexpected object path %q", result.ObjectPath)
	}
	if result.URL != "https://storage.example/signed" || result.ExpiresAt != expiresAt {
		t.Fatalf("unexpected result %+v", result)
	}
	if store.contentType != "text/csv" {
		t.Fatalf("unexpected content type %q", store.contentType)
	}
	if store.expiresIn != 10*time.Minute {
		t.Fatalf("unexpected expiry %s", store.expiresIn)
	}
	if !strings.Contains(store.disposition, "packing-plan-PLAN01.csv") {
		t.Fatalf("unexpected disposition %q", store.disposition)
	}

	lines := strings.Split(strings.TrimSpace(string(store.data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "Name,Weight,Qty,FNSKU,M.R.P,Packet Size,Packet Used,ASIN,FSSAI,Status" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if lines[1] != "Ghee Jar,1,4,FN1,450,jar,1,B001,FSSAI-1,ready" {
		t.Fatalf("unexpected first row %q", lines[1])
	}
	if lines[2] != "Coconut Thekua 0.7,0.35,3,FN2,,,,B021,,ready" {
		t.Fatalf("unexpected second row %q", lines[2])
	}
}

func TestExportServiceExportPlanCSVErrors(t *testing.T) {
	planErr := errors.New("not found")
	svc, err := NewExportService(ExportServiceDeps{
		Plans: &stubPlanService{err: planErr},
		Store: &stubExportStore{},
	})
	if err != nil {
		t.Fatalf("NewExportService: %v", err)
	}

	if _, err := svc.ExportPlanCSV(context.Background(), ExportPlanCommand{PlanID: "missing"}); !errors.Is(err, planErr) {
		t.Fatalf("expected plan error, got %v", err)
	}
	if _, err := svc.ExportPlanCSV(context.Background(), ExportPlanCommand{}); err == nil {
		t.Fatalf("expected error for missing plan id")
	}

	store := &stubExportStore{writeErr: errors.New("bucket down")}
	svc, err = NewExportService(ExportServiceDeps{
		Plans: &stubPlanService{plan: exportTestPlan()},
		Store: store,
	})
	if err != nil {
		t.Fatalf("NewExportService: %v", err)
	}
	if _, err := svc.ExportPlanCSV(context.Background(), ExportPlanCommand{PlanID: "PLAN01"}); !errors.Is(err, store.writeErr) {
		t.Fatalf("expected write error, got %v", err)
	}
}
