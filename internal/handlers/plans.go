package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/packhouse/api/internal/domain"
	"github.com/packhouse/api/internal/platform/auth"
	"github.com/packhouse/api/internal/platform/httpx"
	"github.com/packhouse/api/internal/platform/pagination"
	"github.com/packhouse/api/internal/services"
)

const maxPlanRequestBody = 256 * 1024

// PlanHandlers exposes packing plan creation, retrieval, export, and label endpoints.
type PlanHandlers struct {
	authn   *auth.Authenticator
	plans   services.PlanService
	exports services.ExportService
	labels  services.LabelService
}

// NewPlanHandlers constructs a packing plan handler set.
func NewPlanHandlers(authn *auth.Authenticator, plans services.PlanService, exports services.ExportService, labels services.LabelService) *PlanHandlers {
	return &PlanHandlers{
		authn:   authn,
		plans:   plans,
		exports: exports,
		labels:  labels,
	}
}

// Routes registers the plan endpoints beneath /plans.
func (h *PlanHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}

	route := r
	if h.authn != nil {
		route = route.With(h.authn.RequireFirebaseAuth())
	}

	route.Post("/", h.create)
	route.Get("/", h.list)
	route.Get("/{planID}", h.get)
	route.Post("/{planID}:export", h.export)
	route.Get("/{planID}/labels", h.renderLabels)
}

type createPlanRequest struct {
	Lines  []planLineRequest `json:"lines"`
	Source string            `json:"source"`
	Note   string            `json:"note"`
}

// planLineRequest tolerates numeric or string quantities; clients paste
// spreadsheet data and both shapes occur in the wild.
type planLineRequest struct {
	Identifier string          `json:"identifier"`
	Quantity   json.RawMessage `json:"quantity"`
}

func (l planLineRequest) quantityText() string {
	raw := strings.TrimSpace(string(l.Quantity))
	if raw == "" || raw == "null" {
		return ""
	}
	var asString string
	if err := json.Unmarshal(l.Quantity, &asString); err == nil {
		return asString
	}
	return raw
}

func (h *PlanHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.plans == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "plan service not available", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxPlanRequestBody)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		case errors.Is(err, errEmptyBody):
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return
	}

	var req createPlanRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}
	if len(req.Lines) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "at least one order line is required", http.StatusBadRequest))
		return
	}

	cmd := services.CreatePlanCommand{
		Source: req.Source,
		Note:   req.Note,
		Lines:  make([]services.PlanLineInput, 0, len(req.Lines)),
	}
	for _, line := range req.Lines {
		cmd.Lines = append(cmd.Lines, services.PlanLineInput{
			Identifier: line.Identifier,
			Quantity:   line.quantityText(),
		})
	}
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity != nil {
		cmd.CreatedBy = identity.UID
	}

	plan, err := h.plans.CreatePlan(ctx, cmd)
	if err != nil {
		writePlanError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, planResponse{Plan: buildPlanPayload(plan)})
}

func (h *PlanHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.plans == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "plan service not available", http.StatusServiceUnavailable))
		return
	}

	planID := strings.TrimSpace(chi.URLParam(r, "planID"))
	if planID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "plan id is required", http.StatusBadRequest))
		return
	}

	plan, err := h.plans.GetPlan(ctx, planID)
	if err != nil {
		writePlanError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, planResponse{Plan: buildPlanPayload(plan)})
}

func (h *PlanHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.plans == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "plan service not available", http.StatusServiceUnavailable))
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{
		DefaultPageSize: pagination.DefaultPageSize,
		MaxPageSize:     pagination.DefaultMaxPageSize,
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	filter := services.PlanListFilter{
		CreatedBy: strings.TrimSpace(r.URL.Query().Get("createdBy")),
		Pagination: domain.Pagination{
			PageSize:  params.PageSize,
			PageToken: params.PageToken,
		},
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("createdAfter")); raw != "" {
		createdAfter, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "createdAfter must be RFC3339", http.StatusBadRequest))
			return
		}
		filter.CreatedAfter = &createdAfter
	}

	page, err := h.plans.ListPlans(ctx, filter)
	if err != nil {
		writePlanError(ctx, w, err)
		return
	}

	items := make([]planPayload, 0, len(page.Items))
	for _, plan := range page.Items {
		items = append(items, buildPlanPayload(plan))
	}
	writeJSONResponse(w, http.StatusOK, planListResponse{
		Plans:         items,
		NextPageToken: page.NextPageToken,
	})
}

func (h *PlanHandlers) export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.exports == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "export service not available", http.StatusServiceUnavailable))
		return
	}

	planID := strings.TrimSpace(chi.URLParam(r, "planID"))
	if planID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "plan id is required", http.StatusBadRequest))
		return
	}

	cmd := services.ExportPlanCommand{PlanID: planID}
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity != nil {
		cmd.RequestedBy = identity.UID
	}

	result, err := h.exports.ExportPlanCSV(ctx, cmd)
	if err != nil {
		writePlanError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, exportResponse{
		PlanID:     result.PlanID,
		ObjectPath: result.ObjectPath,
		URL:        result.URL,
		ExpiresAt:  formatTime(result.ExpiresAt),
	})
}

func (h *PlanHandlers) renderLabels(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.labels == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "label service not available", http.StatusServiceUnavailable))
		return
	}

	planID := strings.TrimSpace(chi.URLParam(r, "planID"))
	if planID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "plan id is required", http.StatusBadRequest))
		return
	}

	sheet, err := h.labels.RenderLabels(ctx, planID)
	if err != nil {
		if errors.Is(err, services.ErrLabelNoRows) {
			httpx.WriteError(ctx, w, httpx.NewError("no_printable_rows", "plan has no rows that can carry a label", http.StatusUnprocessableEntity))
			return
		}
		writePlanError(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", sheet.ContentType)
	w.Header().Set("X-Label-Count", strconv.Itoa(sheet.LabelCount))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(sheet.PNG)
}

type planResponse struct {
	Plan planPayload `json:"plan"`
}

type planListResponse struct {
	Plans         []planPayload `json:"plans"`
	NextPageToken string        `json:"nextPageToken,omitempty"`
}

type exportResponse struct {
	PlanID     string `json:"planId"`
	ObjectPath string `json:"objectPath"`
	URL        string `json:"url"`
	ExpiresAt  string `json:"expiresAt"`
}

type planPayload struct {
	ID            string             `json:"id"`
	CreatedAt     string             `json:"createdAt"`
	CreatedBy     string             `json:"createdBy,omitempty"`
	Source        string             `json:"source,omitempty"`
	Note          string             `json:"note,omitempty"`
	LineCount     int                `json:"lineCount"`
	ReadyRowCount int                `json:"readyRowCount"`
	Rows          []planRowPayload   `json:"rows"`
	Issues        []planIssuePayload `json:"issues"`
}

type planRowPayload struct {
	DisplayName     string `json:"displayName"`
	LabelName       string `json:"labelName,omitempty"`
	Weight          string `json:"weight,omitempty"`
	PacketSize      string `json:"packetSize,omitempty"`
	PacketUsed      string `json:"packetUsed,omitempty"`
	Identifier      string `json:"identifier,omitempty"`
	MRP             string `json:"mrp,omitempty"`
	FulfillmentCode string `json:"fulfillmentCode,omitempty"`
	RegulatoryCode  string `json:"regulatoryCode,omitempty"`
	Status          string `json:"status"`
	IsSplit         bool   `json:"isSplit"`
	Quantity        int    `json:"quantity"`
}

type planIssuePayload struct {
	Identifier  string `json:"identifier,omitempty"`
	Kind        string `json:"kind"`
	ProductName string `json:"productName,omitempty"`
	SplitInfo   string `json:"splitInfo,omitempty"`
	Detail      string `json:"detail,omitempty"`
	Quantity    int    `json:"quantity"`
}

func buildPlanPayload(plan domain.PackingPlan) planPayload {
	rows := make([]planRowPayload, 0, len(plan.Rows))
	for _, row := range plan.Rows {
		rows = append(rows, planRowPayload{
			DisplayName:     row.DisplayName,
			LabelName:       row.LabelName,
			Weight:          row.Weight,
			PacketSize:      row.PacketSize,
			PacketUsed:      row.PacketUsed,
			Identifier:      row.Identifier,
			MRP:             row.MRP,
			FulfillmentCode: row.FulfillmentCode,
			RegulatoryCode:  row.RegulatoryCode,
			Status:          string(row.Status),
			IsSplit:         row.IsSplit,
			Quantity:        row.Quantity,
		})
	}
	issues := make([]planIssuePayload, 0, len(plan.Issues))
	for _, issue := range plan.Issues {
		issues = append(issues, planIssuePayload{
			Identifier:  issue.Identifier,
			Kind:        string(issue.Kind),
			ProductName: issue.ProductName,
			SplitInfo:   issue.SplitInfo,
			Detail:      issue.Detail,
			Quantity:    issue.Quantity,
		})
	}
	return planPayload{
		ID:            plan.ID,
		CreatedAt:     formatTime(plan.CreatedAt),
		CreatedBy:     plan.CreatedBy,
		Source:        plan.Source,
		Note:          plan.Note,
		LineCount:     plan.LineCount,
		ReadyRowCount: plan.ReadyRowCount(),
		Rows:          rows,
		Issues:        issues,
	}
}

func writePlanError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	type notFoundClassifier interface{ IsNotFound() bool }
	var nf notFoundClassifier

	switch {
	case errors.Is(err, services.ErrPlanInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.As(err, &nf) && nf.IsNotFound():
		httpx.WriteError(ctx, w, httpx.NewError("not_found", "plan not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("plan_error", "failed to process packing plan", http.StatusInternalServerError))
	}
}
