package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/packhouse/api/internal/domain"
	"github.com/packhouse/api/internal/platform/auth"
	"github.com/packhouse/api/internal/platform/httpx"
	"github.com/packhouse/api/internal/repositories"
	"github.com/packhouse/api/internal/services"
)

// CatalogHandlers exposes catalog snapshot inspection and refresh endpoints.
type CatalogHandlers struct {
	authn   *auth.Authenticator
	catalog services.CatalogService
}

// NewCatalogHandlers constructs a catalog handler set.
func NewCatalogHandlers(authn *auth.Authenticator, svc services.CatalogService) *CatalogHandlers {
	return &CatalogHandlers{
		authn:   authn,
		catalog: svc,
	}
}

// Routes registers the catalog endpoints at the API root.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}

	read := r
	if h.authn != nil {
		read = read.With(h.authn.RequireFirebaseAuth())
	}
	read.Get("/catalog", h.get)

	refresh := r
	if h.authn != nil {
		refresh = refresh.With(h.authn.RequireFirebaseAuth(auth.RoleSupervisor, auth.RoleAdmin))
	}
	refresh.Post("/catalog:refresh", h.refresh)
}

func (h *CatalogHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "catalog service not available", http.StatusServiceUnavailable))
		return
	}

	snapshot, err := h.catalog.Snapshot(ctx)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildCatalogPayload(snapshot, includeProducts(r)))
}

func (h *CatalogHandlers) refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "catalog service not available", http.StatusServiceUnavailable))
		return
	}

	snapshot, err := h.catalog.Refresh(ctx)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildCatalogPayload(snapshot, false))
}

func includeProducts(r *http.Request) bool {
	raw := strings.TrimSpace(r.URL.Query().Get("includeProducts"))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

type catalogResponse struct {
	Source       string                  `json:"source"`
	FetchedAt    string                  `json:"fetchedAt"`
	ProductCount int                     `json:"productCount"`
	Products     []catalogProductPayload `json:"products,omitempty"`
}

type catalogProductPayload struct {
	Name            string `json:"name"`
	Identifier      string `json:"identifier"`
	NetWeight       string `json:"netWeight,omitempty"`
	SplitInto       string `json:"splitInto,omitempty"`
	FulfillmentCode string `json:"fulfillmentCode,omitempty"`
	PacketSize      string `json:"packetSize,omitempty"`
	PacketUsed      string `json:"packetUsed,omitempty"`
	MRP             string `json:"mrp,omitempty"`
	RegulatoryCode  string `json:"regulatoryCode,omitempty"`
}

func buildCatalogPayload(snapshot domain.CatalogSnapshot, withProducts bool) catalogResponse {
	resp := catalogResponse{
		Source:       snapshot.Source,
		FetchedAt:    formatTime(snapshot.FetchedAt),
		ProductCount: len(snapshot.Products),
	}
	if !withProducts {
		return resp
	}
	products := make([]catalogProductPayload, 0, len(snapshot.Products))
	for _, product := range snapshot.Products {
		products = append(products, catalogProductPayload{
			Name:            product.Name,
			Identifier:      product.Identifier,
			NetWeight:       product.NetWeightRaw,
			SplitInto:       product.SplitInto,
			FulfillmentCode: product.FulfillmentCode,
			PacketSize:      product.PacketSize,
			PacketUsed:      product.PacketUsed,
			MRP:             product.MRP,
			RegulatoryCode:  product.RegulatoryCode,
		})
	}
	resp.Products = products
	return resp
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var catalogErr *repositories.CatalogError
	switch {
	case errors.Is(err, services.ErrCatalogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog temporarily unavailable", http.StatusServiceUnavailable))
	case errors.As(err, &catalogErr) && catalogErr.Code == repositories.CatalogErrorMalformedHeader:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_malformed", "catalog source has an unusable header row", http.StatusBadGateway))
	case errors.As(err, &catalogErr) && catalogErr.Code == repositories.CatalogErrorEmptySource:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_empty", "catalog source returned no products", http.StatusBadGateway))
	case errors.As(err, &catalogErr) && catalogErr.Code == repositories.CatalogErrorSourceUnavailable:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog source unreachable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to load catalog", http.StatusInternalServerError))
	}
}
