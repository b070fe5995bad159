package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/packhouse/api/internal/domain"
	"github.com/packhouse/api/internal/services"
)

func TestNewRouter_DefaultMounts(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	healthHandlers := NewHealthHandlers(
		WithHealthSystemService(&stubSystemService{
			report: services.SystemHealthReport{
				Status:      domain.HealthStatusOK,
				Uptime:      5 * time.Second,
				GeneratedAt: now,
				Checks: map[string]domain.SystemHealthCheck{
					"firestore": {Status: domain.HealthStatusOK},
				},
			},
		}),
		WithHealthClock(func() time.Time { return now }),
	)

	router := NewRouter(WithHealthHandlers(healthHandlers))

	t.Run("healthz", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("expected content-type application/json, got %s", ct)
		}
	})

	t.Run("readyz", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("default not implemented group", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil)
		rr := httptest.NewRecorder()

		router.ServeHTTP(rr, req)

		if rr.Code != http.StatusNotImplemented {
			t.Fatalf("expected status 501, got %d", rr.Code)
		}

		var body map[string]any
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("expected JSON body: %v", err)
		}
		if body["error"] != "not_implemented" {
			t.Fatalf("expected not_implemented error, got %v", body["error"])
		}
	})
}

func TestNewRouter_WithRegistrars(t *testing.T) {
	plans := func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	}
	catalog := func(r chi.Router) {
		r.Get("/catalog", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	}

	router := NewRouter(WithPlanRoutes(plans), WithCatalogRoutes(catalog))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/plans/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204 for plans, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/catalog", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status 204 for catalog, got %d", rr.Code)
	}
}

func TestNewRouter_NotFound(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/does/not/exist", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if body["error"] != "route_not_found" {
		t.Fatalf("expected route_not_found error, got %v", body["error"])
	}
}

func TestNewRouter_CustomMiddleware(t *testing.T) {
	marker := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Test-Middleware", "global")
			next.ServeHTTP(w, r)
		})
	}

	router := NewRouter(WithMiddlewares(marker))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)

	if rr.Header().Get("X-Test-Middleware") != "global" {
		t.Fatalf("expected middleware to set header")
	}
}
