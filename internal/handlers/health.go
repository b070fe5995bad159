package handlers

import (
	"net/http"
	"sort"
	"time"

	domain "github.com/packhouse/api/internal/domain"
	"github.com/packhouse/api/internal/services"
)

// HealthHandlers serves the liveness and readiness endpoints.
type HealthHandlers struct {
	system services.SystemService
	build  services.BuildInfo
	clock  func() time.Time
}

// HealthOption customises HealthHandlers construction.
type HealthOption func(*HealthHandlers)

// WithHealthSystemService wires the system service used for readiness probes.
func WithHealthSystemService(svc services.SystemService) HealthOption {
	return func(h *HealthHandlers) {
		h.system = svc
	}
}

// WithHealthBuildInfo attaches build metadata to health responses.
func WithHealthBuildInfo(info services.BuildInfo) HealthOption {
	return func(h *HealthHandlers) {
		h.build = info
	}
}

// WithHealthClock injects a custom clock (useful for tests).
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewHealthHandlers constructs the health endpoint handlers.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Healthz reports process liveness without touching any dependency.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock().UTC()
	payload := map[string]any{
		"status":    string(domain.HealthStatusOK),
		"timestamp": now.Format(time.RFC3339),
	}
	if h.build.Version != "" {
		payload["version"] = h.build.Version
	}
	if h.build.CommitSHA != "" {
		payload["commitSha"] = h.build.CommitSHA
	}
	if h.build.Environment != "" {
		payload["environment"] = h.build.Environment
	}
	if !h.build.StartedAt.IsZero() {
		payload["uptime"] = now.Sub(h.build.StartedAt).String()
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

type readyzCheckPayload struct {
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
	CheckedAt string `json:"checkedAt,omitempty"`
}

type readyzResponse struct {
	Status      string                        `json:"status"`
	Checks      map[string]readyzCheckPayload `json:"checks"`
	Details     []string                      `json:"details"`
	Version     string                        `json:"version,omitempty"`
	CommitSHA   string                        `json:"commitSha,omitempty"`
	Environment string                        `json:"environment,omitempty"`
	Uptime      string                        `json:"uptime,omitempty"`
	GeneratedAt string                        `json:"generatedAt,omitempty"`
}

// Readyz probes all registered dependencies and reports the aggregated status.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.system == nil {
		writeJSONResponse(w, http.StatusOK, readyzResponse{
			Status:  string(domain.HealthStatusOK),
			Checks:  map[string]readyzCheckPayload{},
			Details: []string{},
		})
		return
	}

	report, err := h.system.HealthReport(r.Context())
	if err != nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, readyzResponse{
			Status:  string(domain.HealthStatusError),
			Checks:  map[string]readyzCheckPayload{},
			Details: []string{err.Error()},
		})
		return
	}

	checks := make(map[string]readyzCheckPayload, len(report.Checks))
	details := make([]string, 0)
	for name, check := range report.Checks {
		checks[name] = readyzCheckPayload{
			Status:    string(check.Status),
			Detail:    check.Detail,
			Error:     check.Error,
			LatencyMS: check.Latency.Milliseconds(),
			CheckedAt: formatTime(check.CheckedAt),
		}
		if check.Status != domain.HealthStatusOK && check.Error != "" {
			details = append(details, name+": "+check.Error)
		}
	}
	sort.Strings(details)

	resp := readyzResponse{
		Status:      string(report.Status),
		Checks:      checks,
		Details:     details,
		Version:     report.Version,
		CommitSHA:   report.CommitSHA,
		Environment: report.Environment,
		GeneratedAt: formatTime(report.GeneratedAt),
	}
	if report.Uptime > 0 {
		resp.Uptime = report.Uptime.String()
	}

	status := http.StatusOK
	if report.Status != domain.HealthStatusOK {
		status = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, status, resp)
}
