package services

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/packhouse/api/internal/domain"
	"github.com/packhouse/api/internal/repositories"
)

// SystemServiceDeps bundles collaborators required to construct a system service.
type SystemServiceDeps struct {
	HealthRepository repositories.HealthRepository
	Clock            func() time.Time
	Build            BuildInfo
}

type systemService struct {
	healthRepo repositories.HealthRepository
	clock      func() time.Time
	build      BuildInfo
}

var _ SystemService = (*systemService)(nil)

// NewSystemService assembles the system utility service providing health reports and metadata.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.HealthRepository == nil {
		return nil, errors.New("system service: health repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	build := deps.Build
	if build.StartedAt.IsZero() {
		build.StartedAt = clock()
	}

	return &systemService{
		healthRepo: deps.HealthRepository,
		clock:      func() time.Time { return clock().UTC() },
		build:      build,
	}, nil
}

func (s *systemService) HealthReport(ctx context.Context) (SystemHealthReport, error) {
	if ctx == nil {
		return SystemHealthReport{}, errors.New("system service: context is required")
	}

	report, err := s.healthRepo.Collect(ctx)
	if err != nil {
		return SystemHealthReport{}, err
	}

	now := s.clock()
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = now
	} else {
		report.GeneratedAt = report.GeneratedAt.UTC()
	}
	report.Version = chooseFirstNonEmpty(report.Version, s.build.Version)
	report.CommitSHA = chooseFirstNonEmpty(report.CommitSHA, s.build.CommitSHA)
	report.Environment = chooseFirstNonEmpty(report.Environment, s.build.Environment)

	if report.Uptime <= 0 && !s.build.StartedAt.IsZero() {
		report.Uptime = now.Sub(s.build.StartedAt)
	}

	if len(report.Checks) == 0 {
		report.Checks = map[string]domain.SystemHealthCheck{}
	}
	if report.Status == "" {
		report.Status = deriveStatus(report.Checks)
	}
	return report, nil
}

func chooseFirstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func deriveStatus(checks map[string]domain.SystemHealthCheck) domain.HealthStatus {
	if len(checks) == 0 {
		return domain.HealthStatusOK
	}
	status := domain.HealthStatusOK
	for _, check := range checks {
		switch check.Status {
		case domain.HealthStatusOK, "":
			continue
		case domain.HealthStatusError:
			return domain.HealthStatusError
		default:
			status = domain.HealthStatusDegraded
		}
	}
	return status
}
