package domain

import "time"

// HealthStatus is the coarse state of the service or one of its dependencies.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "ok"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusError    HealthStatus = "error"
)

// SystemHealthCheck is the outcome of probing a single dependency.
type SystemHealthCheck struct {
	Status    HealthStatus
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport summarises all dependency probes for a readiness check.
// Status is the worst status observed across the checks.
type SystemHealthReport struct {
	Status      HealthStatus
	Checks      map[string]SystemHealthCheck
	GeneratedAt time.Time
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
}
