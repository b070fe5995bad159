package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	domain "github.com/packhouse/api/internal/domain"
)

const defaultProbeTimeout = 1500 * time.Millisecond

// DependencyCheck describes a dependency probe executed during readiness checks.
type DependencyCheck struct {
	Name    string
	Timeout time.Duration
	Check   func(context.Context) error
}

// DependencyHealthOption customises the behaviour of the dependency-backed health repository.
type DependencyHealthOption func(*dependencyHealthRepository)

// WithProbeTimeout overrides the default timeout applied when a check omits its own timeout.
func WithProbeTimeout(timeout time.Duration) DependencyHealthOption {
	return func(repo *dependencyHealthRepository) {
		if timeout > 0 {
			repo.defaultTimeout = timeout
		}
	}
}

// WithHealthClock injects a custom clock primarily for tests.
func WithHealthClock(clock func() time.Time) DependencyHealthOption {
	return func(repo *dependencyHealthRepository) {
		if clock != nil {
			repo.now = clock
		}
	}
}

type dependencyHealthRepository struct {
	checks         []DependencyCheck
	defaultTimeout time.Duration
	now            func() time.Time
}

var _ HealthRepository = (*dependencyHealthRepository)(nil)

// NewDependencyHealthRepository constructs a HealthRepository that evaluates the provided check set.
// Every check must carry a name and a probe function.
func NewDependencyHealthRepository(checks []DependencyCheck, opts ...DependencyHealthOption) (HealthRepository, error) {
	if len(checks) == 0 {
		return nil, errors.New("health repository: at least one dependency check is required")
	}
	for _, check := range checks {
		if strings.TrimSpace(check.Name) == "" {
			return nil, errors.New("health repository: dependency check missing name")
		}
		if check.Check == nil {
			return nil, fmt.Errorf("health repository: dependency %s missing check function", check.Name)
		}
	}

	repo := &dependencyHealthRepository{
		checks:         make([]DependencyCheck, len(checks)),
		defaultTimeout: defaultProbeTimeout,
		now:            time.Now,
	}
	copy(repo.checks, checks)

	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo, nil
}

func (r *dependencyHealthRepository) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	if ctx == nil {
		return domain.SystemHealthReport{}, errors.New("health repository: context is required")
	}

	results := make(map[string]domain.SystemHealthCheck, len(r.checks))
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	wg.Add(len(r.checks))
	for _, check := range r.checks {
		go func() {
			defer wg.Done()
			result := r.probe(ctx, check)
			mu.Lock()
			results[check.Name] = result
			mu.Unlock()
		}()
	}
	wg.Wait()

	status := domain.HealthStatusOK
	for _, result := range results {
		if result.Status == domain.HealthStatusError {
			status = domain.HealthStatusError
			break
		}
		if result.Status == domain.HealthStatusDegraded {
			status = domain.HealthStatusDegraded
		}
	}

	return domain.SystemHealthReport{
		Status:      status,
		Checks:      results,
		GeneratedAt: r.now(),
	}, nil
}

func (r *dependencyHealthRepository) probe(ctx context.Context, check DependencyCheck) domain.SystemHealthCheck {
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := r.now()
	err := check.Check(probeCtx)
	end := r.now()

	result := domain.SystemHealthCheck{
		Status:    domain.HealthStatusOK,
		Detail:    "ok",
		Latency:   end.Sub(start),
		CheckedAt: end,
	}

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		result.Status = domain.HealthStatusError
		result.Detail = "cancelled"
		result.Error = err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		result.Status = domain.HealthStatusError
		result.Detail = "timeout"
		result.Error = err.Error()
	default:
		result.Status = domain.HealthStatusDegraded
		result.Detail = err.Error()
		result.Error = err.Error()
	}
	return result
}
