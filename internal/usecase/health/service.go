package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates every component failed.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// DefaultTimeout bounds each component check.
const DefaultTimeout = 2 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Check is one named component check.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Database checks the store with PING.
func Database(db DBPinger) Check {
	return Check{Name: "database", Fn: db.Ping}
}

// Embedding checks the embedding provider.
func Embedding(e EmbeddingChecker) Check {
	return Check{Name: "embedding", Fn: e.HealthCheck}
}

// Index checks that the named vector index has been created.
func Index(p IndexChecker, name string) Check {
	return Check{Name: "index", Fn: func(ctx context.Context) error {
		ok, err := p.IndexExists(ctx, name)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("index %s not found", name)
		}
		return nil
	}}
}

// Service coordinates health checks.
type Service struct {
	checks  []Check
	timeout time.Duration
}

// New creates a Service. A non-positive timeout uses DefaultTimeout.
func New(timeout time.Duration, checks ...Check) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{checks: checks, timeout: timeout}
}

// Check runs all component checks concurrently.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.checks))
	var mu sync.Mutex

	var g errgroup.Group
	for _, c := range s.checks {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			res := CheckOK
			if err := c.Fn(cctx); err != nil {
				res = CheckError
			}
			mu.Lock()
			checks[c.Name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // checks never return errors

	failed := 0
	for _, v := range checks {
		if v == CheckError {
			failed++
		}
	}

	status := Healthy
	switch {
	case failed == 0:
	case failed == len(checks):
		status = Unhealthy
	default:
		status = Degraded
	}
	return Report{Status: status, Checks: checks}
}
