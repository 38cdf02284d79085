package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates an auxiliary component failed.
	Degraded Status = "degraded"
	// Unhealthy indicates the relational store is unreachable.
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

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db       Pinger
	identity Pinger
}

// New creates a Service. identity is the id reservation store and can be nil
// when ids are reserved in the relational store.
func New(db Pinger, identity Pinger) *Service {
	return &Service{db: db, identity: identity}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	status := Healthy

	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = CheckError
		status = Unhealthy
	} else {
		checks["database"] = CheckOK
	}

	if s.identity != nil {
		if err := s.identity.Ping(ctx); err != nil {
			checks["identity"] = CheckError
			if status == Healthy {
				status = Degraded
			}
		} else {
			checks["identity"] = CheckOK
		}
	}

	return Report{Status: status, Checks: checks}
}
