package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates the image path is impaired; text analysis still works.
	Degraded Status = "degraded"
	// Unhealthy indicates analyses cannot be served.
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

// Component names reported in Report.Checks.
const (
	ComponentDatabase   = "database"
	ComponentKnowledge  = "knowledge"
	ComponentClassifier = "classifier"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db         DBPinger
	knowledge  Checker
	classifier Checker
}

// New creates a Service. classifier can be nil.
func New(db DBPinger, knowledge, classifier Checker) *Service {
	return &Service{db: db, knowledge: knowledge, classifier: classifier}
}

// Check runs health checks against all components. A failing database or
// knowledge base makes the service unhealthy; a failing classifier only degrades it.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	status := Healthy

	checks[ComponentDatabase] = result(s.db.Ping(ctx))
	checks[ComponentKnowledge] = result(s.knowledge.HealthCheck(ctx))
	if checks[ComponentDatabase] == CheckError || checks[ComponentKnowledge] == CheckError {
		status = Unhealthy
	}

	if s.classifier != nil {
		checks[ComponentClassifier] = result(s.classifier.HealthCheck(ctx))
		if checks[ComponentClassifier] == CheckError && status == Healthy {
			status = Degraded
		}
	}

	return Report{Status: status, Checks: checks}
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
