package metrics

import (
	"testing"
	"time"
)

// resetHealthChecker clears the package-level checker state so tests don't
// leak components/assessments into one another.
func resetHealthChecker() {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()
	healthChecker.components = make(map[string]ComponentHealth)
	healthChecker.assessment = nil
	healthChecker.version = ""
}

// TestGetHealthHealthyWithNoAssessment tests that liveness is healthy with
// no registered components and no Health Assessor run yet.
func TestGetHealthHealthyWithNoAssessment(t *testing.T) {
	resetHealthChecker()

	health := GetHealth()
	if health.Status != "healthy" {
		t.Errorf("GetHealth().Status = %q, want healthy", health.Status)
	}
	if health.HealthScore != nil {
		t.Error("GetHealth().HealthScore should be nil before SetAssessment")
	}
}

// TestGetHealthUnhealthyBelowThreshold tests that a reported score under
// the Assessor's own alert threshold flips liveness to unhealthy.
func TestGetHealthUnhealthyBelowThreshold(t *testing.T) {
	resetHealthChecker()
	RegisterComponent("claim_store", true, "")

	SetAssessment(40, 3, 60, time.Now())

	health := GetHealth()
	if health.Status != "unhealthy" {
		t.Errorf("GetHealth().Status = %q, want unhealthy", health.Status)
	}
	if health.HealthScore == nil || *health.HealthScore != 40 {
		t.Errorf("GetHealth().HealthScore = %v, want 40", health.HealthScore)
	}
	if health.Issues != 3 {
		t.Errorf("GetHealth().Issues = %d, want 3", health.Issues)
	}
}

// TestGetHealthHealthyAtOrAboveThreshold tests that a score at or above
// the threshold leaves liveness healthy.
func TestGetHealthHealthyAtOrAboveThreshold(t *testing.T) {
	resetHealthChecker()
	SetAssessment(75, 0, 60, time.Now())

	health := GetHealth()
	if health.Status != "healthy" {
		t.Errorf("GetHealth().Status = %q, want healthy", health.Status)
	}
}

// TestGetReadinessNotReadyBelowThreshold tests that GetReadiness reports
// not_ready once the last assessment falls under threshold, even when
// every registered component is otherwise healthy.
func TestGetReadinessNotReadyBelowThreshold(t *testing.T) {
	resetHealthChecker()
	RegisterComponent("claim_store", true, "")
	RegisterComponent("telemetry", true, "")

	SetAssessment(20, 5, 60, time.Now())

	readiness := GetReadiness()
	if readiness.Status != "not_ready" {
		t.Errorf("GetReadiness().Status = %q, want not_ready", readiness.Status)
	}
	if readiness.Message == "" {
		t.Error("GetReadiness().Message should explain the low score")
	}
}

// TestGetReadinessReadyWithNoAssessment tests that readiness still depends
// only on registered components until the first Health Assessor run.
func TestGetReadinessReadyWithNoAssessment(t *testing.T) {
	resetHealthChecker()
	RegisterComponent("claim_store", true, "")
	RegisterComponent("telemetry", true, "")

	readiness := GetReadiness()
	if readiness.Status != "ready" {
		t.Errorf("GetReadiness().Status = %q, want ready", readiness.Status)
	}
}
