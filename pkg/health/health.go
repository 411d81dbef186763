package health

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/coordkernel/coordkernel/pkg/agents"
	"github.com/coordkernel/coordkernel/pkg/metrics"
	"github.com/coordkernel/coordkernel/pkg/store"
	"github.com/coordkernel/coordkernel/pkg/types"
)

// Category is the fixed set of penalty categories spec.md §4.H names.
type Category string

const (
	CategoryFileSystem   Category = "file_system"
	CategoryCoordination Category = "coordination"
	CategoryTelemetry    Category = "telemetry"
	CategoryResources    Category = "resources"
)

// Issue is one observed, file-backed fact that reduced the health score.
type Issue struct {
	Category Category `json:"category"`
	Message  string   `json:"message"`
	Penalty  int      `json:"penalty"`
}

// Report is the document the Assessor writes after each run.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`
	Score       int       `json:"health_score"`
	Issues      []Issue   `json:"issues"`
}

// Config names the thresholds spec.md's penalty table references.
type Config struct {
	MaxStaleHours  float64
	MaxActive      int
	MinRate        float64
	MaxFail        float64
	AlertThreshold int
}

// DefaultConfig returns the defaults implied by spec.md §4.H.
func DefaultConfig() Config {
	return Config{
		MaxStaleHours:  6,
		MaxActive:      500,
		MinRate:        0.5,
		MaxFail:        0.3,
		AlertThreshold: 70,
	}
}

// Assessor is the Health Assessor: read-only over the Claims Store, Agent
// Registry, and span stream, writing only its own report and alert files.
type Assessor struct {
	CoordinationDir string
	TelemetryPath   string
	ReportPath      string
	AlertPath       string
	Store           store.Store
	Agents          *agents.Registry
	Config          Config
}

// New wires an Assessor rooted at coordinationDir.
func New(coordinationDir string, s store.Store, a *agents.Registry) *Assessor {
	return &Assessor{
		CoordinationDir: coordinationDir,
		TelemetryPath:   filepath.Join(coordinationDir, "telemetry_spans.jsonl"),
		ReportPath:      filepath.Join(coordinationDir, "system_health_report.json"),
		AlertPath:       filepath.Join(coordinationDir, "health_alert.json"),
		Store:           s,
		Agents:          a,
		Config:          DefaultConfig(),
	}
}

// Assess inspects file-system facts, computes the health score, writes the
// report, and — when the score is below Config.AlertThreshold — writes a
// separate alert record.
func (a *Assessor) Assess() (*Report, error) {
	var issues []Issue

	issues = append(issues, a.checkFileSystem()...)
	issues = append(issues, a.checkCoordination()...)
	issues = append(issues, a.checkTelemetry()...)
	issues = append(issues, a.checkResources()...)

	score := 100
	for _, i := range issues {
		score -= i.Penalty
	}
	if score < 0 {
		score = 0
	}

	report := &Report{
		GeneratedAt: time.Now().UTC(),
		Score:       score,
		Issues:      issues,
	}

	data, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("health: marshal report: %w", err)
	}
	if err := os.WriteFile(a.ReportPath, data, 0644); err != nil {
		return nil, fmt.Errorf("health: write report: %w", err)
	}

	if score < a.Config.AlertThreshold {
		if err := os.WriteFile(a.AlertPath, data, 0644); err != nil {
			return report, fmt.Errorf("health: write alert: %w", err)
		}
	}

	metrics.HealthScoreGauge.Set(float64(score))
	return report, nil
}

func fileIsStale(path string, maxStaleHours float64) (stale bool, exists bool) {
	info, err := os.Stat(path)
	if err != nil {
		return false, false
	}
	age := time.Since(info.ModTime()).Hours()
	return age > maxStaleHours, true
}

func (a *Assessor) checkFileSystem() []Issue {
	var issues []Issue

	for _, name := range []string{"work_claims.json", "agent_status.json"} {
		path := filepath.Join(a.CoordinationDir, name)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue // a brand-new coordination dir has no claims yet
			}
			issues = append(issues, Issue{CategoryFileSystem, fmt.Sprintf("%s unreadable: %v", name, err), 15})
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			issues = append(issues, Issue{CategoryFileSystem, fmt.Sprintf("%s unreadable: %v", name, err), 15})
			continue
		}
		if len(data) > 0 {
			var probe json.RawMessage
			if err := json.Unmarshal(data, &probe); err != nil {
				issues = append(issues, Issue{CategoryFileSystem, fmt.Sprintf("%s malformed JSON", name), 15})
			}
		}
		if stale, exists := fileIsStale(path, a.Config.MaxStaleHours); exists && stale {
			issues = append(issues, Issue{CategoryFileSystem, fmt.Sprintf("%s stale (> %.0fh)", name, a.Config.MaxStaleHours), 15})
		}
	}
	return issues
}

func (a *Assessor) checkCoordination() []Issue {
	var issues []Issue
	if a.Store == nil {
		return issues
	}
	claims, err := a.Store.List(store.Filter{})
	if err != nil {
		issues = append(issues, Issue{CategoryCoordination, fmt.Sprintf("failed to list claims: %v", err), 20})
		return issues
	}

	activeCount := 0
	var completed, failed, total int
	for _, c := range claims {
		if !c.Status.Terminal() {
			activeCount++
		}
		total++
		switch c.Status {
		case types.WorkStatusCompleted:
			completed++
		case types.WorkStatusFailed:
			failed++
		}
	}

	if activeCount > a.Config.MaxActive {
		issues = append(issues, Issue{CategoryCoordination, fmt.Sprintf("active_count %d exceeds max_active %d", activeCount, a.Config.MaxActive), 20})
	}

	if total >= 10 {
		completionRate := float64(completed) / float64(total)
		if completionRate < a.Config.MinRate {
			issues = append(issues, Issue{CategoryCoordination, fmt.Sprintf("completion_rate %.2f below min_rate %.2f", completionRate, a.Config.MinRate), 20})
		}
		failureRate := float64(failed) / float64(total)
		if failureRate > a.Config.MaxFail {
			issues = append(issues, Issue{CategoryCoordination, fmt.Sprintf("failure_rate %.2f exceeds max_fail %.2f", failureRate, a.Config.MaxFail), 20})
		}
	}

	return issues
}

func (a *Assessor) checkTelemetry() []Issue {
	var issues []Issue
	info, err := os.Stat(a.TelemetryPath)
	if err != nil {
		if os.IsNotExist(err) {
			issues = append(issues, Issue{CategoryTelemetry, "telemetry span stream missing", 10})
		}
		return issues
	}

	coordinationIsWriting := false
	if a.Store != nil {
		if claims, err := a.Store.List(store.Filter{}); err == nil {
			for _, c := range claims {
				if time.Since(c.LastUpdateAt) < time.Hour {
					coordinationIsWriting = true
					break
				}
			}
		}
	}
	if coordinationIsWriting && time.Since(info.ModTime()) > time.Hour {
		issues = append(issues, Issue{CategoryTelemetry, "no spans written in the last hour despite active coordination", 10})
	}
	return issues
}

func (a *Assessor) checkResources() []Issue {
	var issues []Issue

	if vm, err := mem.VirtualMemory(); err == nil {
		if vm.UsedPercent > 95 {
			issues = append(issues, Issue{CategoryResources, fmt.Sprintf("memory usage %.1f%% exceeds 95%%", vm.UsedPercent), 25})
		}
	}

	if du, err := disk.Usage(a.CoordinationDir); err == nil {
		if du.UsedPercent > 90 {
			issues = append(issues, Issue{CategoryResources, fmt.Sprintf("disk usage %.1f%% exceeds 90%%", du.UsedPercent), 25})
		}
	}

	return issues
}
