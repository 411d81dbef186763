package health

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coordkernel/coordkernel/pkg/agents"
	"github.com/coordkernel/coordkernel/pkg/store"
	"github.com/coordkernel/coordkernel/pkg/types"
)

func newTestAssessor(t *testing.T) (*Assessor, string) {
	t.Helper()
	dir := t.TempDir()
	s := store.New(filepath.Join(dir, "work_claims.json"), filepath.Join(dir, "work_claims_fast.jsonl"))
	a := agents.New(filepath.Join(dir, "agent_status.json"))
	return New(dir, s, a), dir
}

func TestAssessor_FreshDirectoryLosesOnlyMissingStreamPenalty(t *testing.T) {
	a, _ := newTestAssessor(t)
	report, err := a.Assess()
	require.NoError(t, err)
	// A fresh directory has no span stream yet, which costs 10 points.
	require.Equal(t, 90, report.Score)
}

func TestAssessor_MalformedCanonicalFileIsPenalized(t *testing.T) {
	a, dir := newTestAssessor(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "work_claims.json"), []byte("{not json"), 0644))

	report, err := a.Assess()
	require.NoError(t, err)
	require.Less(t, report.Score, 100)

	found := false
	for _, issue := range report.Issues {
		if issue.Category == CategoryFileSystem {
			found = true
		}
	}
	require.True(t, found)
}

func TestAssessor_MissingTelemetryStreamIsPenalized(t *testing.T) {
	a, _ := newTestAssessor(t)
	report, err := a.Assess()
	require.NoError(t, err)

	found := false
	for _, issue := range report.Issues {
		if issue.Category == CategoryTelemetry {
			found = true
		}
	}
	require.True(t, found)
}

func TestAssessor_WritesReportFile(t *testing.T) {
	a, dir := newTestAssessor(t)
	_, err := a.Assess()
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "system_health_report.json"))
	require.NoError(t, err)

	var report Report
	require.NoError(t, json.Unmarshal(data, &report))
}

func TestAssessor_WritesAlertBelowThreshold(t *testing.T) {
	a, dir := newTestAssessor(t)
	a.Config.AlertThreshold = 100

	_, err := a.Assess()
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "health_alert.json"))
	require.NoError(t, err)
}

func TestAssessor_HighFailureRatePenalized(t *testing.T) {
	a, _ := newTestAssessor(t)
	a.Config.MaxFail = 0.1

	for i := 0; i < 12; i++ {
		c := &types.WorkClaim{
			WorkItemID:   "work_" + string(rune('a'+i)),
			WorkType:     "build",
			Priority:     types.PriorityMedium,
			Status:       types.WorkStatusFailed,
			ClaimedAt:    time.Now(),
			LastUpdateAt: time.Now(),
		}
		require.NoError(t, a.Store.Insert(c))
	}

	report, err := a.Assess()
	require.NoError(t, err)

	found := false
	for _, issue := range report.Issues {
		if issue.Category == CategoryCoordination {
			found = true
		}
	}
	require.True(t, found)
}
