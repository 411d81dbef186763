package agents

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coordkernel/coordkernel/pkg/types"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "agent_status.json"))
}

func TestRegistry_RegisterOrUpdateCreatesNew(t *testing.T) {
	r := newTestRegistry(t)
	agent, err := r.RegisterOrUpdate("agent_1", "platform", "backend", 5)
	require.NoError(t, err)
	require.Equal(t, "agent_1", agent.AgentID)
	require.Equal(t, types.AgentStatusActive, agent.Status)
	require.Equal(t, 0, agent.CurrentWorkload)
}

func TestRegistry_RegisterOrUpdatePreservesWorkloadAndPerformance(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.RegisterOrUpdate("agent_2", "platform", "backend", 5)
	require.NoError(t, err)
	_, err = r.RecordCompletion("agent_2", 1000, true)
	require.NoError(t, err)

	updated, err := r.RegisterOrUpdate("agent_2", "platform", "frontend", 8)
	require.NoError(t, err)
	require.Equal(t, "frontend", updated.Specialization)
	require.Equal(t, 8, updated.Capacity)
	require.Equal(t, 1, updated.Performance.TasksCompleted)
}

func TestRegistry_HeartbeatUpdatesTimestamp(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.RegisterOrUpdate("agent_3", "platform", "backend", 5)
	require.NoError(t, err)

	before := time.Now().UTC()
	time.Sleep(2 * time.Millisecond)
	updated, err := r.Heartbeat("agent_3")
	require.NoError(t, err)
	require.True(t, updated.LastHeartbeatAt.After(before))
}

func TestRegistry_HeartbeatMissingAgentErrors(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Heartbeat("ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_ByIDMissingErrors(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.ByID("ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_ListFiltersByTeam(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.RegisterOrUpdate("agent_4", "alpha", "backend", 5)
	require.NoError(t, err)
	_, err = r.RegisterOrUpdate("agent_5", "beta", "backend", 5)
	require.NoError(t, err)

	list, err := r.List(Filter{Team: "alpha"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "agent_4", list[0].AgentID)
}

func TestRegistry_CountActiveSince(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.RegisterOrUpdate("agent_6", "alpha", "backend", 5)
	require.NoError(t, err)

	cutoff := time.Now().UTC().Add(-time.Minute)
	count, err := r.CountActiveSince(cutoff)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	future := time.Now().UTC().Add(time.Hour)
	count, err = r.CountActiveSince(future)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestRegistry_RecordCompletionAveragesDuration(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.RegisterOrUpdate("agent_7", "alpha", "backend", 5)
	require.NoError(t, err)

	_, err = r.RecordCompletion("agent_7", 1000, true)
	require.NoError(t, err)
	updated, err := r.RecordCompletion("agent_7", 3000, false)
	require.NoError(t, err)

	require.Equal(t, 2, updated.Performance.TasksCompleted)
	require.InDelta(t, 2000, updated.Performance.AvgCompletionMs, 0.001)
	require.InDelta(t, 0.5, updated.Performance.SuccessRate, 0.001)
}
