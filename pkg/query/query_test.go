package query

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coordkernel/coordkernel/pkg/store"
	"github.com/coordkernel/coordkernel/pkg/types"
)

func newTestSurface(t *testing.T) (*Surface, store.Store) {
	t.Helper()
	dir := t.TempDir()
	s := store.New(filepath.Join(dir, "work_claims.json"), filepath.Join(dir, "work_claims_fast.jsonl"))
	return New(s), s
}

func TestSurface_GetAndList(t *testing.T) {
	q, s := newTestSurface(t)
	claim := &types.WorkClaim{
		WorkItemID: "work_1",
		WorkType:   "build",
		Priority:   types.PriorityHigh,
		Team:       "platform",
		Status:     types.WorkStatusActive,
		ClaimedAt:  time.Now(),
	}
	require.NoError(t, s.Insert(claim))

	got, err := q.Get("work_1")
	require.NoError(t, err)
	require.Equal(t, "work_1", got.WorkItemID)

	list, err := q.List(store.Filter{Team: "platform"})
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestSurface_CountByStatus(t *testing.T) {
	q, s := newTestSurface(t)
	require.NoError(t, s.Insert(&types.WorkClaim{WorkItemID: "w1", Status: types.WorkStatusActive, Priority: types.PriorityLow, ClaimedAt: time.Now()}))
	require.NoError(t, s.Insert(&types.WorkClaim{WorkItemID: "w2", Status: types.WorkStatusCompleted, Priority: types.PriorityLow, ClaimedAt: time.Now()}))
	require.NoError(t, s.Insert(&types.WorkClaim{WorkItemID: "w3", Status: types.WorkStatusCompleted, Priority: types.PriorityLow, ClaimedAt: time.Now()}))

	counts, err := q.CountBy(GroupByStatus)
	require.NoError(t, err)
	require.Equal(t, 1, counts["active"])
	require.Equal(t, 2, counts["completed"])
}

func TestSurface_CountByTeamDefaultsToNone(t *testing.T) {
	q, s := newTestSurface(t)
	require.NoError(t, s.Insert(&types.WorkClaim{WorkItemID: "w1", Status: types.WorkStatusActive, Priority: types.PriorityLow, ClaimedAt: time.Now()}))

	counts, err := q.CountBy(GroupByTeam)
	require.NoError(t, err)
	require.Equal(t, 1, counts["(none)"])
}
