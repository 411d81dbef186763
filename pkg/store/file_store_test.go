package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coordkernel/coordkernel/pkg/types"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	dir := t.TempDir()
	return New(filepath.Join(dir, "work_claims.json"), filepath.Join(dir, "work_claims_fast.jsonl"))
}

func sampleClaim(id string) *types.WorkClaim {
	return &types.WorkClaim{
		WorkItemID:  id,
		AgentID:     "agent_1",
		WorkType:    "build",
		Description: "test claim",
		Priority:    types.PriorityMedium,
		Team:        "platform",
		Status:      types.WorkStatusActive,
		ClaimedAt:   time.Now(),
	}
}

func TestFileStore_InsertAndGet(t *testing.T) {
	s := newTestStore(t)
	claim := sampleClaim("work_1")
	require.NoError(t, s.Insert(claim))

	got, err := s.Get("work_1")
	require.NoError(t, err)
	require.Equal(t, "work_1", got.WorkItemID)
	require.Equal(t, "platform", got.Team)
}

func TestFileStore_InsertRejectsDuplicate(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Insert(sampleClaim("work_1")))
	err := s.Insert(sampleClaim("work_1"))
	require.ErrorIs(t, err, ErrDuplicateID)
}

func TestFileStore_AppendThenGetFromFast(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Append(sampleClaim("work_fast_1")))

	got, err := s.Get("work_fast_1")
	require.NoError(t, err)
	require.Equal(t, "work_fast_1", got.WorkItemID)
}

func TestFileStore_GetMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get("does-not-exist")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_UpdatePromotesFromFast(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Append(sampleClaim("work_2")))

	updated, err := s.Update("work_2", func(c *types.WorkClaim) error {
		c.Status = types.WorkStatusInProgress
		c.ProgressPercent = 50
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, types.WorkStatusInProgress, updated.Status)

	canonical, err := s.CanonicalSnapshot()
	require.NoError(t, err)
	require.Len(t, canonical, 1)
	require.Equal(t, 50, canonical[0].ProgressPercent)
}

func TestFileStore_UpdateMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Update("nope", func(c *types.WorkClaim) error { return nil })
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_ListMergesCanonicalAndFastCanonicalWins(t *testing.T) {
	s := newTestStore(t)
	base := sampleClaim("work_3")
	base.ClaimedAt = time.Now().Add(-time.Hour)
	require.NoError(t, s.Insert(base))

	stale := sampleClaim("work_3")
	stale.Status = types.WorkStatusFailed
	require.NoError(t, s.Append(stale))

	only := sampleClaim("work_4")
	require.NoError(t, s.Append(only))

	list, err := s.List(Filter{})
	require.NoError(t, err)
	require.Len(t, list, 2)

	var three *types.WorkClaim
	for _, c := range list {
		if c.WorkItemID == "work_3" {
			three = c
		}
	}
	require.NotNil(t, three)
	require.Equal(t, types.WorkStatusActive, three.Status)
}

func TestFileStore_ListFiltersByTeamAndStatus(t *testing.T) {
	s := newTestStore(t)
	a := sampleClaim("work_5")
	a.Team = "alpha"
	require.NoError(t, s.Insert(a))

	b := sampleClaim("work_6")
	b.Team = "beta"
	b.Status = types.WorkStatusCompleted
	require.NoError(t, s.Insert(b))

	list, err := s.List(Filter{Team: "alpha"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "work_5", list[0].WorkItemID)

	list, err = s.List(Filter{Status: types.WorkStatusCompleted})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "work_6", list[0].WorkItemID)
}

func TestFileStore_FastCountMatchesAppendedLines(t *testing.T) {
	s := newTestStore(t)
	c1 := sampleClaim("work_7")
	c1.Team = "alpha"
	c2 := sampleClaim("work_8")
	c2.Team = "beta"
	require.NoError(t, s.Append(c1))
	require.NoError(t, s.Append(c2))

	count, err := s.FastCount(Filter{Team: "alpha"})
	require.NoError(t, err)
	require.Equal(t, 1, count)

	count, err = s.FastCount(Filter{})
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestFileStore_CompactFastKeepsMostRecentLines(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 10; i++ {
		require.NoError(t, s.Append(sampleClaim("work_fast_"+string(rune('a'+i)))))
	}

	before, after, err := s.CompactFast(5, 3)
	require.NoError(t, err)
	require.Equal(t, 10, before)
	require.Equal(t, 3, after)

	lines, err := s.FastSnapshot()
	require.NoError(t, err)
	require.Len(t, lines, 3)
	require.Equal(t, "work_fast_h", lines[0].WorkItemID)
}

func TestFileStore_CompactFastNoopUnderThreshold(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Append(sampleClaim("work_only")))

	before, after, err := s.CompactFast(100, 10)
	require.NoError(t, err)
	require.Equal(t, 1, before)
	require.Equal(t, 1, after)
}

func TestFileStore_PromoteFromFastIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Append(sampleClaim("work_9")))

	first, err := s.PromoteFromFast("work_9")
	require.NoError(t, err)
	require.Equal(t, "work_9", first.WorkItemID)

	second, err := s.PromoteFromFast("work_9")
	require.NoError(t, err)
	require.Equal(t, "work_9", second.WorkItemID)

	canonical, err := s.CanonicalSnapshot()
	require.NoError(t, err)
	require.Len(t, canonical, 1)
}

func TestFileStore_PromoteFromFastMissingIsNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.PromoteFromFast("ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_PromoteFromFastMalformedRecordIsInvalid(t *testing.T) {
	s := newTestStore(t)
	malformed := sampleClaim("work_malformed")
	malformed.AgentID = ""
	require.NoError(t, s.Append(malformed))

	_, err := s.PromoteFromFast("work_malformed")
	require.ErrorIs(t, err, ErrInvalidClaimRecord)
}

func TestFileStore_ReplaceCanonical(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Insert(sampleClaim("work_10")))

	err := s.ReplaceCanonical([]*types.WorkClaim{sampleClaim("work_11")})
	require.NoError(t, err)

	canonical, err := s.CanonicalSnapshot()
	require.NoError(t, err)
	require.Len(t, canonical, 1)
	require.Equal(t, "work_11", canonical[0].WorkItemID)
}
