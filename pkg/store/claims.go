package store

import (
	"errors"
	"time"

	"github.com/coordkernel/coordkernel/pkg/types"
)

// Sentinel errors matching the kind taxonomy in spec.md §7.
var (
	ErrDuplicateID        = errors.New("store: duplicate work_item_id")
	ErrNotFound           = errors.New("store: work item not found")
	ErrInvalidClaimRecord = errors.New("store: fast-append record missing fields required for promotion")
)

// Filter narrows a List call. Zero values are unconstrained.
type Filter struct {
	Team     string
	Status   types.WorkStatus
	Priority types.Priority
	Since    time.Time
}

func (f Filter) matches(c *types.WorkClaim) bool {
	if f.Team != "" && c.Team != f.Team {
		return false
	}
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.Priority != "" && c.Priority != f.Priority {
		return false
	}
	if !f.Since.IsZero() && c.ClaimedAt.Before(f.Since) {
		return false
	}
	return true
}

// Store is the unified interface over the canonical and fast-append claim
// backends. See spec.md §4.D.
type Store interface {
	// Insert performs a canonical read-modify-write insert, rejecting
	// duplicate work_item_id values.
	Insert(claim *types.WorkClaim) error

	// Append performs a fast-path append; no uniqueness check against the
	// canonical store (the ID generator's monotonicity already guarantees
	// uniqueness).
	Append(claim *types.WorkClaim) error

	// Get returns the merged view of a single claim: canonical wins over
	// fast-append on conflict.
	Get(workItemID string) (*types.WorkClaim, error)

	// Update merges patch into the canonical record for workItemID. If the
	// claim is currently only present in the fast-append store, Update
	// first promotes it into canonical (PromoteFromFast) before applying
	// patch.
	Update(workItemID string, patch func(*types.WorkClaim) error) (*types.WorkClaim, error)

	// List returns a merged, de-duplicated view of both backends sorted by
	// ClaimedAt, canonical wins on conflict.
	List(filter Filter) ([]*types.WorkClaim, error)

	// FastCount counts fast-append lines matching filter via substring
	// matching, without a full JSON parse (spec.md §4.I "Fast count").
	FastCount(filter Filter) (int, error)

	// CompactFast retains the most recent fastKeepLines of the fast-append
	// file once it exceeds fastMaxLines, returning the line counts before
	// and after.
	CompactFast(fastMaxLines, fastKeepLines int) (before, after int, err error)

	// PromoteFromFast moves a claim found only in the fast-append store
	// into canonical, returning the promoted record. It is a no-op
	// (returns the existing canonical record) if the claim is already
	// canonical.
	PromoteFromFast(workItemID string) (*types.WorkClaim, error)

	// ReplaceCanonical atomically replaces the entire canonical array
	// without reading it first; the retention engine uses UpdateCanonical
	// instead.
	ReplaceCanonical(claims []*types.WorkClaim) error

	// UpdateCanonical performs a single locked read-modify-write over the
	// whole canonical array: fn receives the current claims and returns
	// the claims to persist in their place. Used by the retention engine
	// so a filter-and-replace pass observes no concurrent writer, the
	// same guarantee Update gives a single-record patch.
	UpdateCanonical(fn func([]*types.WorkClaim) ([]*types.WorkClaim, error)) ([]*types.WorkClaim, error)

	// CanonicalSnapshot returns every record currently in the canonical
	// store, unfiltered — a point-in-time read with no lock held past
	// the read itself, for read-only reporting that does not feed a later
	// write.
	CanonicalSnapshot() ([]*types.WorkClaim, error)

	// FastSnapshot returns every record currently in the fast-append
	// store, unfiltered.
	FastSnapshot() ([]*types.WorkClaim, error)
}
