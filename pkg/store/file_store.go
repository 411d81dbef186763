package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/coordkernel/coordkernel/pkg/fsutil"
	"github.com/coordkernel/coordkernel/pkg/lock"
	"github.com/coordkernel/coordkernel/pkg/types"
)

// FileStore is the file-backed implementation of Store: a canonical JSON
// array plus a fast-append JSONL file, each guarded by its own advisory
// lock. See spec.md §4.D.
type FileStore struct {
	CanonicalPath string
	FastPath      string
	LockTimeout   time.Duration
}

// New returns a FileStore rooted at canonicalPath/fastPath.
func New(canonicalPath, fastPath string) *FileStore {
	return &FileStore{CanonicalPath: canonicalPath, FastPath: fastPath}
}

func (s *FileStore) timeout() time.Duration {
	if s.LockTimeout > 0 {
		return s.LockTimeout
	}
	return lock.DefaultTimeout
}

func (s *FileStore) readCanonical() ([]*types.WorkClaim, error) {
	var claims []*types.WorkClaim
	if err := fsutil.ReadJSON(s.CanonicalPath, &claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *FileStore) writeCanonical(claims []*types.WorkClaim) error {
	if claims == nil {
		claims = []*types.WorkClaim{}
	}
	return fsutil.WriteJSONAtomic(s.CanonicalPath, claims)
}

func (s *FileStore) withCanonicalLock(fn func() error) error {
	return lock.WithLock(s.CanonicalPath, s.timeout(), fn)
}

func (s *FileStore) withFastLock(fn func() error) error {
	return lock.WithLock(s.FastPath, s.timeout(), fn)
}

// Insert performs a canonical read-modify-write insert, rejecting duplicate
// work_item_id values.
func (s *FileStore) Insert(claim *types.WorkClaim) error {
	return s.withCanonicalLock(func() error {
		claims, err := s.readCanonical()
		if err != nil {
			return err
		}
		for _, c := range claims {
			if c.WorkItemID == claim.WorkItemID {
				return fmt.Errorf("%w: %s", ErrDuplicateID, claim.WorkItemID)
			}
		}
		claims = append(claims, claim.Clone())
		return s.writeCanonical(claims)
	})
}

// Append performs a fast-path append.
func (s *FileStore) Append(claim *types.WorkClaim) error {
	return s.withFastLock(func() error {
		line, err := json.Marshal(claim)
		if err != nil {
			return fmt.Errorf("store: marshal fast-append claim: %w", err)
		}
		return fsutil.AppendLine(s.FastPath, line)
	})
}

func (s *FileStore) readFast() ([]*types.WorkClaim, error) {
	lines, err := fsutil.ReadLines(s.FastPath)
	if err != nil {
		return nil, err
	}
	claims := make([]*types.WorkClaim, 0, len(lines))
	for _, line := range lines {
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var c types.WorkClaim
		if err := json.Unmarshal(line, &c); err != nil {
			return nil, fmt.Errorf("store: parse fast-append line: %w", err)
		}
		claims = append(claims, &c)
	}
	return claims, nil
}

// merge combines canonical and fast-append claims, canonical winning on
// work_item_id conflicts, preserving the latest fast-append record when a
// claim only appears there (a work_item_id may be re-appended several times
// as an agent progresses a claim through the fast path).
func merge(canonical, fast []*types.WorkClaim) []*types.WorkClaim {
	byID := make(map[string]*types.WorkClaim, len(canonical)+len(fast))
	order := make([]string, 0, len(canonical)+len(fast))
	for _, c := range fast {
		if _, seen := byID[c.WorkItemID]; !seen {
			order = append(order, c.WorkItemID)
		}
		byID[c.WorkItemID] = c
	}
	for _, c := range canonical {
		if _, seen := byID[c.WorkItemID]; !seen {
			order = append(order, c.WorkItemID)
		}
		byID[c.WorkItemID] = c
	}
	out := make([]*types.WorkClaim, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out
}

// Get returns the merged view of a single claim.
func (s *FileStore) Get(workItemID string) (*types.WorkClaim, error) {
	canonical, err := s.readCanonical()
	if err != nil {
		return nil, err
	}
	for _, c := range canonical {
		if c.WorkItemID == workItemID {
			return c, nil
		}
	}
	fast, err := s.readFast()
	if err != nil {
		return nil, err
	}
	var found *types.WorkClaim
	for _, c := range fast {
		if c.WorkItemID == workItemID {
			found = c
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, workItemID)
	}
	return found, nil
}

// Update merges patch into the canonical record for workItemID, promoting
// from fast-append first if necessary.
func (s *FileStore) Update(workItemID string, patch func(*types.WorkClaim) error) (*types.WorkClaim, error) {
	var updated *types.WorkClaim
	err := s.withCanonicalLock(func() error {
		claims, err := s.readCanonical()
		if err != nil {
			return err
		}
		for _, c := range claims {
			if c.WorkItemID == workItemID {
				if err := patch(c); err != nil {
					return err
				}
				updated = c
				return s.writeCanonical(claims)
			}
		}
		// not canonical yet: look in fast-append and promote in place.
		fast, err := s.readFast()
		if err != nil {
			return err
		}
		var found *types.WorkClaim
		for _, c := range fast {
			if c.WorkItemID == workItemID {
				found = c
			}
		}
		if found == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, workItemID)
		}
		if err := validateForPromotion(found); err != nil {
			return err
		}
		if err := patch(found); err != nil {
			return err
		}
		claims = append(claims, found)
		updated = found
		return s.writeCanonical(claims)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// List returns a merged, filtered, de-duplicated view sorted by ClaimedAt.
func (s *FileStore) List(filter Filter) ([]*types.WorkClaim, error) {
	canonical, err := s.readCanonical()
	if err != nil {
		return nil, err
	}
	fast, err := s.readFast()
	if err != nil {
		return nil, err
	}
	merged := merge(canonical, fast)
	out := make([]*types.WorkClaim, 0, len(merged))
	for _, c := range merged {
		if filter.matches(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ClaimedAt.Before(out[j].ClaimedAt)
	})
	return out, nil
}

// FastCount counts fast-append lines matching filter via substring matching
// on the raw line text, avoiding a full JSON parse on the hot path (spec.md
// §4.I "Fast count"). Since is not applied: FastCount is a cheap
// team/status/priority estimate only, callers needing exact semantics use List.
func (s *FileStore) FastCount(filter Filter) (int, error) {
	lines, err := fsutil.ReadLines(s.FastPath)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, line := range lines {
		text := string(line)
		if filter.Team != "" && !strings.Contains(text, `"team":"`+filter.Team+`"`) {
			continue
		}
		if filter.Status != "" && !strings.Contains(text, `"status":"`+string(filter.Status)+`"`) {
			continue
		}
		if filter.Priority != "" && !strings.Contains(text, `"priority":"`+string(filter.Priority)+`"`) {
			continue
		}
		count++
	}
	return count, nil
}

// CompactFast retains the most recent fastKeepLines once the fast-append
// file exceeds fastMaxLines.
func (s *FileStore) CompactFast(fastMaxLines, fastKeepLines int) (before, after int, err error) {
	err = s.withFastLock(func() error {
		lines, rerr := fsutil.ReadLines(s.FastPath)
		if rerr != nil {
			return rerr
		}
		before = len(lines)
		if before <= fastMaxLines {
			after = before
			return nil
		}
		if fastKeepLines > before {
			fastKeepLines = before
		}
		kept := lines[before-fastKeepLines:]
		data := make([]byte, 0)
		for _, l := range kept {
			data = append(data, l...)
			data = append(data, '\n')
		}
		if werr := fsutil.WriteRaw(s.FastPath, data); werr != nil {
			return werr
		}
		after = len(kept)
		return nil
	})
	return before, after, err
}

// validateForPromotion reports whether a fast-append record carries every
// field a canonical record requires. A record can parse as valid JSON and
// still be missing fields that were never written on a partial append.
func validateForPromotion(c *types.WorkClaim) error {
	if c.WorkItemID == "" || c.WorkType == "" || c.AgentID == "" || c.ClaimedAt.IsZero() {
		return fmt.Errorf("%w: %s", ErrInvalidClaimRecord, c.WorkItemID)
	}
	return nil
}

// PromoteFromFast moves a claim found only in the fast-append store into
// canonical. Returns ErrNotFound if workItemID is absent from both
// backends, ErrInvalidClaimRecord if the fast-append record exists but is
// missing fields required for promotion.
func (s *FileStore) PromoteFromFast(workItemID string) (*types.WorkClaim, error) {
	var promoted *types.WorkClaim
	err := s.withCanonicalLock(func() error {
		claims, err := s.readCanonical()
		if err != nil {
			return err
		}
		for _, c := range claims {
			if c.WorkItemID == workItemID {
				promoted = c
				return nil
			}
		}
		fast, err := s.readFast()
		if err != nil {
			return err
		}
		var found *types.WorkClaim
		for _, c := range fast {
			if c.WorkItemID == workItemID {
				found = c
			}
		}
		if found == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, workItemID)
		}
		if err := validateForPromotion(found); err != nil {
			return err
		}
		claims = append(claims, found)
		promoted = found
		return s.writeCanonical(claims)
	})
	if err != nil {
		return nil, err
	}
	return promoted, nil
}

// ReplaceCanonical atomically replaces the entire canonical array.
func (s *FileStore) ReplaceCanonical(claims []*types.WorkClaim) error {
	return s.withCanonicalLock(func() error {
		return s.writeCanonical(claims)
	})
}

// UpdateCanonical performs a locked read-modify-write over the whole
// canonical array, so a caller computing a filtered replacement never
// races a concurrent Insert/Update.
func (s *FileStore) UpdateCanonical(fn func([]*types.WorkClaim) ([]*types.WorkClaim, error)) ([]*types.WorkClaim, error) {
	var result []*types.WorkClaim
	err := s.withCanonicalLock(func() error {
		claims, err := s.readCanonical()
		if err != nil {
			return err
		}
		next, err := fn(claims)
		if err != nil {
			return err
		}
		result = next
		return s.writeCanonical(next)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CanonicalSnapshot returns every record currently in the canonical store.
// A point-in-time read with no lock held past the read itself; callers
// that read-modify-write the canonical array must use UpdateCanonical
// instead.
func (s *FileStore) CanonicalSnapshot() ([]*types.WorkClaim, error) {
	return s.readCanonical()
}

// FastSnapshot returns every record currently in the fast-append store.
func (s *FileStore) FastSnapshot() ([]*types.WorkClaim, error) {
	return s.readFast()
}

var _ Store = (*FileStore)(nil)
