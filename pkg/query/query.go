package query

import (
	"github.com/coordkernel/coordkernel/pkg/store"
	"github.com/coordkernel/coordkernel/pkg/types"
)

// GroupField is the fixed set of fields count_by may group on.
type GroupField string

const (
	GroupByStatus   GroupField = "status"
	GroupByPriority GroupField = "priority"
	GroupByTeam     GroupField = "team"
)

// Surface is the Query Surface: a thin, lock-free read path over a Store.
type Surface struct {
	Store store.Store
}

// New wires a Surface over s.
func New(s store.Store) *Surface {
	return &Surface{Store: s}
}

// Get returns the merged view of a single claim.
func (q *Surface) Get(workItemID string) (*types.WorkClaim, error) {
	return q.Store.Get(workItemID)
}

// List returns the merged, filtered, claimed_at-sorted view.
func (q *Surface) List(filter store.Filter) ([]*types.WorkClaim, error) {
	return q.Store.List(filter)
}

// FastCount is the substring-matching hot-path count over fast-append
// lines only; it does not include canonical-only claims.
func (q *Surface) FastCount(filter store.Filter) (int, error) {
	return q.Store.FastCount(filter)
}

func groupKey(c *types.WorkClaim, field GroupField) string {
	switch field {
	case GroupByStatus:
		return string(c.Status)
	case GroupByPriority:
		return string(c.Priority)
	case GroupByTeam:
		if c.Team == "" {
			return "(none)"
		}
		return c.Team
	default:
		return ""
	}
}

// CountBy returns grouped counts over the merged view, suitable for
// dashboards.
func (q *Surface) CountBy(field GroupField) (map[string]int, error) {
	claims, err := q.Store.List(store.Filter{})
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, c := range claims {
		counts[groupKey(c, field)]++
	}
	return counts, nil
}
