package agents

import (
	"errors"
	"fmt"
	"time"

	"github.com/coordkernel/coordkernel/pkg/fsutil"
	"github.com/coordkernel/coordkernel/pkg/lock"
	"github.com/coordkernel/coordkernel/pkg/metrics"
	"github.com/coordkernel/coordkernel/pkg/types"
)

// ErrNotFound is returned when an agent_id has never been registered.
var ErrNotFound = errors.New("agents: agent not found")

// Filter narrows a List call. Zero values are unconstrained.
type Filter struct {
	Team           string
	Specialization string
	Status         types.AgentStatus
}

func (f Filter) matches(a *types.AgentRecord) bool {
	if f.Team != "" && a.Team != f.Team {
		return false
	}
	if f.Specialization != "" && a.Specialization != f.Specialization {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	return true
}

// Registry is the file-backed agent identity store. See spec.md §4.E.
type Registry struct {
	Path        string
	LockTimeout time.Duration
}

// New returns a Registry rooted at path.
func New(path string) *Registry {
	return &Registry{Path: path}
}

func (r *Registry) timeout() time.Duration {
	if r.LockTimeout > 0 {
		return r.LockTimeout
	}
	return lock.DefaultTimeout
}

func (r *Registry) read() ([]*types.AgentRecord, error) {
	var agents []*types.AgentRecord
	if err := fsutil.ReadJSON(r.Path, &agents); err != nil {
		return nil, err
	}
	return agents, nil
}

func (r *Registry) write(agents []*types.AgentRecord) error {
	if agents == nil {
		agents = []*types.AgentRecord{}
	}
	return fsutil.WriteJSONAtomic(r.Path, agents)
}

func (r *Registry) withLock(fn func() error) error {
	return lock.WithLock(r.Path, r.timeout(), fn)
}

// refreshMetrics sets the AgentsTotal gauge per status from the current
// in-memory list, called after every mutation under lock.
func refreshMetrics(list []*types.AgentRecord) {
	counts := make(map[types.AgentStatus]int)
	for _, a := range list {
		counts[a.Status]++
	}
	for status, n := range counts {
		metrics.AgentsTotal.WithLabelValues(string(status)).Set(float64(n))
	}
}

// RegisterOrUpdate upserts an agent by identity: if agentID already exists
// its mutable fields (team, specialization, capacity, status) are replaced
// and last_heartbeat_at is bumped; current_workload and performance counters
// are left untouched so a re-registration never discards progress history.
// A brand-new agent_id is inserted with zeroed workload and performance.
func (r *Registry) RegisterOrUpdate(agentID, team, specialization string, capacity int) (*types.AgentRecord, error) {
	var result *types.AgentRecord
	err := r.withLock(func() error {
		list, err := r.read()
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		for _, a := range list {
			if a.AgentID == agentID {
				a.Team = team
				a.Specialization = specialization
				a.Capacity = capacity
				a.Status = types.AgentStatusActive
				a.LastHeartbeatAt = now
				result = a
				if err := r.write(list); err != nil {
					return err
				}
				refreshMetrics(list)
				return nil
			}
		}
		created := &types.AgentRecord{
			AgentID:         agentID,
			Team:            team,
			Specialization:  specialization,
			Capacity:        capacity,
			CurrentWorkload: 0,
			Status:          types.AgentStatusActive,
			LastHeartbeatAt: now,
		}
		list = append(list, created)
		result = created
		if err := r.write(list); err != nil {
			return err
		}
		refreshMetrics(list)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Heartbeat bumps last_heartbeat_at and marks the agent active.
func (r *Registry) Heartbeat(agentID string) (*types.AgentRecord, error) {
	var result *types.AgentRecord
	err := r.withLock(func() error {
		list, err := r.read()
		if err != nil {
			return err
		}
		for _, a := range list {
			if a.AgentID == agentID {
				a.LastHeartbeatAt = time.Now().UTC()
				a.Status = types.AgentStatusActive
				result = a
				if err := r.write(list); err != nil {
					return err
				}
				refreshMetrics(list)
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrNotFound, agentID)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ByID returns the agent record for agentID.
func (r *Registry) ByID(agentID string) (*types.AgentRecord, error) {
	list, err := r.read()
	if err != nil {
		return nil, err
	}
	for _, a := range list {
		if a.AgentID == agentID {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, agentID)
}

// List returns every agent matching filter.
func (r *Registry) List(filter Filter) ([]*types.AgentRecord, error) {
	list, err := r.read()
	if err != nil {
		return nil, err
	}
	out := make([]*types.AgentRecord, 0, len(list))
	for _, a := range list {
		if filter.matches(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

// CountActiveSince counts agents whose last_heartbeat_at is at or after
// since.
func (r *Registry) CountActiveSince(since time.Time) (int, error) {
	list, err := r.read()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, a := range list {
		if !a.LastHeartbeatAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// RecordCompletion folds a finished claim's duration and outcome into an
// agent's rolling performance counters. durationMs is the claim's total
// wall time from claimed_at to completed_at.
func (r *Registry) RecordCompletion(agentID string, durationMs float64, succeeded bool) (*types.AgentRecord, error) {
	var result *types.AgentRecord
	err := r.withLock(func() error {
		list, err := r.read()
		if err != nil {
			return err
		}
		for _, a := range list {
			if a.AgentID == agentID {
				n := a.Performance.TasksCompleted
				a.Performance.AvgCompletionMs = (a.Performance.AvgCompletionMs*float64(n) + durationMs) / float64(n+1)
				successes := a.Performance.SuccessRate * float64(n)
				if succeeded {
					successes++
				}
				a.Performance.TasksCompleted = n + 1
				a.Performance.SuccessRate = successes / float64(n+1)
				if a.CurrentWorkload > 0 {
					a.CurrentWorkload--
				}
				result = a
				if err := r.write(list); err != nil {
					return err
				}
				refreshMetrics(list)
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrNotFound, agentID)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
