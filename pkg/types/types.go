package types

import (
	"encoding/json"
	"time"
)

// Priority is the fixed closed set of work priorities.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ValidPriority reports whether p is one of the fixed priority values.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// WorkStatus is the fixed closed set of claim lifecycle states.
type WorkStatus string

const (
	WorkStatusActive     WorkStatus = "active"
	WorkStatusInProgress WorkStatus = "in_progress"
	WorkStatusCompleted  WorkStatus = "completed"
	WorkStatusFailed     WorkStatus = "failed"
)

// ValidWorkStatus reports whether s is one of the fixed status values.
func ValidWorkStatus(s WorkStatus) bool {
	switch s {
	case WorkStatusActive, WorkStatusInProgress, WorkStatusCompleted, WorkStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is a terminal lifecycle state.
func (s WorkStatus) Terminal() bool {
	return s == WorkStatusCompleted || s == WorkStatusFailed
}

// Result is the fixed closed set of completion outcomes.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailed  Result = "failed"
	ResultBlocked Result = "blocked"
)

// ValidResult reports whether r is one of the fixed result values.
func ValidResult(r Result) bool {
	switch r {
	case ResultSuccess, ResultFailed, ResultBlocked:
		return true
	}
	return false
}

// AgentStatus is the fixed closed set of agent states.
type AgentStatus string

const (
	AgentStatusActive   AgentStatus = "active"
	AgentStatusInactive AgentStatus = "inactive"
)

// TelemetryRef is the one-directional pointer a WorkClaim carries back to
// the span that created it. Spans never reference claims; claims reference
// the span that originated them.
type TelemetryRef struct {
	TraceID   string `json:"trace_id"`
	SpanID    string `json:"span_id"`
	Operation string `json:"operation"`
	Service   string `json:"service"`
}

// WorkClaim is an agent's assertion of exclusive responsibility for a unit
// of work. See spec.md §3.1.
type WorkClaim struct {
	WorkItemID      string       `json:"work_item_id"`
	AgentID         string       `json:"agent_id,omitempty"`
	WorkType        string       `json:"work_type"`
	Description     string       `json:"description"`
	Priority        Priority     `json:"priority"`
	Team            string       `json:"team,omitempty"`
	Status          WorkStatus   `json:"status"`
	ProgressPercent int          `json:"progress_percent"`
	ClaimedAt       time.Time    `json:"claimed_at"`
	LastUpdateAt    time.Time    `json:"last_update_at"`
	CompletedAt     *time.Time   `json:"completed_at,omitempty"`
	Result          Result       `json:"result,omitempty"`
	VelocityPoints  *int         `json:"velocity_points,omitempty"`
	Telemetry       TelemetryRef `json:"telemetry"`

	// Extra preserves any on-disk fields this version of the kernel does
	// not recognize, so they survive a read-modify-write cycle unchanged.
	Extra map[string]json.RawMessage `json:"-"`
}

var workClaimKnownFields = map[string]struct{}{
	"work_item_id": {}, "agent_id": {}, "work_type": {}, "description": {},
	"priority": {}, "team": {}, "status": {}, "progress_percent": {},
	"claimed_at": {}, "last_update_at": {}, "completed_at": {}, "result": {},
	"velocity_points": {}, "telemetry": {},
}

// MarshalJSON re-emits any fields captured in Extra alongside the known
// fields, satisfying the "unknown fields round-trip unchanged" invariant.
func (c WorkClaim) MarshalJSON() ([]byte, error) {
	type alias WorkClaim
	base, err := json.Marshal(alias(c))
	if err != nil {
		return nil, err
	}
	if len(c.Extra) == 0 {
		return base, nil
	}
	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range c.Extra {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// UnmarshalJSON captures any field not in the known schema into Extra.
func (c *WorkClaim) UnmarshalJSON(data []byte) error {
	type alias WorkClaim
	aux := (*alias)(c)
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	extra := map[string]json.RawMessage{}
	for k, v := range raw {
		if _, known := workClaimKnownFields[k]; !known {
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		c.Extra = extra
	} else {
		c.Extra = nil
	}
	return nil
}

// Clone returns a copy safe to mutate independently of the original.
func (c *WorkClaim) Clone() *WorkClaim {
	if c == nil {
		return nil
	}
	cp := *c
	if c.CompletedAt != nil {
		t := *c.CompletedAt
		cp.CompletedAt = &t
	}
	if c.VelocityPoints != nil {
		v := *c.VelocityPoints
		cp.VelocityPoints = &v
	}
	if c.Extra != nil {
		cp.Extra = make(map[string]json.RawMessage, len(c.Extra))
		for k, v := range c.Extra {
			cp.Extra[k] = v
		}
	}
	return &cp
}

// PerformanceCounters tracks an agent's rolling completion performance.
type PerformanceCounters struct {
	TasksCompleted  int     `json:"tasks_completed"`
	AvgCompletionMs float64 `json:"avg_completion_ms"`
	SuccessRate     float64 `json:"success_rate"`
}

// AgentRecord is an identity in the agent registry. See spec.md §3.1.
type AgentRecord struct {
	AgentID         string              `json:"agent_id"`
	Team            string              `json:"team,omitempty"`
	Specialization  string              `json:"specialization,omitempty"`
	Capacity        int                 `json:"capacity"`
	CurrentWorkload int                 `json:"current_workload"`
	Status          AgentStatus         `json:"status"`
	LastHeartbeatAt time.Time           `json:"last_heartbeat_at"`
	Performance     PerformanceCounters `json:"performance"`

	Extra map[string]json.RawMessage `json:"-"`
}

var agentRecordKnownFields = map[string]struct{}{
	"agent_id": {}, "team": {}, "specialization": {}, "capacity": {},
	"current_workload": {}, "status": {}, "last_heartbeat_at": {}, "performance": {},
}

// MarshalJSON re-emits any fields captured in Extra alongside the known
// fields.
func (a AgentRecord) MarshalJSON() ([]byte, error) {
	type alias AgentRecord
	base, err := json.Marshal(alias(a))
	if err != nil {
		return nil, err
	}
	if len(a.Extra) == 0 {
		return base, nil
	}
	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range a.Extra {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// UnmarshalJSON captures any field not in the known schema into Extra.
func (a *AgentRecord) UnmarshalJSON(data []byte) error {
	type alias AgentRecord
	aux := (*alias)(a)
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	extra := map[string]json.RawMessage{}
	for k, v := range raw {
		if _, known := agentRecordKnownFields[k]; !known {
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		a.Extra = extra
	} else {
		a.Extra = nil
	}
	return nil
}

// Clone returns a copy safe to mutate independently.
func (a *AgentRecord) Clone() *AgentRecord {
	if a == nil {
		return nil
	}
	cp := *a
	if a.Extra != nil {
		cp.Extra = make(map[string]json.RawMessage, len(a.Extra))
		for k, v := range a.Extra {
			cp.Extra[k] = v
		}
	}
	return &cp
}

// SpanKind mirrors the OpenTelemetry span kind enumeration relevant here;
// the kernel only ever emits internal spans.
type SpanKind string

const (
	SpanKindInternal SpanKind = "internal"
)

// SpanStatus is the outcome recorded on a finished span.
type SpanStatus string

const (
	SpanStatusOK      SpanStatus = "ok"
	SpanStatusError   SpanStatus = "error"
	SpanStatusTimeout SpanStatus = "timeout"
)

// TelemetrySpan is one append-only record of a state-changing operation.
// See spec.md §3.1 / §4.B.
type TelemetrySpan struct {
	TraceID        string                 `json:"trace_id"`
	SpanID         string                 `json:"span_id"`
	ParentSpanID   string                 `json:"parent_span_id,omitempty"`
	OperationName  string                 `json:"operation_name"`
	SpanKind       SpanKind               `json:"span_kind"`
	Status         SpanStatus             `json:"status"`
	StartTime      time.Time              `json:"start_time"`
	DurationMs     int64                  `json:"duration_ms"`
	ServiceName    string                 `json:"service.name"`
	ServiceVersion string                 `json:"service.version"`
	Attributes     map[string]interface{} `json:"span_attributes,omitempty"`
}

// ArchivedBatch is a timestamped file produced by the retention engine,
// containing a subset of completed claims. Rotated spans are archived as
// raw JSONL, not as an ArchivedBatch.
type ArchivedBatch struct {
	CreatedAt time.Time   `json:"created_at"`
	Claims    []WorkClaim `json:"claims,omitempty"`
}
