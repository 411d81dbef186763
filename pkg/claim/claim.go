package claim

import (
	"errors"
	"fmt"
	"time"

	"github.com/coordkernel/coordkernel/pkg/agents"
	"github.com/coordkernel/coordkernel/pkg/fsutil"
	"github.com/coordkernel/coordkernel/pkg/ids"
	"github.com/coordkernel/coordkernel/pkg/lock"
	"github.com/coordkernel/coordkernel/pkg/log"
	"github.com/coordkernel/coordkernel/pkg/metrics"
	"github.com/coordkernel/coordkernel/pkg/store"
	"github.com/coordkernel/coordkernel/pkg/telemetry"
	"github.com/coordkernel/coordkernel/pkg/types"
)

// Sentinel errors matching the taxonomy in spec.md §7.
var (
	ErrInvalidPriority    = errors.New("claim: invalid priority")
	ErrInvalidDescription = errors.New("claim: description must be 1..1024 characters")
	ErrInvalidTeam        = errors.New("claim: team must be 0..128 characters")
	ErrTerminalState      = errors.New("claim: operation on terminal claim")
	ErrProgressRegression = errors.New("claim: progress_percent must be non-decreasing")
	ErrInvalidResult      = errors.New("claim: invalid result")
	ErrInvalidProgress    = errors.New("claim: progress_percent must be within 0..100")
	ErrInvalidVelocity    = errors.New("claim: velocity_points must be non-negative")
)

const (
	maxDescriptionLen = 1024
	maxTeamLen        = 128
)

// Engine is the Claim Engine: the claim/progress/complete state machine
// atop a Store, an agent Registry, and a telemetry Emitter.
type Engine struct {
	Store     store.Store
	Agents    *agents.Registry
	Telemetry *telemetry.Emitter

	// CoordinationLogPath, when set, receives one appended record in its
	// JSON array per completed or failed claim: the persisted history named in spec.md
	// §6.1's coordination_log.json. Left empty, nothing is written.
	CoordinationLogPath string
}

// New wires a Claim Engine from its three collaborators.
func New(s store.Store, a *agents.Registry, t *telemetry.Emitter) *Engine {
	return &Engine{Store: s, Agents: a, Telemetry: t}
}

func validateClaimInputs(description, team string, priority types.Priority) error {
	if !types.ValidPriority(priority) {
		return fmt.Errorf("%w: %s", ErrInvalidPriority, priority)
	}
	if len(description) < 1 || len(description) > maxDescriptionLen {
		return ErrInvalidDescription
	}
	if len(team) > maxTeamLen {
		return ErrInvalidTeam
	}
	return nil
}

func (e *Engine) emitSpan(span *telemetry.Span, status types.SpanStatus) {
	if span == nil {
		return
	}
	span.Finish(status)
}

// refreshActiveGauge recomputes coordkernel_active_claims from a merged
// list. Best-effort: a listing failure is logged, not propagated, since no
// caller's state change should be rolled back over a gauge refresh.
func (e *Engine) refreshActiveGauge() {
	claims, err := e.Store.List(store.Filter{})
	if err != nil {
		log.WithComponent("claim").Warn().Err(err).Msg("active claims gauge refresh failed")
		return
	}
	active := 0
	for _, c := range claims {
		if !c.Status.Terminal() {
			active++
		}
	}
	metrics.ActiveClaimsGauge.Set(float64(active))
}

// appendCoordinationLog records a completed claim into the persistent
// history file. Best-effort: a failure here is logged, not propagated,
// since the claim's canonical state is already durable.
func (e *Engine) appendCoordinationLog(c *types.WorkClaim) {
	if e.CoordinationLogPath == "" {
		return
	}
	lockErr := lock.WithLock(e.CoordinationLogPath, lock.DefaultTimeout, func() error {
		var history []*types.WorkClaim
		if err := fsutil.ReadJSON(e.CoordinationLogPath, &history); err != nil {
			return err
		}
		history = append(history, c)
		return fsutil.WriteJSONAtomic(e.CoordinationLogPath, history)
	})
	if lockErr != nil {
		log.WithWorkID(c.WorkItemID).Warn().Err(lockErr).Msg("coordination log append failed")
	}
}

// Claim performs the fast-path claim: append-only insert into the
// fast-append store, no agent registry touch. Returns the new work_id and
// the trace_id the caller should carry forward.
func (e *Engine) Claim(agentID, workType, description, team string, priority types.Priority, parentTraceID string) (workID, traceID string, err error) {
	if err := validateClaimInputs(description, team, priority); err != nil {
		return "", "", err
	}

	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDurationVec(metrics.ClaimLatency, "fast")
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.ClaimsTotal.WithLabelValues("fast", outcome).Inc()
	}()

	span, err := e.Telemetry.StartSpan("work.claim", parentTraceID, "")
	if err != nil {
		return "", "", fmt.Errorf("claim: start span: %w", err)
	}
	defer func() {
		status := types.SpanStatusOK
		if err != nil {
			status = types.SpanStatusError
		}
		e.emitSpan(span, status)
	}()

	id, err := ids.New(ids.KindWork)
	if err != nil {
		return "", "", fmt.Errorf("claim: generate id: %w", err)
	}

	now := time.Now().UTC()
	c := &types.WorkClaim{
		WorkItemID:   id,
		AgentID:      agentID,
		WorkType:     workType,
		Description:  description,
		Priority:     priority,
		Team:         team,
		Status:       types.WorkStatusActive,
		ClaimedAt:    now,
		LastUpdateAt: now,
		Telemetry: types.TelemetryRef{
			TraceID:   span.TraceID(),
			SpanID:    span.SpanID(),
			Operation: "work.claim",
			Service:   "claim-engine",
		},
	}

	if err = e.Store.Append(c); err != nil {
		if errors.Is(err, store.ErrDuplicateID) {
			id, regenErr := ids.New(ids.KindWork)
			if regenErr != nil {
				return "", "", fmt.Errorf("claim: regenerate id: %w", regenErr)
			}
			c.WorkItemID = id
			if err = e.Store.Append(c); err != nil {
				return "", "", fmt.Errorf("claim: append after retry: %w", err)
			}
		} else {
			return "", "", fmt.Errorf("claim: append: %w", err)
		}
	}

	span.SetAttribute("work_item_id", c.WorkItemID)
	span.SetAttribute("priority", string(priority))
	e.refreshActiveGauge()
	return c.WorkItemID, span.TraceID(), nil
}

// ClaimSlow performs the canonical-path claim: insert into the canonical
// store and upsert the agent registry in the same call.
func (e *Engine) ClaimSlow(agentID, team, specialization string, capacity int, workType, description string, priority types.Priority, parentTraceID string) (workID, traceID string, err error) {
	if err := validateClaimInputs(description, team, priority); err != nil {
		return "", "", err
	}

	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDurationVec(metrics.ClaimLatency, "slow")
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.ClaimsTotal.WithLabelValues("slow", outcome).Inc()
	}()

	span, err := e.Telemetry.StartSpan("work.claim", parentTraceID, "")
	if err != nil {
		return "", "", fmt.Errorf("claim: start span: %w", err)
	}
	defer func() {
		status := types.SpanStatusOK
		if err != nil {
			status = types.SpanStatusError
		}
		e.emitSpan(span, status)
	}()

	id, err := ids.New(ids.KindWork)
	if err != nil {
		return "", "", fmt.Errorf("claim: generate id: %w", err)
	}

	now := time.Now().UTC()
	c := &types.WorkClaim{
		WorkItemID:   id,
		AgentID:      agentID,
		WorkType:     workType,
		Description:  description,
		Priority:     priority,
		Team:         team,
		Status:       types.WorkStatusActive,
		ClaimedAt:    now,
		LastUpdateAt: now,
		Telemetry: types.TelemetryRef{
			TraceID:   span.TraceID(),
			SpanID:    span.SpanID(),
			Operation: "work.claim",
			Service:   "claim-engine",
		},
	}

	if err = e.Store.Insert(c); err != nil {
		if errors.Is(err, store.ErrDuplicateID) {
			id, regenErr := ids.New(ids.KindWork)
			if regenErr != nil {
				return "", "", fmt.Errorf("claim: regenerate id: %w", regenErr)
			}
			c.WorkItemID = id
			if err = e.Store.Insert(c); err != nil {
				return "", "", fmt.Errorf("claim: insert after retry: %w", err)
			}
		} else {
			return "", "", fmt.Errorf("claim: insert: %w", err)
		}
	}

	if _, err = e.Agents.RegisterOrUpdate(agentID, team, specialization, capacity); err != nil {
		return c.WorkItemID, span.TraceID(), fmt.Errorf("claim: upsert agent: %w", err)
	}

	span.SetAttribute("work_item_id", c.WorkItemID)
	span.SetAttribute("priority", string(priority))
	e.refreshActiveGauge()
	return c.WorkItemID, span.TraceID(), nil
}

// Progress advances a claim's progress_percent, promoting it from the
// fast-append store into canonical if necessary.
func (e *Engine) Progress(workID string, percent int, parentTraceID string) (err error) {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidProgress, percent)
	}

	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.ProgressTotal.WithLabelValues(outcome).Inc()
	}()

	span, err := e.Telemetry.StartSpan("work.progress", parentTraceID, "")
	if err != nil {
		return fmt.Errorf("claim: start span: %w", err)
	}
	defer func() {
		status := types.SpanStatusOK
		if err != nil {
			status = types.SpanStatusError
		}
		e.emitSpan(span, status)
	}()

	if _, promoteErr := e.Store.PromoteFromFast(workID); promoteErr != nil && !errors.Is(promoteErr, store.ErrInvalidClaimRecord) {
		return fmt.Errorf("claim: promote: %w", promoteErr)
	}

	_, err = e.Store.Update(workID, func(c *types.WorkClaim) error {
		if c.Status.Terminal() {
			log.WithWorkID(workID).Warn().Msg("progress on terminal claim ignored")
			return ErrTerminalState
		}
		if percent < c.ProgressPercent {
			return ErrProgressRegression
		}
		c.ProgressPercent = percent
		if percent > 0 && c.Status == types.WorkStatusActive {
			c.Status = types.WorkStatusInProgress
		}
		c.LastUpdateAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return err
	}

	span.SetAttribute("work_item_id", workID)
	span.SetAttribute("progress_percent", percent)
	return nil
}

// Complete performs the terminal transition for a claim, promoting it from
// fast-append first if necessary, and updates the owning agent's
// performance counters.
func (e *Engine) Complete(workID string, result types.Result, velocityPoints int, parentTraceID string) (err error) {
	if !types.ValidResult(result) {
		return fmt.Errorf("%w: %s", ErrInvalidResult, result)
	}
	if velocityPoints < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidVelocity, velocityPoints)
	}

	span, err := e.Telemetry.StartSpan("work.complete", parentTraceID, "")
	if err != nil {
		return fmt.Errorf("claim: start span: %w", err)
	}
	defer func() {
		status := types.SpanStatusOK
		if err != nil {
			status = types.SpanStatusError
		}
		e.emitSpan(span, status)
	}()

	promoted, promoteErr := e.Store.PromoteFromFast(workID)
	if promoteErr != nil && !errors.Is(promoteErr, store.ErrInvalidClaimRecord) {
		return fmt.Errorf("claim: promote: %w", promoteErr)
	}
	if promoteErr != nil {
		return fmt.Errorf("claim: complete: %w", promoteErr)
	}
	_ = promoted

	var (
		agentID     string
		durationMs  float64
		finalStatus types.WorkStatus
		alreadyDone bool
	)

	updated, err := e.Store.Update(workID, func(c *types.WorkClaim) error {
		if c.Status.Terminal() {
			log.WithWorkID(workID).Warn().Msg("complete on already-terminal claim ignored")
			alreadyDone = true
			return nil
		}
		now := time.Now().UTC()
		if result == types.ResultFailed {
			c.Status = types.WorkStatusFailed
		} else {
			c.Status = types.WorkStatusCompleted
		}
		c.CompletedAt = &now
		c.Result = result
		vp := velocityPoints
		c.VelocityPoints = &vp
		c.LastUpdateAt = now
		agentID = c.AgentID
		finalStatus = c.Status
		durationMs = float64(now.Sub(c.ClaimedAt).Milliseconds())
		return nil
	})
	if err != nil {
		return fmt.Errorf("claim: complete: %w", err)
	}
	if alreadyDone {
		span.SetAttribute("idempotent", true)
		return nil
	}

	metrics.CompleteTotal.WithLabelValues(string(result)).Inc()

	if agentID != "" {
		if _, agentErr := e.Agents.RecordCompletion(agentID, durationMs, finalStatus == types.WorkStatusCompleted); agentErr != nil && !errors.Is(agentErr, agents.ErrNotFound) {
			log.WithWorkID(workID).Warn().Err(agentErr).Msg("agent performance update failed after claim completion")
		}
	}

	span.SetAttribute("work_item_id", workID)
	span.SetAttribute("result", string(result))
	span.SetAttribute("status", string(updated.Status))
	e.refreshActiveGauge()
	e.appendCoordinationLog(updated)
	return nil
}
