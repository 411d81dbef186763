/*
Package types defines the core data structures used throughout the
coordination kernel.

This package contains the fundamental entities that make up the swarm's
shared state: work claims, agent records, and telemetry spans. These types
are used by every other package for persistence, state transitions, and
telemetry emission.

# Architecture

The types package is the foundation of the kernel's data model. It defines:

  - WorkClaim: a unit of work claimed by an agent, with its lifecycle state
  - AgentRecord: an identity in the agent registry, with capacity/workload
  - TelemetrySpan: one OpenTelemetry-shaped record of a state-changing op
  - ArchivedBatch: a timestamped batch of claims removed by retention

All types are designed to be:
  - Serializable (JSON, with stable snake_case field names on disk)
  - Forward-compatible (unknown on-disk fields round-trip unchanged)
  - Self-documenting (fixed closed enums, validated at the boundary)

# Core Types

Lifecycle:

	WorkClaim.Status follows a one-way state machine:
	  active -> in_progress -> completed
	                        -> failed
	TTL pruning may remove a non-terminal claim outside this machine; it
	never rewrites status, only deletes the record.

Enumerations:

	All enum-shaped fields (Priority, WorkStatus, Result, AgentStatus) are
	typed string constants validated on write and stored as strings for
	forward compatibility:

	  type Priority string
	  const (
	      PriorityLow      Priority = "low"
	      PriorityMedium   Priority = "medium"
	      PriorityHigh     Priority = "high"
	      PriorityCritical Priority = "critical"
	  )

Unknown fields:

	WorkClaim and AgentRecord carry an Extra map populated from any JSON
	object keys this package does not recognize. The store re-serializes
	Extra alongside known fields so operator tooling that adds ad hoc
	fields to the on-disk JSON never loses data on the next write.

# Thread Safety

Values of these types are plain data: read-safe for concurrent readers,
write-unsafe without external synchronization. Pointer receivers are used
throughout since the store and registry hold canonical copies that must be
mutated in place under lock.

# See Also

  - pkg/store for claims persistence (canonical + fast-append)
  - pkg/agents for the agent registry
  - pkg/telemetry for the span stream
*/
package types
