/*
Package agents implements the agent registry: a single canonical JSON
array of AgentRecord, upserted by agent_id, following the same
read-modify-write-under-lock discipline as pkg/store's canonical backend.

There is no fast-append path here: registration and heartbeats are low
frequency relative to claim churn, so every write goes straight through
fsutil.WriteJSONAtomic under an advisory lock.

See spec.md §3.1 and §4.E.
*/
package agents
