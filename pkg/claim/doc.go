/*
Package claim implements the Claim Engine: the claim/progress/complete
state machine that sits atop the Claims Store, Agent Registry, and
Telemetry Emitter.

	(absent) --register--> REGISTERED --claim--> ACTIVE --progress--> IN_PROGRESS
	                                                |  \                  |  \
	                                          complete  complete(failed)  complete  complete(failed)
	                                                v      v              v      v
	                                           COMPLETED  FAILED     COMPLETED  FAILED

Every mutating call resolves agent_id and trace context as explicit
parameters (spec.md's "Global mutable state" redesign flag: the Engine
never reads AGENT_ID or CURRENT_WORK_ITEM from the environment itself —
that ergonomics layer belongs to the CLI).

Local update order within one call is fixed: claims, then agents, then
telemetry. A crash between the claims write and the agent upsert leaves a
durable claim and a stale agent record; the next heartbeat or register
call reconciles it (spec.md §7).

See spec.md §4.F.
*/
package claim
