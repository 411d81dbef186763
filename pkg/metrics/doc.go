/*
Package metrics exposes Prometheus collectors for the claim/progress/
complete lifecycle, the lock manager, the telemetry emitter, the
retention engine, and the health assessor's score, plus the serve
daemon's own /healthz, /readyz, and /metrics HTTP surface.

Claim latency is split by path (fast vs. slow) so the ~14x improvement
spec.md's dual-path design targets is directly observable:

	coordkernel_claim_latency_seconds{path="fast"}
	coordkernel_claim_latency_seconds{path="slow"}

Timer is the same start/ObserveDuration helper used across the pack's
other services; every call site wraps one state-changing operation.
*/
package metrics
