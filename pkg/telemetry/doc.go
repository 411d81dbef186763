/*
Package telemetry implements the kernel's append-only span stream.

Every state-changing operation emits exactly one TelemetrySpan by calling
Emit. Trace-context resolution follows a strict priority chain (env
overrides first, then a caller-provided parent, then a freshly generated
128-bit id) so that spans from cooperating processes correlate under one
trace_id even though nothing but the file system connects them.

Emission is best-effort and non-blocking for the caller: a failed append is
logged locally and never aborts the enclosing claim-engine operation. The
Health Assessor is the official consumer of emission failures — a gap in
the stream shows up as a telemetry penalty in the next health report.

See spec.md §4.B and §3.1.
*/
package telemetry
