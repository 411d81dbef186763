/*
Package retention implements the Retention & Optimization Engine: four
independent, idempotent operations — TTL pruning of stale active claims,
archival of completed/failed claims, fast-append compaction, and rotation
of the telemetry span stream.

The three claim-store operations acquire the same locks the Claim Engine
does, so they observe no concurrent writer. Each operation emits one
`retention.*` span carrying duration_ms plus its own counts (lines_before
on all four; lines_after, removed, or records_archived where the
operation produces them).

A long-lived Engine runs the four operations on an internal ticker for
the `serve` daemon; the `optimize` CLI command runs a single pass and
exits.
*/
package retention
