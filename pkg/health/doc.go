/*
Package health implements the Health Assessor: a read-only scorer that
inspects the file system facts of a coordination directory and produces a
health_score in [0,100] plus a categorized issue list.

No synthetic counters are permitted — every penalty traces back to an
observation: a missing or malformed file, a stale timestamp, a ratio
computed from records actually on disk. The assessor never mutates claims,
agents, or the span stream; it writes exactly one output document,
system_health_report.json, and — below a configurable threshold — a
separate alert record.

See spec.md §4.H.
*/
package health
