/*
Package ids generates globally unique identifiers for agents, work claims,
traces, and spans.

Agent and work IDs are "<prefix>_<nanos>" where nanos is a strictly
monotonic local timestamp: the generator busy-waits past the last emitted
value so two calls on the same process never collide, regardless of clock
resolution. Trace and span IDs are random hex, sized to OpenTelemetry's
128-bit/64-bit convention, drawn from a cryptographic entropy source.

See spec.md §4.A for the full collision contract.
*/
package ids
