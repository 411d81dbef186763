/*
Package query implements the Query Surface: read-only access to the
Claims Store that never acquires a write lock. Reads may observe a
snapshot between two canonical writes, but the write-temp-then-rename
discipline guarantees they never see a torn file — only an older or
newer whole one (spec.md §4.I).

Get and List delegate to the merged, canonical-wins view pkg/store
already provides. CountBy groups the same merged view by an arbitrary
field for dashboard-style aggregates.
*/
package query
