/*
Package watch delivers debounced change notifications for a single
directory. The serve daemon watches the coordination directory with it and
logs the name of the changed file; the notifications trigger no retention,
health, or telemetry action. It is not part of the core spec's
file-serialized coordination contract — nothing here participates in the
claim/progress/complete state machine.
*/
package watch
