/*
Package workerpool runs a small, fixed-size pool of goroutines draining a
task queue, used only by the serve daemon to execute health passes
without blocking request handling (retention runs on its own ticker
goroutine, not through the pool). It follows the same
Start/Stop/stop-channel lifecycle as the teacher's pkg/worker.Worker, scaled
down to a single process-local queue rather than a networked task source.
*/
package workerpool
