/*
Package lock implements the kernel's advisory file locking discipline.

Every writable shared resource (canonical claims file, fast-append file,
agent registry, telemetry stream, retention backup directory) has exactly
one paired ".lock" file. WithLock acquires an exclusive, non-reentrant
flock(2) on that file, invokes the caller's function, and guarantees
release on every exit path — success, error, or panic.

Locks owned by a process that has since died are reclaimed automatically:
the lock file's contents record the holder's PID, and a stale PID is
treated as an available lock rather than a live contender.

See spec.md §4.C and §5 ("Shared-resource policy").
*/
package lock
