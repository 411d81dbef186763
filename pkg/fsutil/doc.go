/*
Package fsutil implements the write-temp, fsync, rename atomicity
discipline spec.md §4.D and §5 mandate for every canonical state file:
claims, agent registry, and retention archives all go through the same
ReadJSON/WriteJSONAtomic pair so a reader never observes a torn file.

This is a thin, deliberately dependency-free primitive: the corpus has no
higher-level library for POSIX atomic replace, and the spec names the exact
mechanism (temp file in the same directory, fsync, rename) rather than
leaving it to a storage engine's own transaction log.
*/
package fsutil
