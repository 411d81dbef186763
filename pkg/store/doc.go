/*
Package store implements the dual-backend claims store.

Two on-disk representations share one logical namespace of work_item_id
values:

	┌──────────────────── CLAIMS STORE ─────────────────────────┐
	│                                                            │
	│  canonical (work_claims.json)      fast-append            │
	│  ┌─────────────────────────┐       (work_claims_fast.jsonl)│
	│  │ single JSON array       │       ┌──────────────────┐   │
	│  │ read-modify-write       │       │ one object/line  │   │
	│  │ temp-file + fsync +     │       │ append-only      │   │
	│  │ rename                  │       │ no read before   │   │
	│  │                         │       │ write            │   │
	│  │ used by: progress,      │       │ used by: claim() │   │
	│  │ complete, retention,    │       │ fast path        │   │
	│  │ full list/query         │       └──────────────────┘   │
	│  └─────────────────────────┘                              │
	│                     \                  /                  │
	│                      \                /                   │
	│                    List() merges both, canonical wins      │
	└────────────────────────────────────────────────────────────┘

The canonical backend trades O(N) rewrite cost for full consistency: every
insert/update reads the whole array, mutates it, and atomically replaces
the file. The fast-append backend trades a uniqueness check (unneeded,
since the ID generator's monotonicity already guarantees it) for O(1)
writes on the ~80% of operations that are brand-new claims.

Store.List never returns a torn read: the canonical file is only ever
replaced by write-temp-then-rename, so a concurrent reader always observes
either the file before or after a write, never a partial one (spec.md §8.1
property 3).

See spec.md §4.D.
*/
package store
