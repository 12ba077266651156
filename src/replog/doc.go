// Package replog implements the replicated Log of a Synod node.
//
// The Log maps slots to committed events. A slot is written at most once:
// setting an entry for a slot that is already filled is a no-op, whatever the
// event. This is enforced here, independently of the consensus protocol, so
// that duplicate COMMIT messages and recovery rounds can never overwrite a
// decided value.
//
// Every new entry is appended to a durable LogStore before it becomes visible,
// then handed to the application views through a proxy.ViewHandler. Every
// checkpoint writes, the views are snapshotted.
//
// At startup the whole append log is replayed, in append order, to rebuild
// the slot map. The append log is the only source of truth. The latest
// snapshot is used to restore the views only if it does not cover more writes
// than the append log holds; the views are then brought up to date with the
// records written after the snapshot. Otherwise the views are re-derived from
// scratch. Both paths give the same views.
package replog
