// Package store implements the stable storage of a Synod node.
//
// Two kinds of data are persisted. The LogStore holds the append-only record
// of committed (slot, event) pairs, in the order they were written, plus the
// latest snapshot of the application views. The StateStore holds the durable
// promise state of the Acceptor, one array per field (max_prepare, acc_num,
// acc_val), so that a restarted Acceptor never forgets a promise.
//
// InmemStore keeps everything in memory and is used in tests. BadgerStore and
// BoltStore persist to disk. Both sync every write before returning, because
// the Acceptor replies to a proposer only after its state is written.
package store
