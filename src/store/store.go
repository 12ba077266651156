package store

import (
	"github.com/mosaicnetworks/synod/src/paxos"
)

// LogStore is the durable backend of the replicated Log.
type LogStore interface {
	// Append adds a committed entry at the end of the append log.
	Append(slot int, event paxos.Event) error
	// Records returns every appended entry, in append order.
	Records() ([]Record, error)
	// SetSnapshot replaces the latest snapshot.
	SetSnapshot(snapshot *Snapshot) error
	// GetSnapshot returns the latest snapshot, or a KeyNotFound StoreErr.
	GetSnapshot() (*Snapshot, error)
}

// StateStore is the durable backend of the Acceptor.
type StateStore interface {
	// SetPromise records max_prepare for a slot.
	SetPromise(slot int, n paxos.ProposalNumber) error
	// SetAccepted records acc_num and acc_val for a slot. max_prepare is set
	// to the same proposal number.
	SetAccepted(slot int, n paxos.ProposalNumber, value paxos.Event) error
	// Load returns the state of every slot that was ever written.
	Load() (map[int]*paxos.AcceptorSlotState, error)
	// SetCounter records the highest round counter the local Proposer used
	// for a slot, so that a restarted Proposer never reuses a proposal number.
	SetCounter(slot int, counter int) error
	// Counters returns every recorded round counter.
	Counters() (map[int]int, error)
}

// Store is a single database holding both the Log and the Acceptor state of a
// node.
type Store interface {
	LogStore
	StateStore
	// Close closes the underlying database.
	Close() error
	// StorePath returns the filepath of the underlying database.
	StorePath() string
}
