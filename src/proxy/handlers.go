package proxy

import (
	"github.com/mosaicnetworks/synod/src/node/state"
	"github.com/mosaicnetworks/synod/src/paxos"
)

// ProxyHandler encapsulates callbacks to be called by the InmemProxy. This is
// the true contact surface between Synod and the Application. The application
// must implement these handlers to maintain its views of the committed log.
type ProxyHandler interface {
	// CommitHandler is called once for every entry written to the local Log.
	// Entries are delivered in commit order, which is not necessarily slot
	// order. It returns the hash of the views after applying the entry.
	CommitHandler(entry paxos.LogEntry) (stateHash []byte, err error)

	// SnapshotHandler is called by the Log to retrieve a snapshot of the
	// views after the latest committed entry.
	SnapshotHandler() (snapshot []byte, err error)

	// RestoreHandler is called by the Log at startup to restore the views
	// from a snapshot.
	RestoreHandler(snapshot []byte) (stateHash []byte, err error)

	// StateChangeHandler is called to notify that the Synod node entered a
	// certain state
	StateChangeHandler(state.State) error
}
