package proxy

import (
	"github.com/mosaicnetworks/synod/src/node/state"
	"github.com/mosaicnetworks/synod/src/paxos"
)

// ViewHandler is the part of the AppProxy used by the Log to keep the
// application views up to date.
type ViewHandler interface {
	CommitEntry(entry paxos.LogEntry) ([]byte, error)
	GetSnapshot() ([]byte, error)
	Restore(snapshot []byte) ([]byte, error)
}

// AppProxy is the interface through which a node talks to the application.
type AppProxy interface {
	ViewHandler
	SubmitCh() chan []byte
	OnStateChanged(state.State) error
}
