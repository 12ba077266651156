package inmem

import (
	"github.com/mosaicnetworks/synod/src/node/state"
	"github.com/mosaicnetworks/synod/src/paxos"
)

// ExampleHandler implements the ProxyHandler interface. This is where an
// application would normally register callbacks that Synod will call through
// the InmemProxy. ExampleHandler simply maintains a list of all the committed
// events in the order they were received from Synod, and keeps track of the
// node's state. Refer to the dummy package for a more meaningful example.
type ExampleHandler struct {
	events []paxos.LogEntry
	state  state.State
}

// CommitHandler is called by Synod every time an entry is written to the local
// log. Entries arrive in commit order, which may differ from slot order when
// holes are repaired late. An application that needs slot order must sort
// them itself.
func (p *ExampleHandler) CommitHandler(entry paxos.LogEntry) ([]byte, error) {
	p.events = append(p.events, entry)

	// The state hash should represent the views after applying the entry.
	// Here we always return the same hard-coded state-hash.
	return []byte("statehash"), nil
}

// SnapshotHandler is used by Synod to retrieve a snapshot of the application
// views. It is left to the application to encode/decode state snapshots to and
// from raw bytes.
func (p *ExampleHandler) SnapshotHandler() ([]byte, error) {
	return []byte("snapshot"), nil
}

// RestoreHandler is called by Synod at startup to restore the application
// views from the last snapshot.
func (p *ExampleHandler) RestoreHandler(snapshot []byte) ([]byte, error) {
	return []byte("statehash"), nil
}

// StateChangeHandler is called by Synod to notify the application that the
// node has entered a new state (ex CatchingUp, Running, Shutdown).
func (p *ExampleHandler) StateChangeHandler(state state.State) error {
	p.state = state
	return nil
}

func NewExampleHandler() *ExampleHandler {
	return &ExampleHandler{
		events: []paxos.LogEntry{},
	}
}

func Example() {
	// An application needs to implement the ProxyHandler interface and define
	// the callbacks that will be automatically called by the proxy when Synod
	// has things to communicate to the application.
	handler := NewExampleHandler()

	// We create an InmemProxy based on the handler. Normally the InmemProxy is
	// passed to a Synod node but this example only illustrates the creation of
	// an InmemProxy.
	proxy := NewInmemProxy(handler, nil)

	// The application can submit events to Synod using the proxy's SubmitTx.
	// The node will keep proposing the event until it is committed in some
	// slot, and eventually call the CommitHandler on every node.
	proxy.SubmitTx([]byte("the test event"))
}
