package dummy

import (
	"github.com/mosaicnetworks/synod/src/paxos"
	"github.com/mosaicnetworks/synod/src/proxy/inmem"
	"github.com/sirupsen/logrus"
)

// InmemDummyClient is an in-memory implementation of the dummy app. It actually
// implements the AppProxy interface, and can be passed in the Synod
// constructor directly
type InmemDummyClient struct {
	*inmem.InmemProxy
	state  *State
	logger *logrus.Entry
}

//NewInmemDummyClient instantiates an InmemDummyClient
func NewInmemDummyClient(logger *logrus.Entry) *InmemDummyClient {
	state := NewState(logger)

	proxy := inmem.NewInmemProxy(state, logger)

	client := &InmemDummyClient{
		InmemProxy: proxy,
		state:      state,
		logger:     logger,
	}

	return client
}

//SubmitTx sends an event to the Synod node via the InmemProxy
func (c *InmemDummyClient) SubmitTx(tx []byte) {
	c.InmemProxy.SubmitTx(tx)
}

//GetCommittedEntries returns the state's list of entries
func (c *InmemDummyClient) GetCommittedEntries() []paxos.LogEntry {
	return c.state.GetCommittedEntries()
}

//Timeline returns the committed messages in slot order
func (c *InmemDummyClient) Timeline() []string {
	return c.state.Timeline()
}

//GetStateHash returns the hash of the application state
func (c *InmemDummyClient) GetStateHash() []byte {
	return c.state.GetStateHash()
}
