package inmem

import (
	"github.com/mosaicnetworks/synod/src/node/state"
	"github.com/mosaicnetworks/synod/src/paxos"
	"github.com/mosaicnetworks/synod/src/proxy"
	"github.com/sirupsen/logrus"
)

//InmemProxy implements the AppProxy interface natively
type InmemProxy struct {
	handler  proxy.ProxyHandler
	submitCh chan []byte
	logger   *logrus.Entry
}

// NewInmemProxy instantiates an InmemProxy from a set of handlers.
// If no logger, a new one is created
func NewInmemProxy(handler proxy.ProxyHandler,
	logger *logrus.Entry) *InmemProxy {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	return &InmemProxy{
		handler:  handler,
		submitCh: make(chan []byte),
		logger:   logger,
	}
}

/*******************************************************************************
* SubmitTx                                                                     *
*******************************************************************************/

//SubmitTx is called by the App to submit an event to Synod. It blocks until
//the node picks it up.
func (p *InmemProxy) SubmitTx(tx []byte) {
	//have to make a copy, the caller may reuse its buffer
	t := make([]byte, len(tx))

	copy(t, tx)

	p.submitCh <- t
}

/*******************************************************************************
* Implement AppProxy Interface                                                 *
*******************************************************************************/

//SubmitCh returns the channel of raw events
func (p *InmemProxy) SubmitCh() chan []byte {
	return p.submitCh
}

//CommitEntry calls the commitHandler
func (p *InmemProxy) CommitEntry(entry paxos.LogEntry) ([]byte, error) {
	stateHash, err := p.handler.CommitHandler(entry)

	p.logger.WithFields(logrus.Fields{
		"slot":       entry.Slot,
		"state_hash": stateHash,
		"err":        err,
	}).Debug("InmemProxy.CommitEntry")

	return stateHash, err
}

//GetSnapshot calls the snapshotHandler
func (p *InmemProxy) GetSnapshot() ([]byte, error) {
	snapshot, err := p.handler.SnapshotHandler()

	p.logger.WithFields(logrus.Fields{
		"size": len(snapshot),
		"err":  err,
	}).Debug("InmemProxy.GetSnapshot")

	return snapshot, err
}

//Restore calls the restoreHandler
func (p *InmemProxy) Restore(snapshot []byte) ([]byte, error) {
	stateHash, err := p.handler.RestoreHandler(snapshot)

	p.logger.WithFields(logrus.Fields{
		"state_hash": stateHash,
		"err":        err,
	}).Debug("InmemProxy.Restore")

	return stateHash, err
}

//OnStateChanged calls the stateChangeHandler
func (p *InmemProxy) OnStateChanged(state state.State) error {
	return p.handler.StateChangeHandler(state)
}
