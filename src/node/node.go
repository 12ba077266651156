package node

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/mosaicnetworks/synod/src/common"
	"github.com/mosaicnetworks/synod/src/config"
	"github.com/mosaicnetworks/synod/src/net"
	"github.com/mosaicnetworks/synod/src/node/state"
	"github.com/mosaicnetworks/synod/src/paxos"
	"github.com/mosaicnetworks/synod/src/peers"
	"github.com/mosaicnetworks/synod/src/proxy"
	"github.com/mosaicnetworks/synod/src/replog"
	"github.com/mosaicnetworks/synod/src/store"
	"github.com/sirupsen/logrus"
)

// Roles, as used by DropMessages.
const (
	ProposerRole = "proposer"
	AcceptorRole = "acceptor"
	LearnerRole  = "learner"
)

var (
	// ErrShutdown is returned by Submit when the node shuts down before the
	// event is committed.
	ErrShutdown = errors.New("node is shutting down")

	// ErrBusy is returned by SubmitAsync when every submission worker is
	// taken.
	ErrBusy = errors.New("too many submissions in flight")
)

// SubmitResult is the outcome of a submission run by SubmitAsync.
type SubmitResult struct {
	Slot int
	Err  error
}

// Transports holds the three endpoints of a node, one per role.
type Transports struct {
	Proposer net.Transport
	Acceptor net.Transport
	Learner  net.Transport
}

// Close closes the three transports.
func (t Transports) Close() {
	for _, trans := range []net.Transport{t.Proposer, t.Acceptor, t.Learner} {
		if trans != nil {
			trans.Close()
		}
	}
}

//Node defines a synod node
type Node struct {
	// The node's own state is kept in the Manager, which also tracks the
	// goroutines launched by the node.
	state.Manager

	conf   *config.Config
	logger *logrus.Entry

	id    int
	peers *peers.PeerSet

	log   *replog.Log
	store store.Store
	trans Transports

	acceptor *Acceptor
	proposer *Proposer
	learner  *Learner

	proxy    proxy.AppProxy
	submitCh chan []byte

	// submits bounds the submissions running on behalf of external callers
	submits state.Manager

	sigintCh     chan os.Signal
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex

	holeTimer *ControlTimer

	start time.Time
}

//NewNode is a factory method that returns a Node instance. The Log must be
//backed by the same Store as the one passed in. The proxy may be nil, in which
//case the node only accepts events through Submit.
func NewNode(conf *config.Config,
	id int,
	peers *peers.PeerSet,
	log *replog.Log,
	store store.Store,
	trans Transports,
	proxy proxy.AppProxy,
) (*Node, error) {

	if _, ok := peers.ByID[id]; !ok {
		return nil, fmt.Errorf("node %d does not belong to the PeerSet", id)
	}

	logger := conf.Logger().WithField("this_id", id)

	acceptor, err := NewAcceptor(id, peers, store, trans.Acceptor, conf, logger)
	if err != nil {
		return nil, err
	}

	learner := NewLearner(id, peers, log, trans.Learner, conf, logger)

	proposer, err := NewProposer(id, peers, log, store, trans.Proposer, learner, conf, logger)
	if err != nil {
		return nil, err
	}

	//Prepare sigintCh to relay SIGINT system calls
	sigintCh := make(chan os.Signal, 1)
	signal.Notify(sigintCh, os.Interrupt, syscall.SIGINT)

	node := &Node{
		conf:       conf,
		logger:     logger,
		id:         id,
		peers:      peers,
		log:        log,
		store:      store,
		trans:      trans,
		acceptor:   acceptor,
		proposer:   proposer,
		learner:    learner,
		proxy:      proxy,
		sigintCh:   sigintCh,
		shutdownCh: make(chan struct{}),
		holeTimer:  NewRandomControlTimer(),
		start:      time.Now(),
	}

	if proxy != nil {
		node.submitCh = proxy.SubmitCh()
	}

	node.submits.SetLimit(conf.Workers)

	acceptor.onFatal = node.fatal
	learner.onFatal = node.fatal
	proposer.onFatal = node.fatal

	return node, nil
}

//Init puts the node in the CatchingUp state
func (n *Node) Init() error {
	n.logger.WithFields(logrus.Fields{
		"peers":      n.peers.Len(),
		"majority":   n.peers.MajoritySize(),
		"next_slot":  n.log.NextAvailableSlot(),
		"log_length": n.log.Len(),
	}).Debug("Init")

	n.setState(state.CatchingUp)

	return nil
}

//RunAsync calls Run in a goroutine tracked by the node, so that Shutdown waits
//for it.
func (n *Node) RunAsync() {
	n.logger.Debug("runasync")

	if !n.GoFunc(n.Run) {
		n.logger.Error("Too many routines, cannot run node")
	}
}

//Run starts the roles of the node, catches up with the cluster, and then
//serves submissions and repairs holes until the node shuts down.
func (n *Node) Run() {
	n.startRoles()

	//Replay recovery rounds from the next available slot until the log stops
	//advancing.
	learned := n.proposer.UpdateLog()
	n.logger.WithField("learned", learned).Debug("Caught up")

	if n.isShutdown() {
		return
	}

	n.setState(state.Running)

	if n.submitCh != nil {
		n.GoFunc(n.submitLoop)
	}

	n.GoFunc(func() { n.holeTimer.Run(n.conf.HoleInterval) })

	for {
		select {
		case <-n.holeTimer.tickCh:
			n.repair()
			n.holeTimer.Reset(n.conf.HoleInterval)
		case <-n.shutdownCh:
			return
		case <-n.sigintCh:
			n.logger.Debug("Reacting to SIGINT")
			go n.Shutdown()
			return
		}
	}
}

func (n *Node) startRoles() {
	for _, t := range []net.Transport{n.trans.Proposer, n.trans.Acceptor, n.trans.Learner} {
		trans := t
		n.GoFunc(trans.Listen)
	}

	n.GoFunc(n.acceptor.Run)
	n.GoFunc(n.learner.Run)
	n.GoFunc(n.proposer.Run)
}

// repair fills the holes of the log, then learns the slots committed beyond
// its end.
func (n *Node) repair() {
	filled := n.proposer.FillHoles()
	learned := n.proposer.UpdateLog()

	if filled > 0 || learned > 0 {
		n.logger.WithFields(logrus.Fields{
			"filled":  filled,
			"learned": learned,
		}).Debug("Repaired log")
		n.logStats()
	}
}

// submitLoop feeds the events submitted by the application to the Proposer,
// one at a time, so they are committed in submission order.
func (n *Node) submitLoop() {
	for {
		select {
		case tx := <-n.submitCh:
			if _, err := n.Submit(tx); err != nil {
				n.logger.WithError(err).Debug("Submit")
			}
		case <-n.shutdownCh:
			return
		}
	}
}

//Submit inserts an event in the log, retrying until it is committed or the
//node shuts down. It returns the slot where the event was committed.
func (n *Node) Submit(event []byte) (int, error) {
	for {
		slot, err := n.proposer.InsertEvent(event)

		switch err {
		case nil:
			n.logger.WithField("slot", slot).Debug("Committed")
			return slot, nil
		case ErrEmptyEvent:
			return -1, err
		case ErrPreempted:
			//the slot is decided, try the next one straight away
			n.logger.WithField("slot", slot).Debug("Preempted, retrying")
			continue
		}

		n.logger.WithError(err).WithField("slot", slot).Debug("Insert failed, retrying")

		select {
		case <-time.After(n.conf.SubmitRetry):
		case <-n.shutdownCh:
			return -1, ErrShutdown
		}
	}
}

//SubmitAsync runs Submit on one of the node's submission workers. The returned
//channel receives a single result. When all the workers are busy, the event is
//not submitted and ErrBusy is returned.
func (n *Node) SubmitAsync(event []byte) (<-chan SubmitResult, error) {
	if n.isShutdown() {
		return nil, ErrShutdown
	}

	resCh := make(chan SubmitResult, 1)

	ok := n.submits.GoFunc(func() {
		slot, err := n.Submit(event)
		resCh <- SubmitResult{Slot: slot, Err: err}
	})
	if !ok {
		return nil, ErrBusy
	}

	return resCh, nil
}

//DropMessages instructs the receive loop of a role to discard the next count
//incoming messages.
func (n *Node) DropMessages(role string, count int) error {
	if count < 0 {
		return fmt.Errorf("invalid count: %d", count)
	}

	switch role {
	case ProposerRole:
		n.trans.Proposer.DropNext(count)
	case AcceptorRole:
		n.trans.Acceptor.DropNext(count)
	case LearnerRole:
		n.trans.Learner.DropNext(count)
	default:
		return fmt.Errorf("unknown role: %s", role)
	}

	n.logger.WithFields(logrus.Fields{
		"role":  role,
		"count": count,
	}).Info("Dropping messages")

	return nil
}

func (n *Node) setState(s state.State) {
	n.SetState(s)

	if n.proxy != nil {
		if err := n.proxy.OnStateChanged(s); err != nil {
			n.logger.WithError(err).Error("OnStateChanged")
		}
	}
}

// fatal is called by the roles when they fail to persist their state.
// Carrying on would break the durability the protocol relies on.
func (n *Node) fatal(err error) {
	n.logger.WithError(err).Error("Fatal error, shutting down")
	go n.Shutdown()
}

func (n *Node) isShutdown() bool {
	select {
	case <-n.shutdownCh:
		return true
	default:
		return false
	}
}

//Shutdown shuts down the node
func (n *Node) Shutdown() {
	n.shutdownLock.Lock()
	defer n.shutdownLock.Unlock()

	if !n.isShutdown() {
		n.logger.Debug("Shutdown")

		//Exit any non-shutdown state immediately
		n.setState(state.Shutdown)

		signal.Stop(n.sigintCh)

		//Stop and wait for concurrent operations
		close(n.shutdownCh)

		n.holeTimer.Shutdown()

		n.proposer.Shutdown()
		n.acceptor.Shutdown()
		n.learner.Shutdown()

		//transports and store should only be closed once all the roles are
		//done with them
		n.trans.Close()

		n.WaitRoutines()
		n.submits.WaitRoutines()

		if err := n.store.Close(); err != nil {
			n.logger.WithError(err).Error("Closing store")
		}
	}
}

//GetStats returns stats
func (n *Node) GetStats() map[string]string {
	timeElapsed := time.Since(n.start)

	writes := n.log.Writes()
	writesPerSecond := float64(writes) / timeElapsed.Seconds()

	s := map[string]string{
		"id":                strconv.Itoa(n.id),
		"state":             n.GetState().String(),
		"num_peers":         strconv.Itoa(n.peers.Len()),
		"next_slot":         strconv.Itoa(n.log.NextAvailableSlot()),
		"log_length":        strconv.Itoa(n.log.Len()),
		"holes":             strconv.Itoa(len(n.log.FindHoles())),
		"writes_per_second": strconv.FormatFloat(writesPerSecond, 'f', 2, 64),
		"state_hash":        common.EncodeToString(n.log.StateHash()),
		"acceptor_slots":    strconv.Itoa(len(n.acceptor.Slots())),
		"dropped_handlers":  strconv.FormatUint(n.acceptor.Dropped()+n.learner.Dropped(), 10),
		"submits_in_flight": strconv.Itoa(n.submits.Running()),
	}

	for k, v := range n.proposer.GetStats() {
		s[k] = v
	}

	return s
}

func (n *Node) logStats() {
	stats := n.GetStats()

	n.logger.WithFields(logrus.Fields{
		"next_slot":      stats["next_slot"],
		"log_length":     stats["log_length"],
		"holes":          stats["holes"],
		"rounds":         stats["rounds"],
		"successes":      stats["successes"],
		"preempted":      stats["preempted"],
		"no_quorum":      stats["no_quorum"],
		"median_latency": stats["median_latency"],
		"state":          stats["state"],
	}).Debug("Stats")
}

//ID returns the ID of the node
func (n *Node) ID() int {
	return n.id
}

//GetPeers returns the peers
func (n *Node) GetPeers() []*peers.Peer {
	return n.peers.Peers
}

//GetEntry returns the event committed at a slot
func (n *Node) GetEntry(slot int) (paxos.Event, bool) {
	return n.log.GetEntry(slot)
}

//GetEntries returns the committed entries in slot order
func (n *Node) GetEntries() []paxos.LogEntry {
	return n.log.Entries()
}

//GetHoles returns the empty slots below the next available slot
func (n *Node) GetHoles() []int {
	return n.log.FindHoles()
}

//GetAcceptorState returns the acceptor's state for a slot
func (n *Node) GetAcceptorState(slot int) *paxos.AcceptorSlotState {
	return n.acceptor.GetSlotState(slot)
}

//Proposer returns the node's Proposer
func (n *Node) Proposer() *Proposer {
	return n.proposer
}
