package node

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mosaicnetworks/synod/src/config"
	"github.com/mosaicnetworks/synod/src/net"
	"github.com/mosaicnetworks/synod/src/node/state"
	"github.com/mosaicnetworks/synod/src/paxos"
	"github.com/mosaicnetworks/synod/src/peers"
	"github.com/mosaicnetworks/synod/src/store"
	"github.com/sirupsen/logrus"
)

// acceptorSlot guards the state of a single slot. Requests for the same slot
// are serialized through its lock, requests for different slots are not.
type acceptorSlot struct {
	sync.Mutex
	state *paxos.AcceptorSlotState
}

// Acceptor answers PROPOSE and ACCEPT requests according to the Synod rules.
// Its state is written to the StateStore before any reply leaves the node, and
// reloaded entirely when the Acceptor is created, so a restarted Acceptor
// never forgets a promise.
type Acceptor struct {
	state.Manager

	id    int
	peers *peers.PeerSet
	store store.StateStore
	trans net.Transport

	slotsLock sync.Mutex
	slots     map[int]*acceptorSlot

	onFatal    func(error)
	shutdownCh chan struct{}

	logger *logrus.Entry
}

// NewAcceptor creates an Acceptor and loads its state from the StateStore.
func NewAcceptor(id int,
	peers *peers.PeerSet,
	stateStore store.StateStore,
	trans net.Transport,
	conf *config.Config,
	logger *logrus.Entry) (*Acceptor, error) {

	states, err := stateStore.Load()
	if err != nil {
		return nil, fmt.Errorf("loading acceptor state: %v", err)
	}

	slots := make(map[int]*acceptorSlot, len(states))
	for slot, st := range states {
		slots[slot] = &acceptorSlot{state: st}
	}

	a := &Acceptor{
		id:         id,
		peers:      peers,
		store:      stateStore,
		trans:      trans,
		slots:      slots,
		onFatal:    func(error) {},
		shutdownCh: make(chan struct{}),
		logger:     logger.WithField("role", "acceptor"),
	}

	a.SetLimit(conf.Workers)

	a.logger.WithField("slots", len(slots)).Debug("Loaded acceptor state")

	return a, nil
}

// getSlot returns the lock and state of a slot, creating them on first use.
func (a *Acceptor) getSlot(slot int) *acceptorSlot {
	a.slotsLock.Lock()
	defer a.slotsLock.Unlock()

	s, ok := a.slots[slot]
	if !ok {
		s = &acceptorSlot{state: &paxos.AcceptorSlotState{}}
		a.slots[slot] = s
	}
	return s
}

// ProcessMessage applies a request to the Acceptor's state and returns the
// reply, or nil when the request is rejected. Rejections are silent; the
// Proposer's timeout handles them. An error means the state could not be
// persisted, and nothing was replied.
func (a *Acceptor) ProcessMessage(msg net.Message) (net.Message, error) {
	if msg.SlotIndex() < 0 {
		return nil, nil
	}

	switch m := msg.(type) {
	case *net.ProposeMessage:
		return a.processPropose(m)
	case *net.AcceptMessage:
		return a.processAccept(m)
	default:
		return nil, nil
	}
}

func (a *Acceptor) processPropose(m *net.ProposeMessage) (net.Message, error) {
	s := a.getSlot(m.Slot)
	s.Lock()
	defer s.Unlock()

	if !s.state.CanPromise(m.N) {
		a.logger.WithFields(logrus.Fields{
			"slot":        m.Slot,
			"n":           m.N,
			"max_prepare": s.state.MaxPrepare,
		}).Debug("Reject PROPOSE")
		return nil, nil
	}

	if !m.N.IsSentinel() {
		if err := a.store.SetPromise(m.Slot, m.N); err != nil {
			return nil, err
		}
		n := m.N
		s.state.MaxPrepare = &n
	}

	st := s.state.Copy()

	return &net.PromiseMessage{
		Slot:   m.Slot,
		N:      m.N,
		AccNum: st.AccNum,
		AccVal: st.AccVal,
		From:   a.id,
	}, nil
}

func (a *Acceptor) processAccept(m *net.AcceptMessage) (net.Message, error) {
	// a numbered round always carries a value
	if !m.N.IsSentinel() && m.Event.IsEmpty() {
		return nil, nil
	}

	s := a.getSlot(m.Slot)
	s.Lock()
	defer s.Unlock()

	if !s.state.CanAccept(m.N) {
		a.logger.WithFields(logrus.Fields{
			"slot":        m.Slot,
			"n":           m.N,
			"max_prepare": s.state.MaxPrepare,
		}).Debug("Reject ACCEPT")
		return nil, nil
	}

	if !m.N.IsSentinel() {
		if err := a.store.SetAccepted(m.Slot, m.N, m.Event); err != nil {
			return nil, err
		}
		mp, an := m.N, m.N
		s.state.MaxPrepare = &mp
		s.state.AccNum = &an
		s.state.AccVal = m.Event.Copy()
	}

	st := s.state.Copy()

	return &net.AckMessage{
		Slot:   m.Slot,
		N:      m.N,
		AccNum: st.AccNum,
		AccVal: st.AccVal,
		From:   a.id,
	}, nil
}

// Run consumes the Acceptor's transport until Shutdown is called. Each request
// is handled in its own goroutine, up to the configured number of workers;
// requests received above that limit are dropped.
func (a *Acceptor) Run() {
	consumer := a.trans.Consumer()
	for {
		select {
		case dg := <-consumer:
			if !a.GoFunc(func() { a.handle(dg) }) {
				a.logger.WithField("type", dg.Message.Type()).Debug("Too busy, dropping message")
			}
		case <-a.shutdownCh:
			return
		}
	}
}

func (a *Acceptor) handle(dg net.Datagram) {
	msg := dg.Message

	peer, ok := a.peers.ByID[msg.Sender()]
	if !ok {
		a.logger.WithFields(logrus.Fields{
			"from":   msg.Sender(),
			"source": dg.Source,
		}).Debug("Unknown sender")
		return
	}

	a.logger.WithFields(logrus.Fields{
		"type": msg.Type(),
		"slot": msg.SlotIndex(),
		"from": msg.Sender(),
	}).Debug("Received")

	reply, err := a.ProcessMessage(msg)
	if err != nil {
		a.logger.WithError(err).Error("Persisting acceptor state")
		a.onFatal(err)
		return
	}

	if reply == nil {
		return
	}

	if err := a.trans.Send(peer.ProposerAddr(), reply); err != nil {
		a.logger.WithError(err).WithField("to", peer.ID).Debug("Sending reply")
	}
}

// GetSlotState returns a copy of the state of a slot, or nil if the Acceptor
// never heard of it.
func (a *Acceptor) GetSlotState(slot int) *paxos.AcceptorSlotState {
	a.slotsLock.Lock()
	s, ok := a.slots[slot]
	a.slotsLock.Unlock()

	if !ok {
		return nil
	}

	s.Lock()
	defer s.Unlock()

	return s.state.Copy()
}

// Slots returns the slots the Acceptor holds state for, in ascending order.
func (a *Acceptor) Slots() []int {
	a.slotsLock.Lock()
	defer a.slotsLock.Unlock()

	res := make([]int, 0, len(a.slots))
	for slot := range a.slots {
		res = append(res, slot)
	}
	sort.Ints(res)

	return res
}

// Shutdown stops the Run loop and waits for the requests being handled.
func (a *Acceptor) Shutdown() {
	close(a.shutdownCh)
	a.WaitRoutines()
}
