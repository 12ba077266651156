package node

import (
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mosaicnetworks/synod/src/common"
	"github.com/mosaicnetworks/synod/src/config"
	"github.com/mosaicnetworks/synod/src/net"
	"github.com/mosaicnetworks/synod/src/node/state"
	"github.com/mosaicnetworks/synod/src/paxos"
	"github.com/mosaicnetworks/synod/src/peers"
	"github.com/mosaicnetworks/synod/src/replog"
	"github.com/mosaicnetworks/synod/src/store"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNoQuorum is returned when a phase does not collect a majority of
	// responses before the round timeout. The round may be retried.
	ErrNoQuorum = errors.New("no quorum")

	// ErrPreempted is returned by InsertEvent when another value was chosen
	// for the slot. The event must be inserted again, in a later slot.
	ErrPreempted = errors.New("preempted by another value")

	// ErrNoValue is returned by Recover when no acceptor in the quorum has
	// accepted anything for the slot.
	ErrNoValue = errors.New("no value accepted")

	// ErrEmptyEvent is returned when inserting an empty event, which could not
	// be told apart from a hole.
	ErrEmptyEvent = errors.New("empty event")
)

const latencyWindow = 100

// Proposer drives Synod rounds. It is the only component that decides which
// values are committed: successful rounds are written to the local Learner
// and broadcast to the remote ones.
//
// Responses from Acceptors are not awaited individually. The receive loop
// deposits them in a MessageBuffer, where rounds collect them by slot, type
// and proposal number.
type Proposer struct {
	state.Manager

	id    int
	peers *peers.PeerSet
	log   *replog.Log
	store store.StateStore
	trans net.Transport

	learner *Learner
	buffer  *MessageBuffer

	counterLock sync.Mutex
	counters    map[int]int

	leaderLock sync.RWMutex
	leaders    map[int]int

	roundTimeout time.Duration
	pollInterval time.Duration
	gcInterval   time.Duration

	rounds    uint64
	successes uint64
	preempted uint64
	noQuorum  uint64

	latencyLock sync.Mutex
	latency     *common.DurationWindow

	onFatal    func(error)
	shutdownCh chan struct{}

	logger *logrus.Entry
}

// NewProposer creates a Proposer and loads the round counters it used before
// a restart.
func NewProposer(id int,
	peers *peers.PeerSet,
	log *replog.Log,
	stateStore store.StateStore,
	trans net.Transport,
	learner *Learner,
	conf *config.Config,
	logger *logrus.Entry) (*Proposer, error) {

	counters, err := stateStore.Counters()
	if err != nil {
		return nil, err
	}

	pollInterval := conf.PollInterval
	if pollInterval <= 0 {
		pollInterval = config.DefaultPollInterval
	}

	gcInterval := conf.GCInterval
	if gcInterval <= 0 {
		gcInterval = config.DefaultGCInterval
	}

	p := &Proposer{
		id:           id,
		peers:        peers,
		log:          log,
		store:        stateStore,
		trans:        trans,
		learner:      learner,
		buffer:       NewMessageBuffer(),
		counters:     counters,
		leaders:      make(map[int]int),
		roundTimeout: conf.RoundTimeout,
		pollInterval: pollInterval,
		gcInterval:   gcInterval,
		latency:      common.NewDurationWindow(latencyWindow),
		onFatal:      func(error) {},
		shutdownCh:   make(chan struct{}),
		logger:       logger.WithField("role", "proposer"),
	}

	p.SetLimit(conf.Workers)

	return p, nil
}

/*******************************************************************************
Rounds
*******************************************************************************/

// InsertEvent tries to commit event in the next available slot. It returns the
// slot and a nil error if event was chosen. ErrPreempted means another value
// won the slot, and ErrNoQuorum that the round timed out; in both cases the
// event is not committed and the call may be repeated.
//
// When this node is recorded as the leader of the slot, the prepare phase is
// skipped. Leaders are never set by the Proposer itself; they must come from
// an external election, and the full round stays the source of truth.
func (p *Proposer) InsertEvent(event paxos.Event) (int, error) {
	if event.IsEmpty() {
		return -1, ErrEmptyEvent
	}

	start := time.Now()
	atomic.AddUint64(&p.rounds, 1)

	slot := p.log.NextAvailableSlot()

	n, err := p.nextNumber(slot)
	if err != nil {
		p.fatal(err)
		return slot, err
	}

	logger := p.logger.WithFields(logrus.Fields{
		"slot": slot,
		"n":    n,
	})

	logger.WithField("event", event.Hex()).Debug("InsertEvent")

	v := event
	if !p.IsLeader(slot) {
		v, err = p.PreparePhase(slot, n, event)
		if err != nil {
			atomic.AddUint64(&p.noQuorum, 1)
			logger.WithError(err).Debug("Prepare phase failed")
			return slot, err
		}
	}

	if err := p.AcceptPhase(slot, n, v); err != nil {
		atomic.AddUint64(&p.noQuorum, 1)
		logger.WithError(err).Debug("Accept phase failed")
		return slot, err
	}

	if err := p.Commit(slot, v); err != nil {
		return slot, err
	}

	p.latencyLock.Lock()
	p.latency.Add(time.Since(start))
	p.latencyLock.Unlock()

	if !v.Equal(event) {
		atomic.AddUint64(&p.preempted, 1)
		logger.Debug("Preempted")
		return slot, ErrPreempted
	}

	atomic.AddUint64(&p.successes, 1)

	return slot, nil
}

// PreparePhase broadcasts PROPOSE(slot, n) and waits for a majority of
// PROMISEs. It returns the value that must be proposed in the accept phase:
// the value of the highest-numbered proposal reported by the quorum, or event
// if none of them accepted anything.
func (p *Proposer) PreparePhase(slot int, n paxos.ProposalNumber, event paxos.Event) (paxos.Event, error) {
	start := time.Now()
	p.broadcast(&net.ProposeMessage{
		Slot: slot,
		N:    n,
		From: p.id,
	})

	promises, err := p.waitQuorum(slot, net.Promise, n, start)
	if err != nil {
		return nil, err
	}

	v := event
	var highest *paxos.ProposalNumber

	for _, m := range promises {
		acc := net.Accepted(m)
		p.observe(slot, acc.AccNum)

		if !acc.HasAccepted() {
			continue
		}
		if top := paxos.MaxProposal(highest, acc.AccNum); top != highest {
			highest = top
			v = acc.AccVal
		}
	}

	return v, nil
}

// AcceptPhase broadcasts ACCEPT(slot, n, v) and waits for a majority of ACKs.
func (p *Proposer) AcceptPhase(slot int, n paxos.ProposalNumber, v paxos.Event) error {
	start := time.Now()
	p.broadcast(&net.AcceptMessage{
		Slot:  slot,
		N:     n,
		Event: v,
		From:  p.id,
	})

	acks, err := p.waitQuorum(slot, net.Ack, n, start)
	if err != nil {
		return err
	}

	for _, m := range acks {
		p.observe(slot, net.Accepted(m).AccNum)
	}

	return nil
}

// Commit writes a chosen value to the local Learner, then broadcasts it to the
// other Learners. The broadcast is best-effort; hole-filling repairs the
// Learners that miss it.
func (p *Proposer) Commit(slot int, v paxos.Event) error {
	if err := p.learner.Learn(slot, v); err != nil {
		p.fatal(err)
		return err
	}

	msg := &net.CommitMessage{
		Slot:  slot,
		Event: v,
		From:  p.id,
	}

	for _, addr := range p.peers.LearnerAddrs(p.id) {
		if err := p.trans.Send(addr, msg); err != nil {
			p.logger.WithError(err).WithField("to", addr).Debug("Sending COMMIT")
		}
	}

	return nil
}

// Recover finds out which value, if any, the cluster chose for a slot, and
// commits it locally. It starts with a sentinel round, which does not disturb
// the promises made to regular rounds:
//
//   - If a majority reports the same accepted proposal, its value is chosen.
//   - If some values were accepted but none is known to be chosen, the highest
//     one is re-confirmed with a sentinel ACCEPT, and failing that, re-proposed
//     in a numbered round.
//   - If nothing was accepted in the quorum, ErrNoValue is returned and the
//     slot stays empty.
func (p *Proposer) Recover(slot int) (paxos.Event, error) {
	if e, ok := p.log.GetEntry(slot); ok {
		return e, nil
	}

	logger := p.logger.WithField("slot", slot)

	start := time.Now()
	p.broadcast(&net.ProposeMessage{
		Slot: slot,
		N:    paxos.Sentinel,
		From: p.id,
	})

	promises, err := p.waitQuorum(slot, net.Promise, paxos.Sentinel, start)
	if err != nil {
		return nil, err
	}

	chosen, highest, v := p.tally(slot, promises)
	if chosen != nil {
		logger.WithField("acc_num", *chosen).Debug("Recovered chosen value")
		return v, p.Commit(slot, v)
	}

	if highest == nil {
		return nil, ErrNoValue
	}

	start = time.Now()
	p.broadcast(&net.AcceptMessage{
		Slot:  slot,
		N:     paxos.Sentinel,
		Event: v,
		From:  p.id,
	})

	acks, err := p.waitQuorum(slot, net.Ack, paxos.Sentinel, start)
	if err == nil {
		chosen, _, cv := p.tally(slot, acks)
		if chosen != nil {
			logger.WithField("acc_num", *chosen).Debug("Confirmed chosen value")
			return cv, p.Commit(slot, cv)
		}
	}

	// The value is not known to be chosen. Re-propose it in a regular round,
	// which chooses it unless a higher round has already been accepted.
	n, err := p.nextNumber(slot)
	if err != nil {
		p.fatal(err)
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"n":       n,
		"highest": *highest,
	}).Debug("Escalating recovery")

	v, err = p.PreparePhase(slot, n, v)
	if err != nil {
		return nil, err
	}

	if err := p.AcceptPhase(slot, n, v); err != nil {
		return nil, err
	}

	return v, p.Commit(slot, v)
}

// tally inspects the accepted proposals reported by a set of responses. It
// returns the proposal accepted by a majority, if any, the highest proposal
// reported, and the value of the former, or else of the latter.
func (p *Proposer) tally(slot int, responses []net.Message) (*paxos.ProposalNumber, *paxos.ProposalNumber, paxos.Event) {
	counts := make(map[paxos.ProposalNumber]int)
	values := make(map[paxos.ProposalNumber]paxos.Event)

	var highest *paxos.ProposalNumber

	for _, m := range responses {
		acc := net.Accepted(m)
		p.observe(slot, acc.AccNum)

		if !acc.HasAccepted() {
			continue
		}

		counts[*acc.AccNum]++
		values[*acc.AccNum] = acc.AccVal

		highest = paxos.MaxProposal(highest, acc.AccNum)
	}

	majority := p.peers.MajoritySize()
	for n, c := range counts {
		if c >= majority {
			chosen := n
			return &chosen, highest, values[n]
		}
	}

	if highest == nil {
		return nil, nil, nil
	}

	return nil, highest, values[*highest]
}

// UpdateLog runs recovery rounds from the next available slot onwards, until a
// round fails to learn a new value. It returns the number of slots learned.
func (p *Proposer) UpdateLog() int {
	learned := 0

	for !p.isShutdown() {
		slot := p.log.NextAvailableSlot()

		if _, err := p.Recover(slot); err != nil {
			p.logger.WithError(err).WithField("slot", slot).Debug("UpdateLog stopped")
			break
		}

		if p.log.NextAvailableSlot() <= slot {
			break
		}

		learned++
	}

	return learned
}

// FillHoles runs a recovery round for every empty slot below the next
// available slot, starting from the highest. It returns the number of holes
// filled.
func (p *Proposer) FillHoles() int {
	holes := p.log.FindHoles()
	filled := 0

	for i := len(holes) - 1; i >= 0; i-- {
		if p.isShutdown() {
			break
		}

		if _, err := p.Recover(holes[i]); err != nil {
			p.logger.WithError(err).WithField("slot", holes[i]).Debug("Hole not filled")
			continue
		}

		filled++
	}

	if len(holes) > 0 {
		p.logger.WithFields(logrus.Fields{
			"holes":  len(holes),
			"filled": filled,
		}).Debug("FillHoles")
	}

	return filled
}

/*******************************************************************************
Leaders
*******************************************************************************/

// SetLeader records the node believed to lead a slot.
func (p *Proposer) SetLeader(slot int, id int) {
	p.leaderLock.Lock()
	defer p.leaderLock.Unlock()

	p.leaders[slot] = id
}

// IsLeader reports whether this node is recorded as the leader of a slot.
func (p *Proposer) IsLeader(slot int) bool {
	p.leaderLock.RLock()
	defer p.leaderLock.RUnlock()

	id, ok := p.leaders[slot]
	return ok && id == p.id
}

/*******************************************************************************
Proposal numbers
*******************************************************************************/

// nextNumber increments the round counter of a slot and persists it before
// returning the corresponding proposal number.
func (p *Proposer) nextNumber(slot int) (paxos.ProposalNumber, error) {
	p.counterLock.Lock()
	defer p.counterLock.Unlock()

	c := p.counters[slot] + 1

	if err := p.store.SetCounter(slot, c); err != nil {
		return paxos.ProposalNumber{}, err
	}

	p.counters[slot] = c

	return paxos.NewProposalNumber(c, p.id), nil
}

// observe raises the round counter of a slot to that of a proposal number seen
// in a response, so that the next round outnumbers it.
func (p *Proposer) observe(slot int, n *paxos.ProposalNumber) {
	if n == nil {
		return
	}

	p.counterLock.Lock()
	defer p.counterLock.Unlock()

	if n.Counter > p.counters[slot] {
		p.counters[slot] = n.Counter
	}
}

/*******************************************************************************
Messages
*******************************************************************************/

func (p *Proposer) broadcast(msg net.Message) {
	for _, addr := range p.peers.AcceptorAddrs() {
		if err := p.trans.Send(addr, msg); err != nil {
			p.logger.WithError(err).WithFields(logrus.Fields{
				"type": msg.Type(),
				"to":   addr,
			}).Debug("Sending")
		}
	}
}

// waitQuorum blocks until the buffer holds responses of type t to round n of a
// slot from a majority of acceptors, counting only the responses received
// since the round started. It is woken by every new response, and
// otherwise re-checks the buffer every poll interval until the round timeout.
func (p *Proposer) waitQuorum(slot int, t net.MessageType, n paxos.ProposalNumber, since time.Time) ([]net.Message, error) {
	majority := p.peers.MajoritySize()

	deadline := time.NewTimer(p.roundTimeout)
	defer deadline.Stop()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		notify := p.buffer.Wait()

		responses := p.buffer.Collect(slot, t, n, since)
		if len(responses) >= majority {
			return responses, nil
		}

		select {
		case <-notify:
		case <-ticker.C:
		case <-deadline.C:
			return nil, ErrNoQuorum
		case <-p.shutdownCh:
			return nil, ErrNoQuorum
		}
	}
}

// Run consumes the Proposer's transport, depositing PROMISEs and ACKs in the
// message buffer, and prunes the buffer in the background, until Shutdown is
// called.
func (p *Proposer) Run() {
	p.GoFunc(p.gcLoop)

	consumer := p.trans.Consumer()
	for {
		select {
		case dg := <-consumer:
			p.receive(dg)
		case <-p.shutdownCh:
			return
		}
	}
}

func (p *Proposer) receive(dg net.Datagram) {
	msg := dg.Message

	if _, ok := net.Round(msg); !ok {
		return
	}

	if _, ok := p.peers.ByID[msg.Sender()]; !ok {
		p.logger.WithFields(logrus.Fields{
			"from":   msg.Sender(),
			"source": dg.Source,
		}).Debug("Unknown sender")
		return
	}

	p.buffer.Add(msg)
}

func (p *Proposer) gcLoop() {
	ticker := time.NewTicker(p.gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := p.buffer.Prune(p.roundTimeout); removed > 0 {
				p.logger.WithField("removed", removed).Debug("Pruned message buffer")
			}
		case <-p.shutdownCh:
			return
		}
	}
}

func (p *Proposer) fatal(err error) {
	p.logger.WithError(err).Error("Persisting proposer state")
	p.onFatal(err)
}

func (p *Proposer) isShutdown() bool {
	select {
	case <-p.shutdownCh:
		return true
	default:
		return false
	}
}

// GetStats returns the Proposer's counters.
func (p *Proposer) GetStats() map[string]string {
	p.latencyLock.Lock()
	median := p.latency.Median()
	p.latencyLock.Unlock()

	return map[string]string{
		"rounds":         strconv.FormatUint(atomic.LoadUint64(&p.rounds), 10),
		"successes":      strconv.FormatUint(atomic.LoadUint64(&p.successes), 10),
		"preempted":      strconv.FormatUint(atomic.LoadUint64(&p.preempted), 10),
		"no_quorum":      strconv.FormatUint(atomic.LoadUint64(&p.noQuorum), 10),
		"median_latency": median.String(),
		"buffered":       strconv.Itoa(p.buffer.Len()),
	}
}

// Shutdown stops the loops of the Proposer and aborts the rounds waiting for
// responses.
func (p *Proposer) Shutdown() {
	close(p.shutdownCh)
	p.WaitRoutines()
}
