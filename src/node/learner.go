package node

import (
	"github.com/mosaicnetworks/synod/src/config"
	"github.com/mosaicnetworks/synod/src/net"
	"github.com/mosaicnetworks/synod/src/node/state"
	"github.com/mosaicnetworks/synod/src/paxos"
	"github.com/mosaicnetworks/synod/src/peers"
	"github.com/mosaicnetworks/synod/src/replog"
	"github.com/sirupsen/logrus"
)

// Learner writes the values chosen by the cluster into the local Log. It
// receives COMMIT broadcasts from remote Proposers, and is called directly by
// the local Proposer.
type Learner struct {
	state.Manager

	id    int
	peers *peers.PeerSet
	log   *replog.Log
	trans net.Transport

	onFatal    func(error)
	shutdownCh chan struct{}

	logger *logrus.Entry
}

// NewLearner ...
func NewLearner(id int,
	peers *peers.PeerSet,
	log *replog.Log,
	trans net.Transport,
	conf *config.Config,
	logger *logrus.Entry) *Learner {

	l := &Learner{
		id:         id,
		peers:      peers,
		log:        log,
		trans:      trans,
		onFatal:    func(error) {},
		shutdownCh: make(chan struct{}),
		logger:     logger.WithField("role", "learner"),
	}

	l.SetLimit(conf.Workers)

	return l
}

// Learn writes a chosen value into the Log. Writing a slot that is already
// filled is a no-op.
func (l *Learner) Learn(slot int, event paxos.Event) error {
	written, err := l.log.SetEntry(slot, event)
	if err != nil {
		return err
	}

	if written {
		l.logger.WithFields(logrus.Fields{
			"slot":  slot,
			"event": event.Hex(),
		}).Debug("Learned")
	}

	return nil
}

// Run consumes COMMIT messages until Shutdown is called.
func (l *Learner) Run() {
	consumer := l.trans.Consumer()
	for {
		select {
		case dg := <-consumer:
			if !l.GoFunc(func() { l.handle(dg) }) {
				l.logger.Debug("Too busy, dropping message")
			}
		case <-l.shutdownCh:
			return
		}
	}
}

func (l *Learner) handle(dg net.Datagram) {
	commit, ok := dg.Message.(*net.CommitMessage)
	if !ok {
		return
	}

	if _, ok := l.peers.ByID[commit.From]; !ok {
		l.logger.WithFields(logrus.Fields{
			"from":   commit.From,
			"source": dg.Source,
		}).Debug("Unknown sender")
		return
	}

	err := l.Learn(commit.Slot, commit.Event)
	switch err {
	case nil:
	case replog.ErrInvalidSlot, replog.ErrEmptyEvent:
		l.logger.WithError(err).WithField("from", commit.From).Debug("Ignoring COMMIT")
	default:
		l.logger.WithError(err).Error("Writing to log")
		l.onFatal(err)
	}
}

// Shutdown stops the Run loop and waits for the commits being written.
func (l *Learner) Shutdown() {
	close(l.shutdownCh)
	l.WaitRoutines()
}
