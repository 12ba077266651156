package synod

import (
	"fmt"
	"os"

	"github.com/mosaicnetworks/synod/src/config"
	"github.com/mosaicnetworks/synod/src/dummy"
	"github.com/mosaicnetworks/synod/src/net"
	"github.com/mosaicnetworks/synod/src/node"
	"github.com/mosaicnetworks/synod/src/peers"
	"github.com/mosaicnetworks/synod/src/replog"
	"github.com/mosaicnetworks/synod/src/service"
	"github.com/mosaicnetworks/synod/src/store"
	"github.com/sirupsen/logrus"
)

// Synod is a struct containing the key objects of a Synod node: the
// configuration, the cluster, the store, the replicated log, the transports,
// the node itself, and the optional HTTP service.
type Synod struct {
	Config     *config.Config
	Node       *node.Node
	Transports node.Transports
	Store      store.Store
	Log        *replog.Log
	Peers      *peers.PeerSet
	Service    *service.Service
	logger     *logrus.Entry
}

// NewSynod is a factory method to produce a Synod instance.
func NewSynod(c *config.Config) *Synod {
	engine := &Synod{
		Config: c,
		logger: c.Logger(),
	}

	return engine
}

// Init initialises the Synod object with the objects it depends on, in order:
// the peers from the hosts file, the store, the application proxy and the log,
// the transports, the node, and the service.
func (s *Synod) Init() error {
	s.logger.Debug("validateConfig")
	if err := s.validateConfig(); err != nil {
		s.logger.WithError(err).Error("synod.go:Init() validateConfig")
		return err
	}

	s.logger.Debug("initPeers")
	if err := s.initPeers(); err != nil {
		s.logger.WithError(err).Error("synod.go:Init() initPeers")
		return err
	}

	s.logger.Debug("initStore")
	if err := s.initStore(); err != nil {
		s.logger.WithError(err).Error("synod.go:Init() initStore")
		return err
	}

	s.logger.Debug("initLog")
	if err := s.initLog(); err != nil {
		s.logger.WithError(err).Error("synod.go:Init() initLog")
		s.Store.Close()
		return err
	}

	s.logger.Debug("initTransports")
	if err := s.initTransports(); err != nil {
		s.logger.WithError(err).Error("synod.go:Init() initTransports")
		s.Store.Close()
		return err
	}

	s.logger.Debug("initNode")
	if err := s.initNode(); err != nil {
		s.logger.WithError(err).Error("synod.go:Init() initNode")
		s.Transports.Close()
		s.Store.Close()
		return err
	}

	s.logger.Debug("initService")
	if err := s.initService(); err != nil {
		s.logger.WithError(err).Error("synod.go:Init() initService")
		return err
	}

	return nil
}

// Run starts the service, if any, and runs the node. It blocks until the node
// shuts down.
func (s *Synod) Run() {
	if s.Service != nil && s.Config.ServiceAddr != "" {
		go s.Service.Serve()
	}

	s.Node.Run()
}

func (s *Synod) validateConfig() error {
	// If --datadir was explicitly set, but not --db or --cluster, the
	// following line will update the default paths accordingly.
	s.Config.SetDataDir(s.Config.DataDir)

	logFields := logrus.Fields{
		"Config.DataDir":      s.Config.DataDir,
		"Config.ID":           s.Config.ID,
		"Config.ClusterFile":  s.Config.ClusterFile,
		"Config.Store":        s.Config.Store,
		"Config.DatabaseDir":  s.Config.DatabaseDir,
		"Config.RoundTimeout": s.Config.RoundTimeout,
		"Config.HoleInterval": s.Config.HoleInterval,
		"Config.Checkpoint":   s.Config.Checkpoint,
		"Config.Workers":      s.Config.Workers,
		"Config.LogLevel":     s.Config.LogLevel,
	}

	if s.Config.RoundTimeout <= 0 {
		return fmt.Errorf("timeout must be positive, not %v", s.Config.RoundTimeout)
	}

	if s.Config.HoleInterval <= 0 {
		return fmt.Errorf("hole-interval must be positive, not %v", s.Config.HoleInterval)
	}

	if s.Config.BufferSize <= 0 {
		s.logger.WithField("buffer", s.Config.BufferSize).Warn("Using default buffer size")
		s.Config.BufferSize = config.DefaultBufferSize
	}

	s.logger.WithFields(logFields).Debug("Config")

	return nil
}

func (s *Synod) initPeers() error {
	if s.Peers != nil {
		s.logger.Debug("Using preset peers")
		return nil
	}

	peerStore := peers.NewTextPeerSet(s.Config.ClusterFile)

	participants, err := peerStore.PeerSet()
	if err != nil {
		return err
	}

	if _, ok := participants.ByID[s.Config.ID]; !ok {
		return fmt.Errorf("node %d is not listed in %s", s.Config.ID, peerStore.Path())
	}

	s.Peers = participants

	return nil
}

func (s *Synod) initStore() error {
	switch s.Config.Store {
	case config.InmemStore:
		s.Store = store.NewInmemStore()
		s.logger.Debug("created new in-mem store")
	case config.BadgerStore:
		s.logger.WithField("path", s.Config.DatabaseDir).Debug("Attempting to load or create badger database")

		dbStore, err := store.NewBadgerStore(s.Config.DatabaseDir, s.logger)
		if err != nil {
			return err
		}
		s.Store = dbStore
	case config.BoltStore:
		dir := s.Config.BoltDir()

		s.logger.WithField("path", dir).Debug("Attempting to load or create bolt database")

		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}

		dbStore, err := store.NewBoltStore(dir)
		if err != nil {
			return err
		}
		s.Store = dbStore
	default:
		return fmt.Errorf("unknown store: %s", s.Config.Store)
	}

	return nil
}

func (s *Synod) initLog() error {
	if s.Config.Proxy == nil {
		s.logger.Debug("No application proxy, using the dummy application")
		s.Config.Proxy = dummy.NewInmemDummyClient(s.logger)
	}

	log, err := replog.NewLog(s.Store, s.Config.Proxy, s.Config.Checkpoint, s.logger)
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"entries":   log.Len(),
		"next_slot": log.NextAvailableSlot(),
	}).Debug("Loaded log")

	s.Log = log

	return nil
}

func (s *Synod) initTransports() error {
	self := s.Peers.ByID[s.Config.ID]

	addrs := []string{self.ProposerAddr(), self.AcceptorAddr(), self.LearnerAddr()}
	transports := []net.Transport{}

	for _, addr := range addrs {
		trans, err := net.NewUDPTransport(addr, s.Config.BufferSize, s.logger)
		if err != nil {
			for _, t := range transports {
				t.Close()
			}
			return err
		}
		transports = append(transports, trans)
	}

	s.Transports = node.Transports{
		Proposer: transports[0],
		Acceptor: transports[1],
		Learner:  transports[2],
	}

	return nil
}

func (s *Synod) initNode() error {
	s.logger.WithFields(logrus.Fields{
		"participants": s.Peers.Len(),
		"id":           s.Config.ID,
	}).Debug("PARTICIPANTS")

	n, err := node.NewNode(
		s.Config,
		s.Config.ID,
		s.Peers,
		s.Log,
		s.Store,
		s.Transports,
		s.Config.Proxy,
	)
	if err != nil {
		return err
	}

	if err := n.Init(); err != nil {
		return fmt.Errorf("failed to initialize node: %s", err)
	}

	s.Node = n

	return nil
}

func (s *Synod) initService() error {
	if !s.Config.NoService {
		s.Service = service.NewService(s.Config.ServiceAddr, s.Node, s.logger)
	}
	return nil
}
