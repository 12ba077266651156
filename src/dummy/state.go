package dummy

import (
	"bytes"
	"sort"
	"sync"

	"github.com/mosaicnetworks/synod/src/common"
	"github.com/mosaicnetworks/synod/src/node/state"
	"github.com/mosaicnetworks/synod/src/paxos"
	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
)

// State represents the state of our dummy application. It implements the
// ProxyHandler interface for use with an InmemProxy. It treats every event as
// a text message, keeps them in the order they were committed, and computes a
// state hash by chaining the hashes of the events together. Snapshots are the
// JSON encoding of the whole state.
type State struct {
	sync.RWMutex
	committed []paxos.LogEntry
	stateHash []byte
	nodeState state.State
	logger    *logrus.Entry
}

// snapshot is the serialized form of State.
type snapshot struct {
	Committed []paxos.LogEntry
	StateHash []byte
}

// NewState creates a new dummy state.
func NewState(logger *logrus.Entry) *State {
	state := &State{
		committed: []paxos.LogEntry{},
		stateHash: []byte{},
		logger:    logger,
	}

	logger.Info("Init Dummy State")

	return state
}

// CommitHandler implements the ProxyHandler interface. It is called by Synod
// every time an entry is written to the local log. Entries arrive in commit
// order, which is the same on every node only if no holes had to be repaired,
// so the state hash covers the slot as well as the event.
func (a *State) CommitHandler(entry paxos.LogEntry) ([]byte, error) {
	a.Lock()
	defer a.Unlock()

	a.logger.WithFields(logrus.Fields{
		"slot":    entry.Slot,
		"message": string(entry.Event),
	}).Info("Commit")

	a.committed = append(a.committed, paxos.LogEntry{
		Slot:  entry.Slot,
		Event: entry.Event.Copy(),
	})

	a.stateHash = common.ChainHash(a.stateHash, entryBytes(entry))

	return a.stateHash, nil
}

// SnapshotHandler implements the ProxyHandler interface. It returns the
// canonical JSON encoding of the state.
func (a *State) SnapshotHandler() ([]byte, error) {
	a.RLock()
	defer a.RUnlock()

	s := snapshot{
		Committed: a.committed,
		StateHash: a.stateHash,
	}

	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(&s); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// RestoreHandler implements the ProxyHandler interface. It replaces the whole
// state with the content of a snapshot.
func (a *State) RestoreHandler(data []byte) ([]byte, error) {
	var s snapshot

	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(bytes.NewBuffer(data), jh)

	if err := dec.Decode(&s); err != nil {
		return nil, err
	}

	a.Lock()
	defer a.Unlock()

	a.committed = s.Committed
	if a.committed == nil {
		a.committed = []paxos.LogEntry{}
	}
	a.stateHash = s.StateHash
	if a.stateHash == nil {
		a.stateHash = []byte{}
	}

	a.logger.WithField("entries", len(a.committed)).Debug("Restore")

	return a.stateHash, nil
}

// StateChangeHandler implements the ProxyHandler interface. It is called by
// Synod to notify the application that the node has entered a new state (ex
// CatchingUp, Running, Shutdown).
func (a *State) StateChangeHandler(state state.State) error {
	a.Lock()
	defer a.Unlock()

	a.nodeState = state
	a.logger.WithField("state", state).Debugf("StateChangeHandler")
	return nil
}

// GetCommittedEntries returns the committed entries in commit order.
func (a *State) GetCommittedEntries() []paxos.LogEntry {
	a.RLock()
	defer a.RUnlock()

	res := make([]paxos.LogEntry, len(a.committed))
	copy(res, a.committed)
	return res
}

// Timeline returns the committed messages in slot order.
func (a *State) Timeline() []string {
	entries := a.GetCommittedEntries()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Slot < entries[j].Slot
	})

	res := make([]string, len(entries))
	for i, e := range entries {
		res[i] = string(e.Event)
	}

	return res
}

// GetStateHash returns the current state hash.
func (a *State) GetStateHash() []byte {
	a.RLock()
	defer a.RUnlock()

	return a.stateHash
}

// GetNodeState returns the last state notified by the node.
func (a *State) GetNodeState() state.State {
	a.RLock()
	defer a.RUnlock()

	return a.nodeState
}

// entryBytes is the input of the hash chain for one entry: the slot on eight
// bytes followed by the event.
func entryBytes(entry paxos.LogEntry) []byte {
	b := make([]byte, 8, 8+len(entry.Event))
	s := uint64(entry.Slot)
	for i := 7; i >= 0; i-- {
		b[i] = byte(s)
		s >>= 8
	}
	return append(b, entry.Event...)
}
