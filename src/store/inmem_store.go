package store

import (
	"sync"

	cm "github.com/mosaicnetworks/synod/src/common"
	"github.com/mosaicnetworks/synod/src/paxos"
)

// InmemStore implements the Store interface in memory. Nothing survives the
// process, but a node can be "restarted" in tests by handing the same
// InmemStore to a new node.
type InmemStore struct {
	sync.RWMutex
	records  []Record
	snapshot *Snapshot
	states   map[int]*paxos.AcceptorSlotState
	counters map[int]int
}

// NewInmemStore creates an empty InmemStore.
func NewInmemStore() *InmemStore {
	return &InmemStore{
		records:  []Record{},
		states:   make(map[int]*paxos.AcceptorSlotState),
		counters: make(map[int]int),
	}
}

// Append implements the LogStore interface.
func (s *InmemStore) Append(slot int, event paxos.Event) error {
	s.Lock()
	defer s.Unlock()

	s.records = append(s.records, Record{Slot: slot, Event: event.Copy()})

	return nil
}

// Records implements the LogStore interface.
func (s *InmemStore) Records() ([]Record, error) {
	s.RLock()
	defer s.RUnlock()

	res := make([]Record, len(s.records))
	for i, r := range s.records {
		res[i] = Record{Slot: r.Slot, Event: r.Event.Copy()}
	}

	return res, nil
}

// SetSnapshot implements the LogStore interface.
func (s *InmemStore) SetSnapshot(snapshot *Snapshot) error {
	s.Lock()
	defer s.Unlock()

	data := make([]byte, len(snapshot.Data))
	copy(data, snapshot.Data)

	s.snapshot = &Snapshot{Writes: snapshot.Writes, Data: data}

	return nil
}

// GetSnapshot implements the LogStore interface.
func (s *InmemStore) GetSnapshot() (*Snapshot, error) {
	s.RLock()
	defer s.RUnlock()

	if s.snapshot == nil {
		return nil, cm.NewStoreErr("Snapshot", cm.KeyNotFound, snapshotKey)
	}

	return &Snapshot{Writes: s.snapshot.Writes, Data: s.snapshot.Data}, nil
}

// SetPromise implements the StateStore interface.
func (s *InmemStore) SetPromise(slot int, n paxos.ProposalNumber) error {
	s.Lock()
	defer s.Unlock()

	slotState(s.states, slot).MaxPrepare = &n

	return nil
}

// SetAccepted implements the StateStore interface.
func (s *InmemStore) SetAccepted(slot int, n paxos.ProposalNumber, value paxos.Event) error {
	s.Lock()
	defer s.Unlock()

	st := slotState(s.states, slot)
	mp, an := n, n
	st.MaxPrepare = &mp
	st.AccNum = &an
	st.AccVal = value.Copy()

	return nil
}

// Load implements the StateStore interface.
func (s *InmemStore) Load() (map[int]*paxos.AcceptorSlotState, error) {
	s.RLock()
	defer s.RUnlock()

	res := make(map[int]*paxos.AcceptorSlotState, len(s.states))
	for slot, st := range s.states {
		res[slot] = st.Copy()
	}

	return res, nil
}

// SetCounter implements the StateStore interface.
func (s *InmemStore) SetCounter(slot int, counter int) error {
	s.Lock()
	defer s.Unlock()

	s.counters[slot] = counter

	return nil
}

// Counters implements the StateStore interface.
func (s *InmemStore) Counters() (map[int]int, error) {
	s.RLock()
	defer s.RUnlock()

	res := make(map[int]int, len(s.counters))
	for slot, c := range s.counters {
		res[slot] = c
	}

	return res, nil
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	return nil
}

// StorePath implements the Store interface.
func (s *InmemStore) StorePath() string {
	return ""
}
