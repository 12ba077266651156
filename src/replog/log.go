package replog

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mosaicnetworks/synod/src/common"
	"github.com/mosaicnetworks/synod/src/paxos"
	"github.com/mosaicnetworks/synod/src/proxy"
	"github.com/mosaicnetworks/synod/src/store"
	"github.com/sirupsen/logrus"
)

var (
	// ErrInvalidSlot is returned when writing to a negative slot.
	ErrInvalidSlot = errors.New("invalid slot")

	// ErrEmptyEvent is returned when writing an empty event, which would be
	// indistinguishable from a hole.
	ErrEmptyEvent = errors.New("empty event")
)

// Log is the slot-indexed record of committed events. Reads of a slot are
// cheap; writes go through the durable store and the application views
// under a single lock.
type Log struct {
	sync.RWMutex

	entries   map[int]paxos.Event
	highWater int // one past the highest filled slot

	store      store.LogStore
	handler    proxy.ViewHandler
	checkpoint int
	writes     int
	stateHash  []byte

	logger *logrus.Entry
}

// NewLog creates a Log backed by a LogStore and replays whatever the store
// already holds. handler may be nil, in which case no views are maintained. A
// checkpoint of 0 or less disables snapshots.
func NewLog(store store.LogStore,
	handler proxy.ViewHandler,
	checkpoint int,
	logger *logrus.Entry) (*Log, error) {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	l := &Log{
		entries:    make(map[int]paxos.Event),
		store:      store,
		handler:    handler,
		checkpoint: checkpoint,
		stateHash:  []byte{},
		logger:     logger.WithField("component", "log"),
	}

	if err := l.recover(); err != nil {
		return nil, err
	}

	return l, nil
}

// GetEntry returns the event committed at slot, if any.
func (l *Log) GetEntry(slot int) (paxos.Event, bool) {
	l.RLock()
	defer l.RUnlock()

	e, ok := l.entries[slot]
	return e, ok
}

// SetEntry writes event at slot if the slot is empty. It returns true if the
// entry was written, and false if the slot was already filled, in which case
// nothing changes. A non-nil error means the entry could not be persisted or
// applied to the views; the Log should not be used any further.
func (l *Log) SetEntry(slot int, event paxos.Event) (bool, error) {
	if slot < 0 {
		return false, ErrInvalidSlot
	}
	if event.IsEmpty() {
		return false, ErrEmptyEvent
	}

	l.Lock()
	defer l.Unlock()

	if _, ok := l.entries[slot]; ok {
		return false, nil
	}

	event = event.Copy()

	if err := l.store.Append(slot, event); err != nil {
		return false, err
	}

	l.entries[slot] = event
	if slot >= l.highWater {
		l.highWater = slot + 1
	}
	l.writes++

	l.logger.WithFields(logrus.Fields{
		"slot":  slot,
		"event": event.Hex(),
	}).Debug("SetEntry")

	if err := l.apply(slot, event); err != nil {
		return true, err
	}

	if l.checkpoint > 0 && l.writes%l.checkpoint == 0 {
		if err := l.snapshot(); err != nil {
			return true, err
		}
	}

	return true, nil
}

// NextAvailableSlot returns one past the highest filled slot, or 0 if the Log
// is empty. Empty slots below it are not taken into account; they are
// reported by FindHoles.
func (l *Log) NextAvailableSlot() int {
	l.RLock()
	defer l.RUnlock()

	return l.highWater
}

// FindHoles returns the empty slots below NextAvailableSlot, in ascending
// order.
func (l *Log) FindHoles() []int {
	l.RLock()
	defer l.RUnlock()

	holes := []int{}
	if len(l.entries) == l.highWater {
		return holes
	}

	for s := 0; s < l.highWater; s++ {
		if _, ok := l.entries[s]; !ok {
			holes = append(holes, s)
		}
	}

	return holes
}

// Entries returns every committed entry in slot order.
func (l *Log) Entries() []paxos.LogEntry {
	l.RLock()
	defer l.RUnlock()

	res := make([]paxos.LogEntry, 0, len(l.entries))
	for s, e := range l.entries {
		res = append(res, paxos.LogEntry{Slot: s, Event: e})
	}

	sort.Slice(res, func(i, j int) bool {
		return res[i].Slot < res[j].Slot
	})

	return res
}

// Len returns the number of filled slots.
func (l *Log) Len() int {
	l.RLock()
	defer l.RUnlock()

	return len(l.entries)
}

// Writes returns the number of records in the append log.
func (l *Log) Writes() int {
	l.RLock()
	defer l.RUnlock()

	return l.writes
}

// StateHash returns the last state hash reported by the views.
func (l *Log) StateHash() []byte {
	l.RLock()
	defer l.RUnlock()

	return l.stateHash
}

/*******************************************************************************
Private methods, called with the lock held or during construction
*******************************************************************************/

func (l *Log) apply(slot int, event paxos.Event) error {
	if l.handler == nil {
		return nil
	}

	hash, err := l.handler.CommitEntry(paxos.LogEntry{Slot: slot, Event: event})
	if err != nil {
		return fmt.Errorf("applying slot %d: %v", slot, err)
	}

	l.stateHash = hash

	return nil
}

func (l *Log) snapshot() error {
	if l.handler == nil {
		return nil
	}

	data, err := l.handler.GetSnapshot()
	if err != nil {
		return err
	}

	if err := l.store.SetSnapshot(&store.Snapshot{Writes: l.writes, Data: data}); err != nil {
		return err
	}

	l.logger.WithField("writes", l.writes).Debug("Checkpoint")

	return nil
}

// recover replays the append log. See the package documentation for the
// rules.
func (l *Log) recover() error {
	records, err := l.store.Records()
	if err != nil {
		return err
	}

	// index of the first record that must be applied to the views
	from := 0

	if l.handler != nil && len(records) > 0 {
		snap, err := l.store.GetSnapshot()
		switch {
		case err == nil && snap.Writes <= len(records):
			hash, err := l.handler.Restore(snap.Data)
			if err != nil {
				return err
			}
			l.stateHash = hash
			from = snap.Writes
		case err == nil:
			l.logger.WithFields(logrus.Fields{
				"snapshot": snap.Writes,
				"records":  len(records),
			}).Warn("Snapshot ahead of append log, re-deriving views")
		case !common.IsStore(err, common.KeyNotFound):
			return err
		}
	}

	for i, r := range records {
		if _, ok := l.entries[r.Slot]; ok {
			l.logger.WithField("slot", r.Slot).Warn("Duplicate record in append log")
			continue
		}

		l.entries[r.Slot] = r.Event
		if r.Slot >= l.highWater {
			l.highWater = r.Slot + 1
		}

		if i >= from {
			if err := l.apply(r.Slot, r.Event); err != nil {
				return err
			}
		}
	}

	l.writes = len(records)

	l.logger.WithFields(logrus.Fields{
		"records":    len(records),
		"restored":   from,
		"high_water": l.highWater,
	}).Debug("Replayed append log")

	return nil
}
