package store

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/dgraph-io/badger"
	cm "github.com/mosaicnetworks/synod/src/common"
	"github.com/mosaicnetworks/synod/src/paxos"
	"github.com/sirupsen/logrus"
)

const (
	logPrefix        = "log"
	snapshotKey      = "snapshot"
	maxPreparePrefix = "mpl"
	accNumPrefix     = "anl"
	accValPrefix     = "avl"
	counterPrefix    = "pcl"
)

// BadgerStore implements the Store interface on top of a Badger database.
// Writes are synced to disk before they return.
type BadgerStore struct {
	sync.Mutex
	db   *badger.DB
	path string
	seq  int
}

// NewBadgerStore opens an existing database or creates a new one if nothing is
// found in path.
func NewBadgerStore(path string, logger *logrus.Entry) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).
		WithSyncWrites(true)

	if logger != nil {
		sub := logger.WithFields(logrus.Fields{"ns": "badger"})
		opts = opts.WithLogger(sub)
	}

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	store := &BadgerStore{
		db:   handle,
		path: path,
	}

	seq, err := store.dbLogLength()
	if err != nil {
		handle.Close()
		return nil, err
	}
	store.seq = seq

	return store, nil
}

/*******************************************************************************
Keys
*******************************************************************************/

// Indexes are zero-padded to 20 digits, enough for any non-negative int64, so
// that the byte order of the keys is the numeric order of the indexes.
func indexKey(prefix string, i int) []byte {
	return []byte(fmt.Sprintf("%s_%020d", prefix, i))
}

func logKey(seq int) []byte {
	return indexKey(logPrefix, seq)
}

func maxPrepareKey(slot int) []byte {
	return indexKey(maxPreparePrefix, slot)
}

func accNumKey(slot int) []byte {
	return indexKey(accNumPrefix, slot)
}

func accValKey(slot int) []byte {
	return indexKey(accValPrefix, slot)
}

func counterKey(slot int) []byte {
	return indexKey(counterPrefix, slot)
}

// slotFromKey parses the index at the end of a prefixed key.
func slotFromKey(key []byte, prefix string) (int, error) {
	return strconv.Atoi(string(key[len(prefix)+1:]))
}

/*******************************************************************************
Implement the Store interface
*******************************************************************************/

// Append implements the LogStore interface.
func (s *BadgerStore) Append(slot int, event paxos.Event) error {
	s.Lock()
	defer s.Unlock()

	rec := Record{Slot: slot, Event: event}
	val, err := rec.Marshal()
	if err != nil {
		return err
	}

	tx := s.db.NewTransaction(true)
	defer tx.Discard()

	//insert [log_seq] => [Record bytes]
	if err := tx.Set(logKey(s.seq), val); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.seq++

	return nil
}

// Records implements the LogStore interface. Sequence numbers are zero-padded
// so key order is append order.
func (s *BadgerStore) Records() ([]Record, error) {
	res := []Record{}
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(logPrefix + "_")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}

			var rec Record
			if err := rec.Unmarshal(data); err != nil {
				return err
			}

			res = append(res, rec)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return res, nil
}

// SetSnapshot implements the LogStore interface.
func (s *BadgerStore) SetSnapshot(snapshot *Snapshot) error {
	val, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(snapshotKey), val)
	})
}

// GetSnapshot implements the LogStore interface.
func (s *BadgerStore) GetSnapshot() (*Snapshot, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(snapshotKey))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})

	if err != nil {
		return nil, mapError(err, "Snapshot", snapshotKey)
	}

	snapshot := new(Snapshot)
	if err := snapshot.Unmarshal(data); err != nil {
		return nil, err
	}

	return snapshot, nil
}

// SetPromise implements the StateStore interface.
func (s *BadgerStore) SetPromise(slot int, n paxos.ProposalNumber) error {
	val, err := marshalProposal(n)
	if err != nil {
		return err
	}

	tx := s.db.NewTransaction(true)
	defer tx.Discard()

	if err := tx.Set(maxPrepareKey(slot), val); err != nil {
		return err
	}

	return tx.Commit()
}

// SetAccepted implements the StateStore interface. The three arrays are
// written in the same transaction.
func (s *BadgerStore) SetAccepted(slot int, n paxos.ProposalNumber, value paxos.Event) error {
	val, err := marshalProposal(n)
	if err != nil {
		return err
	}

	tx := s.db.NewTransaction(true)
	defer tx.Discard()

	if err := tx.Set(maxPrepareKey(slot), val); err != nil {
		return err
	}
	if err := tx.Set(accNumKey(slot), val); err != nil {
		return err
	}
	if err := tx.Set(accValKey(slot), value); err != nil {
		return err
	}

	return tx.Commit()
}

// Load implements the StateStore interface.
func (s *BadgerStore) Load() (map[int]*paxos.AcceptorSlotState, error) {
	states := make(map[int]*paxos.AcceptorSlotState)

	err := s.db.View(func(txn *badger.Txn) error {
		if err := iterSlots(txn, maxPreparePrefix, func(slot int, data []byte) error {
			n, err := unmarshalProposal(data)
			if err != nil {
				return err
			}
			slotState(states, slot).MaxPrepare = n
			return nil
		}); err != nil {
			return err
		}

		if err := iterSlots(txn, accNumPrefix, func(slot int, data []byte) error {
			n, err := unmarshalProposal(data)
			if err != nil {
				return err
			}
			slotState(states, slot).AccNum = n
			return nil
		}); err != nil {
			return err
		}

		return iterSlots(txn, accValPrefix, func(slot int, data []byte) error {
			slotState(states, slot).AccVal = paxos.Event(data)
			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return states, nil
}

// SetCounter implements the StateStore interface.
func (s *BadgerStore) SetCounter(slot int, counter int) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(counterKey(slot), []byte(strconv.Itoa(counter)))
	})
}

// Counters implements the StateStore interface.
func (s *BadgerStore) Counters() (map[int]int, error) {
	counters := make(map[int]int)

	err := s.db.View(func(txn *badger.Txn) error {
		return iterSlots(txn, counterPrefix, func(slot int, data []byte) error {
			c, err := strconv.Atoi(string(data))
			if err != nil {
				return cm.NewStoreErr("Counter", cm.Corrupted, string(counterKey(slot)))
			}
			counters[slot] = c
			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return counters, nil
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// StorePath returns the full path of the underlying Badger database directory.
func (s *BadgerStore) StorePath() string {
	return s.path
}

/*******************************************************************************
DB Methods
*******************************************************************************/

func (s *BadgerStore) dbLogLength() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		prefix := []byte(logPrefix + "_")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func iterSlots(txn *badger.Txn, prefix string, fn func(slot int, data []byte) error) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	p := []byte(prefix + "_")
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		item := it.Item()

		slot, err := slotFromKey(item.Key(), prefix)
		if err != nil {
			return cm.NewStoreErr(prefix, cm.Corrupted, string(item.Key()))
		}

		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		if err := fn(slot, data); err != nil {
			return err
		}
	}

	return nil
}

func isDBKeyNotFound(err error) bool {
	return err != nil && err.Error() == badger.ErrKeyNotFound.Error()
}

func mapError(err error, name, key string) error {
	if err != nil {
		if isDBKeyNotFound(err) {
			return cm.NewStoreErr(name, cm.KeyNotFound, key)
		}
	}
	return err
}
