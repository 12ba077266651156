package store

import (
	"encoding/binary"
	"path/filepath"

	"github.com/boltdb/bolt"
	cm "github.com/mosaicnetworks/synod/src/common"
	"github.com/mosaicnetworks/synod/src/paxos"
)

const boltFile = "synod.db"

var (
	logBkt        = []byte("log")
	snapshotBkt   = []byte("snapshot")
	maxPrepareBkt = []byte("max_prepare")
	accNumBkt     = []byte("acc_num")
	accValBkt     = []byte("acc_val")
	counterBkt    = []byte("counter")
)

// BoltStore implements the Store interface on top of a single BoltDB file.
// Every array has its own bucket.
type BoltStore struct {
	fn string
	db *bolt.DB
}

// NewBoltStore opens the database file in dir, creating it if needed.
func NewBoltStore(dir string) (*BoltStore, error) {
	fn := filepath.Join(dir, boltFile)

	db, err := bolt.Open(fn, 0600, nil)
	if err != nil {
		return nil, err
	}
	s := &BoltStore{
		fn: fn,
		db: db,
	}
	err = s.init()
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *BoltStore) init() error {
	tx, err := s.db.Begin(true)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Create all the buckets
	for _, b := range [][]byte{logBkt, snapshotBkt, maxPrepareBkt, accNumBkt, accValBkt, counterBkt} {
		if _, err := tx.CreateBucketIfNotExists(b); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Close implements the Store interface.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// StorePath implements the Store interface.
func (s *BoltStore) StorePath() string {
	return s.fn
}

// Append implements the LogStore interface. Keys come from the bucket
// sequence so cursor order is append order.
func (s *BoltStore) Append(slot int, event paxos.Event) error {
	rec := Record{Slot: slot, Event: event}
	data, err := rec.Marshal()
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(logBkt)
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(itob(int(id)), data)
	})
}

// Records implements the LogStore interface.
func (s *BoltStore) Records() ([]Record, error) {
	res := []Record{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(logBkt).ForEach(func(k, v []byte) error {
			var rec Record
			if err := rec.Unmarshal(v); err != nil {
				return err
			}
			res = append(res, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// SetSnapshot implements the LogStore interface.
func (s *BoltStore) SetSnapshot(snapshot *Snapshot) error {
	data, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(snapshotBkt).Put([]byte(snapshotKey), data)
	})
}

// GetSnapshot implements the LogStore interface.
func (s *BoltStore) GetSnapshot() (*Snapshot, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(snapshotBkt).Get([]byte(snapshotKey))
		if v == nil {
			return cm.NewStoreErr("Snapshot", cm.KeyNotFound, snapshotKey)
		}
		// v is only valid for the life of the transaction
		data = append([]byte{}, v...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	snapshot := new(Snapshot)
	if err := snapshot.Unmarshal(data); err != nil {
		return nil, err
	}

	return snapshot, nil
}

// SetPromise implements the StateStore interface.
func (s *BoltStore) SetPromise(slot int, n paxos.ProposalNumber) error {
	val, err := marshalProposal(n)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(maxPrepareBkt).Put(itob(slot), val)
	})
}

// SetAccepted implements the StateStore interface.
func (s *BoltStore) SetAccepted(slot int, n paxos.ProposalNumber, value paxos.Event) error {
	val, err := marshalProposal(n)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(maxPrepareBkt).Put(itob(slot), val); err != nil {
			return err
		}
		if err := tx.Bucket(accNumBkt).Put(itob(slot), val); err != nil {
			return err
		}
		return tx.Bucket(accValBkt).Put(itob(slot), value)
	})
}

// Load implements the StateStore interface.
func (s *BoltStore) Load() (map[int]*paxos.AcceptorSlotState, error) {
	states := make(map[int]*paxos.AcceptorSlotState)

	err := s.db.View(func(tx *bolt.Tx) error {
		if err := tx.Bucket(maxPrepareBkt).ForEach(func(k, v []byte) error {
			n, err := unmarshalProposal(v)
			if err != nil {
				return err
			}
			slotState(states, btoi(k)).MaxPrepare = n
			return nil
		}); err != nil {
			return err
		}

		if err := tx.Bucket(accNumBkt).ForEach(func(k, v []byte) error {
			n, err := unmarshalProposal(v)
			if err != nil {
				return err
			}
			slotState(states, btoi(k)).AccNum = n
			return nil
		}); err != nil {
			return err
		}

		return tx.Bucket(accValBkt).ForEach(func(k, v []byte) error {
			slotState(states, btoi(k)).AccVal = paxos.Event(append([]byte{}, v...))
			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return states, nil
}

// SetCounter implements the StateStore interface.
func (s *BoltStore) SetCounter(slot int, counter int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(counterBkt).Put(itob(slot), itob(counter))
	})
}

// Counters implements the StateStore interface.
func (s *BoltStore) Counters() (map[int]int, error) {
	counters := make(map[int]int)

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(counterBkt).ForEach(func(k, v []byte) error {
			counters[btoi(k)] = btoi(v)
			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return counters, nil
}

// itob returns an 8-byte big endian representation of v.
func itob(v int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func btoi(b []byte) int {
	return int(binary.BigEndian.Uint64(b))
}
