package replog

import (
	"fmt"
	"os"
	"reflect"
	"testing"

	"github.com/mosaicnetworks/synod/src/common"
	"github.com/mosaicnetworks/synod/src/dummy"
	"github.com/mosaicnetworks/synod/src/paxos"
	"github.com/mosaicnetworks/synod/src/store"
)

func newTestLog(s store.LogStore, checkpoint int, t *testing.T) (*Log, *dummy.InmemDummyClient) {
	logger := common.NewTestEntry(t, common.TestLogLevel)
	app := dummy.NewInmemDummyClient(logger)

	log, err := NewLog(s, app, checkpoint, logger)
	if err != nil {
		t.Fatal(err)
	}

	return log, app
}

func ev(s string) paxos.Event {
	return paxos.Event(s)
}

func TestLogHoles(t *testing.T) {
	log, _ := newTestLog(store.NewInmemStore(), 5, t)

	if log.NextAvailableSlot() != 0 {
		t.Fatalf("NextAvailableSlot of an empty log should be 0, not %d", log.NextAvailableSlot())
	}

	for _, s := range []int{0, 1, 3} {
		if _, err := log.SetEntry(s, ev(fmt.Sprintf("e%d", s))); err != nil {
			t.Fatal(err)
		}
	}

	if n := log.NextAvailableSlot(); n != 4 {
		t.Fatalf("NextAvailableSlot should be 4, not %d", n)
	}

	if holes := log.FindHoles(); !reflect.DeepEqual(holes, []int{2}) {
		t.Fatalf("FindHoles should be [2], not %v", holes)
	}

	if _, err := log.SetEntry(2, ev("e2")); err != nil {
		t.Fatal(err)
	}

	if holes := log.FindHoles(); len(holes) != 0 {
		t.Fatalf("FindHoles should be empty, not %v", holes)
	}

	if n := log.NextAvailableSlot(); n != 4 {
		t.Fatalf("filling a hole should not move NextAvailableSlot, got %d", n)
	}

	// a far slot leaves a range of holes, reported in ascending order
	if _, err := log.SetEntry(7, ev("e7")); err != nil {
		t.Fatal(err)
	}
	if holes := log.FindHoles(); !reflect.DeepEqual(holes, []int{4, 5, 6}) {
		t.Fatalf("FindHoles should be [4 5 6], not %v", holes)
	}
}

func TestLogWriteOnce(t *testing.T) {
	s := store.NewInmemStore()
	log, app := newTestLog(s, 5, t)

	ok, err := log.SetEntry(0, ev("first"))
	if err != nil || !ok {
		t.Fatalf("first write should succeed: %v %v", ok, err)
	}

	hash := log.StateHash()

	for _, e := range []paxos.Event{ev("first"), ev("second")} {
		ok, err = log.SetEntry(0, e)
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Fatalf("writing a filled slot should be a no-op")
		}
	}

	if e, _ := log.GetEntry(0); !e.Equal(ev("first")) {
		t.Fatalf("slot 0 should still be 'first', not %s", e)
	}

	records, _ := s.Records()
	if len(records) != 1 {
		t.Fatalf("append log should have 1 record, not %d", len(records))
	}

	if len(app.GetCommittedEntries()) != 1 {
		t.Fatalf("views should have seen 1 entry")
	}

	if !reflect.DeepEqual(hash, log.StateHash()) {
		t.Fatalf("state hash should not change on a no-op write")
	}
}

func TestLogInvalidWrites(t *testing.T) {
	log, _ := newTestLog(store.NewInmemStore(), 5, t)

	if _, err := log.SetEntry(-1, ev("x")); err != ErrInvalidSlot {
		t.Fatalf("expected ErrInvalidSlot, got %v", err)
	}

	if _, err := log.SetEntry(0, paxos.Event{}); err != ErrEmptyEvent {
		t.Fatalf("expected ErrEmptyEvent, got %v", err)
	}

	if log.Len() != 0 {
		t.Fatalf("log should be empty")
	}
}

func TestLogCheckpoint(t *testing.T) {
	s := store.NewInmemStore()
	log, _ := newTestLog(s, 5, t)

	for i := 0; i < 4; i++ {
		log.SetEntry(i, ev(fmt.Sprintf("e%d", i)))
	}

	if _, err := s.GetSnapshot(); !common.IsStore(err, common.KeyNotFound) {
		t.Fatalf("no snapshot expected before 5 writes, got %v", err)
	}

	// no-op writes do not count
	log.SetEntry(0, ev("e0"))
	log.SetEntry(4, ev("e4"))

	snap, err := s.GetSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	if snap.Writes != 5 {
		t.Fatalf("snapshot should cover 5 writes, not %d", snap.Writes)
	}
}

func TestLogRecovery(t *testing.T) {
	os.RemoveAll("test_data")
	os.Mkdir("test_data", os.ModeDir|0777)
	defer os.RemoveAll("test_data")

	bs, err := store.NewBadgerStore("test_data/badger", common.NewTestEntry(t, common.TestLogLevel))
	if err != nil {
		t.Fatal(err)
	}

	log, app := newTestLog(bs, 5, t)

	// 7 writes: one snapshot at 5, and 2 records after it
	for _, s := range []int{3, 0, 1, 6, 2, 4, 9} {
		if _, err := log.SetEntry(s, ev(fmt.Sprintf("e%d", s))); err != nil {
			t.Fatal(err)
		}
	}

	expectedEntries := log.Entries()
	expectedHash := log.StateHash()
	expectedTimeline := app.Timeline()

	if err := bs.Close(); err != nil {
		t.Fatal(err)
	}

	bs, err = store.NewBadgerStore("test_data/badger", common.NewTestEntry(t, common.TestLogLevel))
	if err != nil {
		t.Fatal(err)
	}
	defer bs.Close()

	log2, app2 := newTestLog(bs, 5, t)

	if !reflect.DeepEqual(log2.Entries(), expectedEntries) {
		t.Fatalf("recovered entries should be %v, not %v", expectedEntries, log2.Entries())
	}

	if log2.NextAvailableSlot() != 10 {
		t.Fatalf("NextAvailableSlot should be 10, not %d", log2.NextAvailableSlot())
	}

	if !reflect.DeepEqual(log2.FindHoles(), []int{5, 7, 8}) {
		t.Fatalf("FindHoles should be [5 7 8], not %v", log2.FindHoles())
	}

	if !reflect.DeepEqual(log2.StateHash(), expectedHash) {
		t.Fatalf("recovered state hash should be %X, not %X", expectedHash, log2.StateHash())
	}

	if !reflect.DeepEqual(app2.Timeline(), expectedTimeline) {
		t.Fatalf("recovered timeline should be %v, not %v", expectedTimeline, app2.Timeline())
	}

	if log2.Writes() != 7 {
		t.Fatalf("Writes should be 7, not %d", log2.Writes())
	}
}

func TestLogRecoverySnapshotAhead(t *testing.T) {
	s := store.NewInmemStore()

	log, _ := newTestLog(s, 0, t)
	for i := 0; i < 3; i++ {
		log.SetEntry(i, ev(fmt.Sprintf("e%d", i)))
	}
	expectedHash := log.StateHash()

	// a snapshot covering more writes than the append log holds must be
	// ignored
	s.SetSnapshot(&store.Snapshot{Writes: 100, Data: []byte("garbage")})

	log2, app2 := newTestLog(s, 0, t)

	if !reflect.DeepEqual(log2.StateHash(), expectedHash) {
		t.Fatalf("views should be re-derived from the append log")
	}

	if len(app2.GetCommittedEntries()) != 3 {
		t.Fatalf("views should hold 3 entries, not %d", len(app2.GetCommittedEntries()))
	}
}
