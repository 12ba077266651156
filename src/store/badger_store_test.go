package store

import (
	"bytes"
	"os"
	"testing"

	"github.com/mosaicnetworks/synod/src/common"
	"github.com/mosaicnetworks/synod/src/paxos"
)

func TestBadgerKeysSortNumerically(t *testing.T) {
	indexes := []int{0, 9, 10, 999999999, 1000000000, 1 << 40}

	for i := 1; i < len(indexes); i++ {
		prev, next := logKey(indexes[i-1]), logKey(indexes[i])
		if bytes.Compare(prev, next) >= 0 {
			t.Fatalf("key %s should sort before %s", prev, next)
		}
	}

	for _, i := range indexes {
		slot, err := slotFromKey(accNumKey(i), accNumPrefix)
		if err != nil {
			t.Fatal(err)
		}
		if slot != i {
			t.Fatalf("key %s should parse back to %d, not %d", accNumKey(i), i, slot)
		}
	}
}

func TestBadgerRecordsPastNineDigits(t *testing.T) {
	defer os.RemoveAll("test_data")

	s, err := NewBadgerStore(testDir(t), common.NewTestEntry(t, common.TestLogLevel))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	//the append sequence crosses from 9 to 10 digits
	s.seq = 999999998

	events := []string{"a", "b", "c"}
	for i, e := range events {
		if err := s.Append(i, paxos.Event(e)); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := s.Records()
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != len(events) {
		t.Fatalf("expected %d records, got %d", len(events), len(recs))
	}
	for i, rec := range recs {
		if rec.Slot != i || string(rec.Event) != events[i] {
			t.Fatalf("record %d should be (%d, %s), not (%d, %s)", i, i, events[i], rec.Slot, rec.Event)
		}
	}
}
