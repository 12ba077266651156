package paxos

import (
	"bytes"
	"encoding/hex"
)

// Event is an opaque application command. The consensus engine never looks
// inside an Event; it only compares Events for equality, to find out whether
// its own proposal or someone else's was chosen for a slot. An empty Event
// means "no value".
type Event []byte

// Equal reports whether two Events carry the same bytes.
func (e Event) Equal(o Event) bool {
	return bytes.Equal(e, o)
}

// IsEmpty reports whether the Event holds no value.
func (e Event) IsEmpty() bool {
	return len(e) == 0
}

// Hex returns the hexadecimal encoding of the Event, used in logs.
func (e Event) Hex() string {
	return hex.EncodeToString(e)
}

// Copy returns an Event backed by its own array.
func (e Event) Copy() Event {
	if e == nil {
		return nil
	}
	c := make(Event, len(e))
	copy(c, e)
	return c
}

// LogEntry is a committed Event at a given slot.
type LogEntry struct {
	Slot  int
	Event Event
}
