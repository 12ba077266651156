package store

import (
	"bytes"

	"github.com/mosaicnetworks/synod/src/paxos"
	"github.com/ugorji/go/codec"
)

// Record is an entry of the append log.
type Record struct {
	Slot  int         `codec:"slot"`
	Event paxos.Event `codec:"event"`
}

// Marshal - msgpack encoding of Record
func (r *Record) Marshal() ([]byte, error) {
	return marshal(r)
}

// Unmarshal ...
func (r *Record) Unmarshal(data []byte) error {
	return unmarshal(data, r)
}

// Snapshot is the serialized state of the application views after a given
// number of writes to the Log.
type Snapshot struct {
	Writes int    `codec:"writes"`
	Data   []byte `codec:"data"`
}

// Marshal - msgpack encoding of Snapshot
func (s *Snapshot) Marshal() ([]byte, error) {
	return marshal(s)
}

// Unmarshal ...
func (s *Snapshot) Unmarshal(data []byte) error {
	return unmarshal(data, s)
}

func marshalProposal(n paxos.ProposalNumber) ([]byte, error) {
	return marshal(&n)
}

func unmarshalProposal(data []byte) (*paxos.ProposalNumber, error) {
	n := new(paxos.ProposalNumber)
	if err := unmarshal(data, n); err != nil {
		return nil, err
	}
	return n, nil
}

func marshal(v interface{}) ([]byte, error) {
	b := new(bytes.Buffer)
	mh := new(codec.MsgpackHandle)
	mh.WriteExt = true
	enc := codec.NewEncoder(b, mh)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

func unmarshal(data []byte, v interface{}) error {
	b := bytes.NewBuffer(data)
	mh := new(codec.MsgpackHandle)
	mh.WriteExt = true
	dec := codec.NewDecoder(b, mh)

	return dec.Decode(v)
}

// slotState returns the entry of states for a slot, creating it if needed.
func slotState(states map[int]*paxos.AcceptorSlotState, slot int) *paxos.AcceptorSlotState {
	s, ok := states[slot]
	if !ok {
		s = &paxos.AcceptorSlotState{}
		states[slot] = s
	}
	return s
}
