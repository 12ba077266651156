package net

import (
	"fmt"

	"github.com/mosaicnetworks/synod/src/paxos"
)

// MessageType tags the variants of the wire protocol.
type MessageType uint8

const (
	// Propose is sent by a Proposer to every Acceptor to start the prepare
	// phase of a round.
	Propose MessageType = iota + 1
	// Promise is an Acceptor's positive answer to a Propose.
	Promise
	// Accept is sent by a Proposer to every Acceptor to start the accept
	// phase of a round.
	Accept
	// Ack is an Acceptor's positive answer to an Accept.
	Ack
	// Commit is broadcast by a Proposer to every Learner once a value is
	// chosen.
	Commit
)

// String ...
func (t MessageType) String() string {
	switch t {
	case Propose:
		return "PROPOSE"
	case Promise:
		return "PROMISE"
	case Accept:
		return "ACCEPT"
	case Ack:
		return "ACK"
	case Commit:
		return "COMMIT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// Message is implemented by every variant of the wire protocol. Each Message
// travels in its own datagram.
type Message interface {
	// Type returns the variant tag.
	Type() MessageType
	// SlotIndex returns the slot the message is about.
	SlotIndex() int
	// Sender returns the ID of the node that sent the message.
	Sender() int
}

// ProposeMessage asks Acceptors to promise not to accept any round numbered
// below N for Slot.
type ProposeMessage struct {
	Slot int                  `codec:"slot"`
	N    paxos.ProposalNumber `codec:"n"`
	From int                  `codec:"id"`
}

// PromiseMessage answers a ProposeMessage. It discloses the last proposal
// accepted for the slot, if any. N echoes the proposal number being answered.
type PromiseMessage struct {
	Slot   int                   `codec:"slot"`
	N      paxos.ProposalNumber  `codec:"n"`
	AccNum *paxos.ProposalNumber `codec:"acc_num"`
	AccVal paxos.Event           `codec:"acc_val"`
	From   int                   `codec:"id"`
}

// AcceptMessage asks Acceptors to accept Event for Slot in round N.
type AcceptMessage struct {
	Slot  int                  `codec:"slot"`
	N     paxos.ProposalNumber `codec:"n"`
	Event paxos.Event          `codec:"event"`
	From  int                  `codec:"id"`
}

// AckMessage answers an AcceptMessage with the Acceptor's accepted proposal
// for the slot. N echoes the proposal number being answered.
type AckMessage struct {
	Slot   int                   `codec:"slot"`
	N      paxos.ProposalNumber  `codec:"n"`
	AccNum *paxos.ProposalNumber `codec:"acc_num"`
	AccVal paxos.Event           `codec:"acc_val"`
	From   int                   `codec:"id"`
}

// CommitMessage tells Learners that Event was chosen for Slot.
type CommitMessage struct {
	Slot  int         `codec:"slot"`
	Event paxos.Event `codec:"event"`
	From  int         `codec:"id"`
}

// Type implements the Message interface.
func (m *ProposeMessage) Type() MessageType { return Propose }

// SlotIndex implements the Message interface.
func (m *ProposeMessage) SlotIndex() int { return m.Slot }

// Sender implements the Message interface.
func (m *ProposeMessage) Sender() int { return m.From }

// Type implements the Message interface.
func (m *PromiseMessage) Type() MessageType { return Promise }

// SlotIndex implements the Message interface.
func (m *PromiseMessage) SlotIndex() int { return m.Slot }

// Sender implements the Message interface.
func (m *PromiseMessage) Sender() int { return m.From }

// Type implements the Message interface.
func (m *AcceptMessage) Type() MessageType { return Accept }

// SlotIndex implements the Message interface.
func (m *AcceptMessage) SlotIndex() int { return m.Slot }

// Sender implements the Message interface.
func (m *AcceptMessage) Sender() int { return m.From }

// Type implements the Message interface.
func (m *AckMessage) Type() MessageType { return Ack }

// SlotIndex implements the Message interface.
func (m *AckMessage) SlotIndex() int { return m.Slot }

// Sender implements the Message interface.
func (m *AckMessage) Sender() int { return m.From }

// Type implements the Message interface.
func (m *CommitMessage) Type() MessageType { return Commit }

// SlotIndex implements the Message interface.
func (m *CommitMessage) SlotIndex() int { return m.Slot }

// Sender implements the Message interface.
func (m *CommitMessage) Sender() int { return m.From }

// Round returns the proposal number a response answers, and whether the
// message is a response at all.
func Round(m Message) (paxos.ProposalNumber, bool) {
	switch r := m.(type) {
	case *PromiseMessage:
		return r.N, true
	case *AckMessage:
		return r.N, true
	default:
		return paxos.ProposalNumber{}, false
	}
}

// Accepted returns the accepted proposal a response carries, as reported by
// the Acceptor. MaxPrepare is never set.
func Accepted(m Message) paxos.AcceptorSlotState {
	switch r := m.(type) {
	case *PromiseMessage:
		return paxos.AcceptorSlotState{AccNum: r.AccNum, AccVal: r.AccVal}
	case *AckMessage:
		return paxos.AcceptorSlotState{AccNum: r.AccNum, AccVal: r.AccVal}
	default:
		return paxos.AcceptorSlotState{}
	}
}
