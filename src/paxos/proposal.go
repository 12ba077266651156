package paxos

import "fmt"

// ProposalNumber identifies a round of the Synod protocol. Proposal numbers are
// ordered lexicographically on (Counter, NodeID), so two nodes never produce
// the same number, and there is a strict order even when counters collide.
type ProposalNumber struct {
	Counter int
	NodeID  int
}

// Sentinel is the reserved proposal number used by recovery rounds. It means
// "answer unconditionally, without establishing a new promise".
var Sentinel = ProposalNumber{}

// NewProposalNumber ...
func NewProposalNumber(counter, nodeID int) ProposalNumber {
	return ProposalNumber{
		Counter: counter,
		NodeID:  nodeID,
	}
}

// IsSentinel reports whether n is the reserved sentinel value.
func (n ProposalNumber) IsSentinel() bool {
	return n == Sentinel
}

// Compare returns -1, 0, or 1 depending on whether n is lower, equal, or
// greater than o.
func (n ProposalNumber) Compare(o ProposalNumber) int {
	switch {
	case n.Counter < o.Counter:
		return -1
	case n.Counter > o.Counter:
		return 1
	case n.NodeID < o.NodeID:
		return -1
	case n.NodeID > o.NodeID:
		return 1
	default:
		return 0
	}
}

// Greater reports whether n > o.
func (n ProposalNumber) Greater(o ProposalNumber) bool {
	return n.Compare(o) > 0
}

// GreaterOrEqual reports whether n >= o.
func (n ProposalNumber) GreaterOrEqual(o ProposalNumber) bool {
	return n.Compare(o) >= 0
}

func (n ProposalNumber) String() string {
	return fmt.Sprintf("(%d,%d)", n.Counter, n.NodeID)
}

// MaxProposal returns the highest of the non-nil proposal numbers, or nil if
// all of them are nil.
func MaxProposal(ns ...*ProposalNumber) *ProposalNumber {
	var max *ProposalNumber
	for _, n := range ns {
		if n == nil {
			continue
		}
		if max == nil || n.Greater(*max) {
			max = n
		}
	}
	return max
}
