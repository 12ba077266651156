// Package paxos defines the values the Synod protocol agrees upon and the state
// it keeps per slot.
//
// A replicated log is a sequence of slots. Each slot is decided independently
// by one instance of the Synod algorithm, and converges to exactly one Event.
// Rounds are identified by ProposalNumbers, which are totally ordered and
// unique across the cluster because they embed the ID of the node that created
// them.
//
// The zero ProposalNumber is a reserved Sentinel. It is only used by recovery
// rounds, which probe slots that may already be decided. Acceptors answer
// sentinel requests unconditionally but never record them, so recovery cannot
// disturb the promises made to regular rounds.
package paxos
