// Package node implements the three roles of a Synod node and the Node that
// supervises them.
//
// # Roles
//
// Every node runs a Proposer, an Acceptor and a Learner, each bound to its own
// datagram endpoint. The Acceptor answers PROPOSE and ACCEPT requests and keeps
// its promises in a durable StateStore. The Learner writes COMMITs into the
// local replicated Log. The Proposer drives rounds for the events submitted to
// the node: it picks the next available slot, runs the prepare and accept
// phases against a majority of Acceptors, and broadcasts the chosen value to
// the Learners.
//
// Every request and response travels in a single unreliable datagram. Rounds
// never wait for a particular response; responses are deposited in a
// MessageBuffer and collected by slot, type and proposal number until a
// majority is reached or the round times out. A round that times out leaves no
// trace other than the promises it obtained, and may be retried.
//
// # Recovery
//
// Slots missed by a node are recovered with sentinel rounds, which ask the
// Acceptors what they accepted without disturbing their promises. When the
// node starts it replays such rounds from its next available slot until the
// Log stops advancing (CatchingUp). While Running, a background loop fills the
// holes below the end of the Log, and learns the slots committed beyond it.
//
// # Concurrency
//
// The Acceptor and the Learner handle each message in its own goroutine, up to
// a configurable number of workers. Messages received above that limit are
// dropped, like any lost datagram. Requests concerning the same slot are
// serialized by a per-slot lock in the Acceptor.
//
// A failure to persist state is fatal: the node logs it and shuts down.
package node
