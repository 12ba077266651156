// Package net implements the wire protocol and the transports used by the
// roles of a node (Proposer, Acceptor, Learner) to talk to each other.
//
// Each role binds its own endpoint. Messages are a closed set of variants
// (PROPOSE, PROMISE, ACCEPT, ACK, COMMIT) that travel one per datagram, inside a
// versioned envelope encoded with msgpack (cf. Encode and Decode). The
// transport is assumed unreliable: Messages may be lost, duplicated, or
// reordered, and nothing authenticates their origin. Deployments must
// therefore be confined to a trusted network.
//
// There are two implementations of the Transport interface:
//
// - UDP: the production transport. Its receive loop restarts itself when the
// underlying socket fails.
//
// - Inmem: in-memory transport used for testing. Peers can be connected and
// disconnected to simulate partitions.
//
// Both transports support dropping the next N incoming datagrams (DropNext),
// which is used for fault-injection.
package net
