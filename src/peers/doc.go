// Package peers defines the members of a Synod cluster and the hosts file
// they are loaded from.
//
// A cluster is a fixed set of nodes. Each node runs three roles, Proposer,
// Acceptor and Learner, and every role listens on its own UDP port. The hosts
// file has one line per node:
//
//	IP USERNAME PROPOSER_PORT ACCEPTOR_PORT LEARNER_PORT
//
// Node IDs are not written in the file. They are assigned by line order,
// starting at 1, so every node must be started with the same file. Blank lines
// are skipped and do not consume an ID.
//
// Membership never changes while the cluster runs, so the PeerSet computed at
// startup, and its majority size, are valid for the lifetime of the node.
package peers
