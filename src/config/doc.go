// Package config defines the configuration for a Synod node.
//
// Regardless of how Synod is started, directly from Go code or as a standalone
// process from the command line, it uses the Config object defined in this
// package to store and forward configuration options. On top of these
// configuration options, Synod relies on a data directory, defined by
// Config.DataDir, where it expects to find the cluster file:
//
//  hosts.txt // one line per node: IP USERNAME PROPOSER_PORT ACCEPTOR_PORT LEARNER_PORT
//
// The node's own line is selected by Config.ID; IDs follow line order starting
// at 1.
package config
