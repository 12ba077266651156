// Package synod wires together the components of a Synod node.
//
// A node is configured by a config.Config. Init reads the hosts file, opens the
// database, replays the replicated log into the application views, binds one
// UDP socket per role, and creates the node and its HTTP service. Run then
// blocks while the node catches up with the cluster and serves submissions.
//
// The application is plugged in through Config.Proxy. When none is given, the
// dummy application from the dummy package is used.
package synod
