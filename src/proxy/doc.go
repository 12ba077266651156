// Package proxy defines the interface between a Synod node and the application
// built on top of the replicated log.
//
// The consensus engine never looks inside an event. Everything the application
// derives from the log (timelines, indexes, a state hash) is computed by a
// ProxyHandler which the Log calls after every committed entry, in commit
// order. Periodically the Log asks for a snapshot of these views, and at
// startup it may restore them from the latest snapshot instead of re-deriving
// them from scratch.
//
// In the other direction, the application submits new events through the
// channel returned by AppProxy.SubmitCh. The node keeps retrying a submitted
// event until it is committed in some slot.
package proxy
