package net

import "sync/atomic"

// Transport provides an interface for unreliable datagram transports, used by
// each role of a node to exchange Messages with the roles of other nodes.
// Delivery is best-effort: Messages may be lost, duplicated, or reordered.
type Transport interface {

	// Listen runs the receive loop. It only returns once the transport is
	// closed, restarting itself if the underlying socket fails.
	Listen()

	// Consumer returns a channel that can be used to consume incoming
	// Messages.
	Consumer() <-chan Datagram

	// LocalAddr is used to return our local address
	LocalAddr() string

	// Send encodes a Message and sends it to the target address, without
	// waiting for any acknowledgement.
	Send(target string, msg Message) error

	// DropNext instructs the receive loop to silently discard the next n
	// incoming datagrams. It is used for fault-injection.
	DropNext(n int)

	// Close permanently closes a transport, stopping
	// any associated goroutines and freeing other resources.
	Close() error
}

// dropCounter counts the datagrams a receive loop still has to discard.
type dropCounter struct {
	n int32
}

func (d *dropCounter) set(n int) {
	if n < 0 {
		n = 0
	}
	atomic.StoreInt32(&d.n, int32(n))
}

// take consumes one drop and reports whether the current datagram must be
// discarded.
func (d *dropCounter) take() bool {
	for {
		v := atomic.LoadInt32(&d.n)
		if v <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt32(&d.n, v, v-1) {
			return true
		}
	}
}
