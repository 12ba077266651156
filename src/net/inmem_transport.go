package net

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// inmemSeq numbers the in-memory transports created without an address.
var inmemSeq uint64

// InmemTransport implements the Transport interface for tests: nodes exchange
// Messages in-process, but every Message still goes through the wire codec. A
// send to an unrouted address, or to a transport whose consumer channel is
// full, is lost like a datagram would be.
type InmemTransport struct {
	sync.RWMutex
	consumerCh chan Datagram
	localAddr  string
	routes     map[string]*InmemTransport
	drops      dropCounter
	closed     bool
}

// NewInmemTransport creates an InmemTransport bound to addr. An empty addr is
// replaced by a unique generated one, which is returned.
func NewInmemTransport(addr string) (string, *InmemTransport) {
	if addr == "" {
		addr = fmt.Sprintf("inmem-%d", atomic.AddUint64(&inmemSeq, 1))
	}
	trans := &InmemTransport{
		consumerCh: make(chan Datagram, 1024),
		localAddr:  addr,
		routes:     make(map[string]*InmemTransport),
	}
	return addr, trans
}

// Consumer implements the Transport interface.
func (i *InmemTransport) Consumer() <-chan Datagram {
	return i.consumerCh
}

// LocalAddr implements the Transport interface.
func (i *InmemTransport) LocalAddr() string {
	return i.localAddr
}

// Send implements the Transport interface. It only fails if the Message cannot
// be encoded, the transport is closed, or target is not routed.
func (i *InmemTransport) Send(target string, msg Message) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}

	i.RLock()
	dest, ok := i.routes[target]
	closed := i.closed
	i.RUnlock()

	switch {
	case closed:
		return ErrTransportShutdown
	case !ok:
		return fmt.Errorf("no route to %s", target)
	}

	dest.receive(data, i.localAddr)

	return nil
}

// receive plays the part of the UDP receive loop.
func (i *InmemTransport) receive(data []byte, source string) {
	i.RLock()
	defer i.RUnlock()

	if i.closed || i.drops.take() {
		return
	}

	msg, err := Decode(data)
	if err != nil {
		return
	}

	select {
	case i.consumerCh <- Datagram{Message: msg, Source: source}:
	default:
	}
}

// DropNext implements the Transport interface.
func (i *InmemTransport) DropNext(n int) {
	i.drops.set(n)
}

// Connect routes the Messages sent to addr to another InmemTransport.
func (i *InmemTransport) Connect(addr string, t Transport) {
	i.Lock()
	i.routes[addr] = t.(*InmemTransport)
	i.Unlock()
}

// Disconnect removes the route to addr, simulating a partition in one
// direction.
func (i *InmemTransport) Disconnect(addr string) {
	i.Lock()
	delete(i.routes, addr)
	i.Unlock()
}

// Close implements the Transport interface. Routes are dropped and further
// sends fail.
func (i *InmemTransport) Close() error {
	i.Lock()
	i.routes = make(map[string]*InmemTransport)
	i.closed = true
	i.Unlock()
	return nil
}

// Listen implements the Transport interface. Datagrams are delivered by the
// sender, so there is no receive loop to run.
func (i *InmemTransport) Listen() {
}
