package net

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// maxDatagramSize is the largest UDP payload over IPv4.
	maxDatagramSize = 65507

	// DefaultRestartDelay is the pause before a failed receive loop rebinds
	// its socket.
	DefaultRestartDelay = 500 * time.Millisecond
)

var (
	// ErrTransportShutdown is returned when operations on a transport are
	// invoked after it's been terminated.
	ErrTransportShutdown = errors.New("transport shutdown")

	// ErrMessageTooLarge is returned when an encoded Message does not fit in a
	// single datagram.
	ErrMessageTooLarge = errors.New("message does not fit in a datagram")
)

/*
UDPTransport provides a Transport over UDP sockets. Each Message is encoded in
its own datagram (cf. Encode). There are no connections, acknowledgements, or
retransmissions; it is up to the protocol to tolerate loss.

The receive loop is supervised: when reading from the socket fails for any
reason other than Close, the socket is closed, rebound after a short delay, and
the loop resumes. Datagrams in flight at that moment are lost.
*/
type UDPTransport struct {
	logger *logrus.Entry

	bindAddr string

	conn     *net.UDPConn
	connLock sync.Mutex

	sendConn *net.UDPConn

	consumeCh chan Datagram

	drops dropCounter

	restartDelay time.Duration

	shutdown     bool
	shutdownCh   chan struct{}
	shutdownLock sync.Mutex
}

// NewUDPTransport binds a UDP socket to bindAddr and returns a transport ready
// to Listen. bufferSize is the capacity of the consumer channel; datagrams
// arriving while it is full are dropped.
func NewUDPTransport(
	bindAddr string,
	bufferSize int,
	logger *logrus.Entry,
) (*UDPTransport, error) {

	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	conn, err := bindUDP(bindAddr)
	if err != nil {
		return nil, err
	}

	sendConn, err := net.ListenUDP("udp", nil)
	if err != nil {
		conn.Close()
		return nil, err
	}

	trans := &UDPTransport{
		logger:       logger,
		bindAddr:     conn.LocalAddr().String(),
		conn:         conn,
		sendConn:     sendConn,
		consumeCh:    make(chan Datagram, bufferSize),
		restartDelay: DefaultRestartDelay,
		shutdownCh:   make(chan struct{}),
	}

	return trans, nil
}

func bindUDP(bindAddr string) (*net.UDPConn, error) {
	addr, err := net.ResolveUDPAddr("udp", bindAddr)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}

	return conn, nil
}

// Close is used to stop the transport.
func (u *UDPTransport) Close() error {
	u.shutdownLock.Lock()
	defer u.shutdownLock.Unlock()

	if !u.shutdown {
		close(u.shutdownCh)

		u.connLock.Lock()
		if u.conn != nil {
			u.conn.Close()
		}
		u.connLock.Unlock()

		u.sendConn.Close()

		u.shutdown = true
	}
	return nil
}

// Consumer implements the Transport interface.
func (u *UDPTransport) Consumer() <-chan Datagram {
	return u.consumeCh
}

// LocalAddr implements the Transport interface.
func (u *UDPTransport) LocalAddr() string {
	return u.bindAddr
}

// IsShutdown is used to check if the transport is shutdown.
func (u *UDPTransport) IsShutdown() bool {
	select {
	case <-u.shutdownCh:
		return true
	default:
		return false
	}
}

// DropNext implements the Transport interface.
func (u *UDPTransport) DropNext(n int) {
	u.logger.WithField("n", n).Debug("Dropping next datagrams")
	u.drops.set(n)
}

// Send implements the Transport interface.
func (u *UDPTransport) Send(target string, msg Message) error {
	if u.IsShutdown() {
		return ErrTransportShutdown
	}

	data, err := Encode(msg)
	if err != nil {
		return err
	}

	if len(data) > maxDatagramSize {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(data))
	}

	addr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return err
	}

	_, err = u.sendConn.WriteToUDP(data, addr)
	return err
}

// Listen runs the supervised receive loop until the transport is closed.
func (u *UDPTransport) Listen() {
	for {
		u.connLock.Lock()
		conn := u.conn
		u.connLock.Unlock()

		if conn != nil {
			err := u.serve(conn)
			if u.IsShutdown() {
				return
			}
			u.logger.WithError(err).Error("Receive loop failed, restarting")
			conn.Close()
		}

		select {
		case <-time.After(u.restartDelay):
		case <-u.shutdownCh:
			return
		}

		newConn, err := bindUDP(u.bindAddr)
		if err != nil {
			u.logger.WithError(err).Error("Failed to rebind socket")
			newConn = nil
		}

		u.connLock.Lock()
		if u.IsShutdown() {
			if newConn != nil {
				newConn.Close()
			}
			u.connLock.Unlock()
			return
		}
		u.conn = newConn
		u.connLock.Unlock()
	}
}

// serve reads datagrams from conn until reading fails.
func (u *UDPTransport) serve(conn *net.UDPConn) error {
	buf := make([]byte, maxDatagramSize)

	for {
		n, source, err := conn.ReadFromUDP(buf)
		if err != nil {
			return err
		}

		if u.drops.take() {
			u.logger.WithField("from", source).Debug("Dropped datagram")
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		msg, err := Decode(data)
		if err != nil {
			u.logger.WithFields(logrus.Fields{
				"from":  source,
				"error": err,
			}).Debug("Ignoring malformed datagram")
			continue
		}

		select {
		case u.consumeCh <- Datagram{Message: msg, Source: source.String()}:
		case <-u.shutdownCh:
			return ErrTransportShutdown
		default:
			u.logger.WithField("from", source).Warn("Consumer full, dropping datagram")
		}
	}
}
