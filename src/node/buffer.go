package node

import (
	"sync"
	"time"

	"github.com/mosaicnetworks/synod/src/net"
	"github.com/mosaicnetworks/synod/src/paxos"
)

type bufferedMessage struct {
	msg      net.Message
	received time.Time
}

// MessageBuffer holds the PROMISE and ACK messages received by a Proposer
// until a round collects them. Messages are matched by slot, type and the
// proposal number they answer, never by arrival order. Old messages are pruned
// by age so that a late response is never counted in a later round.
//
// Rounds waiting for a quorum do not poll: Wait returns a channel that is
// closed by the next Add.
type MessageBuffer struct {
	sync.Mutex
	items  []bufferedMessage
	notify chan struct{}
}

// NewMessageBuffer creates an empty MessageBuffer.
func NewMessageBuffer() *MessageBuffer {
	return &MessageBuffer{
		items:  []bufferedMessage{},
		notify: make(chan struct{}),
	}
}

// Add timestamps a message, stores it, and wakes up the waiting rounds.
func (b *MessageBuffer) Add(msg net.Message) {
	b.Lock()
	defer b.Unlock()

	b.items = append(b.items, bufferedMessage{
		msg:      msg,
		received: time.Now(),
	})

	close(b.notify)
	b.notify = make(chan struct{})
}

// Wait returns a channel that is closed the next time a message is added.
// Callers must get the channel before calling Collect, so that no message
// slips in between unnoticed.
func (b *MessageBuffer) Wait() <-chan struct{} {
	b.Lock()
	defer b.Unlock()

	return b.notify
}

// Collect returns the messages of a given type answering round n for slot,
// received since the round started, keeping only the first one from each
// sender. Every recovery round uses the sentinel, so n alone does not tell two
// of them apart.
func (b *MessageBuffer) Collect(slot int, t net.MessageType, n paxos.ProposalNumber, since time.Time) []net.Message {
	b.Lock()
	defer b.Unlock()

	res := []net.Message{}
	senders := make(map[int]bool)

	for _, item := range b.items {
		if item.received.Before(since) {
			continue
		}
		m := item.msg
		if m.Type() != t || m.SlotIndex() != slot {
			continue
		}
		if round, ok := net.Round(m); !ok || round != n {
			continue
		}
		if senders[m.Sender()] {
			continue
		}
		senders[m.Sender()] = true
		res = append(res, m)
	}

	return res
}

// Prune removes the messages older than maxAge and returns how many were
// removed.
func (b *MessageBuffer) Prune(maxAge time.Duration) int {
	b.Lock()
	defer b.Unlock()

	limit := time.Now().Add(-maxAge)

	kept := b.items[:0]
	for _, item := range b.items {
		if item.received.After(limit) {
			kept = append(kept, item)
		}
	}

	removed := len(b.items) - len(kept)

	// clear the tail so pruned messages can be collected
	for i := len(kept); i < len(b.items); i++ {
		b.items[i] = bufferedMessage{}
	}
	b.items = kept

	return removed
}

// Len returns the number of buffered messages.
func (b *MessageBuffer) Len() int {
	b.Lock()
	defer b.Unlock()

	return len(b.items)
}
