package node

import (
	"testing"
	"time"

	"github.com/mosaicnetworks/synod/src/net"
	"github.com/mosaicnetworks/synod/src/paxos"
)

func promise(slot int, n paxos.ProposalNumber, from int) *net.PromiseMessage {
	return &net.PromiseMessage{Slot: slot, N: n, From: from}
}

func TestMessageBufferCollect(t *testing.T) {
	b := NewMessageBuffer()

	n1 := paxos.NewProposalNumber(1, 1)
	n2 := paxos.NewProposalNumber(2, 1)

	b.Add(promise(0, n1, 1))
	b.Add(promise(0, n1, 2))
	b.Add(promise(0, n1, 2)) //duplicate
	b.Add(promise(0, n2, 3)) //other round
	b.Add(promise(1, n1, 3)) //other slot
	b.Add(&net.AckMessage{Slot: 0, N: n1, From: 3})

	if l := b.Len(); l != 6 {
		t.Fatalf("Len should be 6, not %d", l)
	}

	res := b.Collect(0, net.Promise, n1, time.Time{})
	if len(res) != 2 {
		t.Fatalf("Collect should return 2 messages, not %d", len(res))
	}
	if res[0].Sender() != 1 || res[1].Sender() != 2 {
		t.Fatalf("Collect should keep arrival order, got %d, %d", res[0].Sender(), res[1].Sender())
	}

	if res := b.Collect(0, net.Ack, n1, time.Time{}); len(res) != 1 {
		t.Fatalf("Collect should return 1 ACK, not %d", len(res))
	}

	if res := b.Collect(0, net.Ack, n2, time.Time{}); len(res) != 0 {
		t.Fatalf("Collect should return no ACK for %v, not %d", n2, len(res))
	}
}

func TestMessageBufferPrune(t *testing.T) {
	b := NewMessageBuffer()

	n := paxos.NewProposalNumber(1, 1)

	b.Add(promise(0, n, 1))
	b.Add(promise(0, n, 2))

	time.Sleep(50 * time.Millisecond)

	b.Add(promise(0, n, 3))

	if removed := b.Prune(25 * time.Millisecond); removed != 2 {
		t.Fatalf("Prune should remove 2 messages, not %d", removed)
	}

	res := b.Collect(0, net.Promise, n, time.Time{})
	if len(res) != 1 || res[0].Sender() != 3 {
		t.Fatalf("only the message from 3 should remain, got %v", res)
	}

	if removed := b.Prune(time.Hour); removed != 0 {
		t.Fatalf("Prune should not remove recent messages, removed %d", removed)
	}
}

func TestMessageBufferWait(t *testing.T) {
	b := NewMessageBuffer()

	notify := b.Wait()

	select {
	case <-notify:
		t.Fatal("notify channel should be open before Add")
	default:
	}

	go b.Add(promise(0, paxos.NewProposalNumber(1, 1), 1))

	select {
	case <-notify:
	case <-time.After(time.Second):
		t.Fatal("Add should close the notify channel")
	}

	select {
	case <-b.Wait():
		t.Fatal("Wait should return a fresh channel after Add")
	default:
	}
}

func TestMessageBufferCollectSince(t *testing.T) {
	b := NewMessageBuffer()

	//responses to an earlier recovery round
	b.Add(promise(3, paxos.Sentinel, 1))
	b.Add(promise(3, paxos.Sentinel, 2))

	time.Sleep(5 * time.Millisecond)
	start := time.Now()

	if res := b.Collect(3, net.Promise, paxos.Sentinel, start); len(res) != 0 {
		t.Fatalf("responses received before the round started should be ignored, got %d", len(res))
	}

	b.Add(promise(3, paxos.Sentinel, 2))

	res := b.Collect(3, net.Promise, paxos.Sentinel, start)
	if len(res) != 1 || res[0].Sender() != 2 {
		t.Fatalf("only the response from 2 belongs to the round, got %v", res)
	}

	if res := b.Collect(3, net.Promise, paxos.Sentinel, time.Time{}); len(res) != 2 {
		t.Fatalf("Collect from the zero time should see both senders, got %d", len(res))
	}
}
