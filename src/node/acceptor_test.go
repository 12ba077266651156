package node

import (
	"errors"
	"testing"
	"time"

	"github.com/mosaicnetworks/synod/src/common"
	"github.com/mosaicnetworks/synod/src/config"
	"github.com/mosaicnetworks/synod/src/net"
	"github.com/mosaicnetworks/synod/src/paxos"
	"github.com/mosaicnetworks/synod/src/store"
)

func newTestAcceptor(s store.StateStore, t *testing.T) *Acceptor {
	conf := config.NewTestConfig(t, common.TestLogLevel)
	ps := initPeers(3)
	_, trans := net.NewInmemTransport(ps.ByID[1].AcceptorAddr())

	a, err := NewAcceptor(1, ps, s, trans, conf, conf.Logger())
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func pn(c, id int) paxos.ProposalNumber {
	return paxos.NewProposalNumber(c, id)
}

func checkPromise(t *testing.T, reply net.Message, n paxos.ProposalNumber, accNum *paxos.ProposalNumber, accVal string) {
	t.Helper()

	p, ok := reply.(*net.PromiseMessage)
	if !ok {
		t.Fatalf("expected a PROMISE, got %#v", reply)
	}
	checkReply(t, p.N, p.AccNum, p.AccVal, n, accNum, accVal)
}

func checkAck(t *testing.T, reply net.Message, n paxos.ProposalNumber, accNum *paxos.ProposalNumber, accVal string) {
	t.Helper()

	a, ok := reply.(*net.AckMessage)
	if !ok {
		t.Fatalf("expected an ACK, got %#v", reply)
	}
	checkReply(t, a.N, a.AccNum, a.AccVal, n, accNum, accVal)
}

func checkReply(t *testing.T,
	gotN paxos.ProposalNumber, gotNum *paxos.ProposalNumber, gotVal paxos.Event,
	n paxos.ProposalNumber, accNum *paxos.ProposalNumber, accVal string) {

	t.Helper()

	if gotN != n {
		t.Fatalf("reply should echo %v, not %v", n, gotN)
	}
	switch {
	case accNum == nil && gotNum != nil:
		t.Fatalf("acc_num should be none, not %v", *gotNum)
	case accNum != nil && (gotNum == nil || *gotNum != *accNum):
		t.Fatalf("acc_num should be %v, not %v", *accNum, gotNum)
	}
	if string(gotVal) != accVal {
		t.Fatalf("acc_val should be %q, not %q", accVal, gotVal)
	}
}

func TestAcceptorMonotonicity(t *testing.T) {
	a := newTestAcceptor(store.NewInmemStore(), t)

	propose := func(n paxos.ProposalNumber) net.Message {
		reply, err := a.ProcessMessage(&net.ProposeMessage{Slot: 0, N: n, From: n.NodeID})
		if err != nil {
			t.Fatal(err)
		}
		return reply
	}

	accept := func(n paxos.ProposalNumber, v string) net.Message {
		reply, err := a.ProcessMessage(&net.AcceptMessage{Slot: 0, N: n, Event: paxos.Event(v), From: n.NodeID})
		if err != nil {
			t.Fatal(err)
		}
		return reply
	}

	checkPromise(t, propose(pn(1, 2)), pn(1, 2), nil, "")

	if reply := propose(pn(1, 1)); reply != nil {
		t.Fatalf("lower PROPOSE should be ignored, got %#v", reply)
	}
	if reply := propose(pn(1, 2)); reply != nil {
		t.Fatalf("equal PROPOSE should be ignored, got %#v", reply)
	}
	if reply := accept(pn(1, 1), "low"); reply != nil {
		t.Fatalf("lower ACCEPT should be ignored, got %#v", reply)
	}

	n12 := pn(1, 2)
	checkAck(t, accept(pn(1, 2), "a"), pn(1, 2), &n12, "a")

	//a higher round learns about the accepted value
	checkPromise(t, propose(pn(2, 3)), pn(2, 3), &n12, "a")

	if reply := accept(pn(1, 2), "b"); reply != nil {
		t.Fatalf("ACCEPT below max_prepare should be ignored, got %#v", reply)
	}

	st := a.GetSlotState(0)
	if st.MaxPrepare == nil || *st.MaxPrepare != pn(2, 3) {
		t.Fatalf("max_prepare should be (2,3), not %v", st.MaxPrepare)
	}
	if st.AccNum == nil || *st.AccNum != n12 || string(st.AccVal) != "a" {
		t.Fatalf("accepted proposal should be (1,2)=a, not %v=%s", st.AccNum, st.AccVal)
	}
}

func TestAcceptorSentinel(t *testing.T) {
	a := newTestAcceptor(store.NewInmemStore(), t)

	//unknown slot
	reply, err := a.ProcessMessage(&net.ProposeMessage{Slot: 4, N: paxos.Sentinel, From: 2})
	if err != nil {
		t.Fatal(err)
	}
	checkPromise(t, reply, paxos.Sentinel, nil, "")

	if st := a.GetSlotState(4); st.MaxPrepare != nil {
		t.Fatalf("sentinel PROPOSE should not set max_prepare, got %v", *st.MaxPrepare)
	}

	n := pn(3, 3)
	if _, err := a.ProcessMessage(&net.ProposeMessage{Slot: 4, N: n, From: 3}); err != nil {
		t.Fatal(err)
	}
	if _, err := a.ProcessMessage(&net.AcceptMessage{Slot: 4, N: n, Event: paxos.Event("x"), From: 3}); err != nil {
		t.Fatal(err)
	}

	//the sentinel is answered even though it is below max_prepare, and
	//reports the accepted proposal
	reply, err = a.ProcessMessage(&net.ProposeMessage{Slot: 4, N: paxos.Sentinel, From: 2})
	if err != nil {
		t.Fatal(err)
	}
	checkPromise(t, reply, paxos.Sentinel, &n, "x")

	//a sentinel ACCEPT does not overwrite anything
	reply, err = a.ProcessMessage(&net.AcceptMessage{Slot: 4, N: paxos.Sentinel, Event: paxos.Event("y"), From: 2})
	if err != nil {
		t.Fatal(err)
	}
	checkAck(t, reply, paxos.Sentinel, &n, "x")

	st := a.GetSlotState(4)
	if *st.MaxPrepare != n || *st.AccNum != n || string(st.AccVal) != "x" {
		t.Fatalf("sentinel requests should not change the state, got %v %v %s", st.MaxPrepare, st.AccNum, st.AccVal)
	}
}

func TestAcceptorIgnoresInvalidRequests(t *testing.T) {
	a := newTestAcceptor(store.NewInmemStore(), t)

	reply, err := a.ProcessMessage(&net.AcceptMessage{Slot: 0, N: pn(1, 1), Event: nil, From: 1})
	if err != nil || reply != nil {
		t.Fatalf("empty ACCEPT should be ignored, got %v, %v", reply, err)
	}

	reply, err = a.ProcessMessage(&net.ProposeMessage{Slot: -1, N: pn(1, 1), From: 1})
	if err != nil || reply != nil {
		t.Fatalf("negative slot should be ignored, got %v, %v", reply, err)
	}

	reply, err = a.ProcessMessage(&net.CommitMessage{Slot: 0, Event: paxos.Event("a"), From: 1})
	if err != nil || reply != nil {
		t.Fatalf("COMMIT should be ignored, got %v, %v", reply, err)
	}

	if slots := a.Slots(); len(slots) != 0 {
		t.Fatalf("no slot should have been created, got %v", slots)
	}
}

func TestAcceptorReload(t *testing.T) {
	s := store.NewInmemStore()
	a := newTestAcceptor(s, t)

	n := pn(2, 2)
	if _, err := a.ProcessMessage(&net.ProposeMessage{Slot: 1, N: pn(5, 3), From: 3}); err != nil {
		t.Fatal(err)
	}
	if _, err := a.ProcessMessage(&net.ProposeMessage{Slot: 7, N: n, From: 2}); err != nil {
		t.Fatal(err)
	}
	if _, err := a.ProcessMessage(&net.AcceptMessage{Slot: 7, N: n, Event: paxos.Event("v"), From: 2}); err != nil {
		t.Fatal(err)
	}

	b := newTestAcceptor(s, t)

	if slots := b.Slots(); len(slots) != 2 || slots[0] != 1 || slots[1] != 7 {
		t.Fatalf("reloaded slots should be [1 7], not %v", slots)
	}

	//the promise made before the restart still holds
	reply, err := b.ProcessMessage(&net.ProposeMessage{Slot: 1, N: pn(4, 3), From: 3})
	if err != nil || reply != nil {
		t.Fatalf("PROPOSE below the reloaded promise should be ignored, got %v, %v", reply, err)
	}

	reply, err = b.ProcessMessage(&net.ProposeMessage{Slot: 7, N: pn(3, 1), From: 1})
	if err != nil {
		t.Fatal(err)
	}
	checkPromise(t, reply, pn(3, 1), &n, "v")
}

var errDiskFull = errors.New("disk full")

type failingStore struct {
	*store.InmemStore
}

func (s failingStore) SetPromise(int, paxos.ProposalNumber) error {
	return errDiskFull
}

func (s failingStore) SetAccepted(int, paxos.ProposalNumber, paxos.Event) error {
	return errDiskFull
}

func TestAcceptorPersistenceFailure(t *testing.T) {
	a := newTestAcceptor(failingStore{store.NewInmemStore()}, t)

	reply, err := a.ProcessMessage(&net.ProposeMessage{Slot: 0, N: pn(1, 1), From: 1})
	if err != errDiskFull || reply != nil {
		t.Fatalf("PROPOSE should fail without a reply, got %v, %v", reply, err)
	}

	reply, err = a.ProcessMessage(&net.AcceptMessage{Slot: 0, N: pn(1, 1), Event: paxos.Event("a"), From: 1})
	if err != errDiskFull || reply != nil {
		t.Fatalf("ACCEPT should fail without a reply, got %v, %v", reply, err)
	}

	st := a.GetSlotState(0)
	if st.MaxPrepare != nil || st.AccNum != nil {
		t.Fatalf("state should not change when it cannot be persisted, got %v %v", st.MaxPrepare, st.AccNum)
	}

	//sentinel requests do not touch the store
	if _, err := a.ProcessMessage(&net.ProposeMessage{Slot: 0, N: paxos.Sentinel, From: 1}); err != nil {
		t.Fatal(err)
	}
}

func TestAcceptorRun(t *testing.T) {
	conf := config.NewTestConfig(t, common.TestLogLevel)
	ps := initPeers(3)

	_, acceptorTrans := net.NewInmemTransport(ps.ByID[1].AcceptorAddr())
	_, proposerTrans := net.NewInmemTransport(ps.ByID[2].ProposerAddr())
	_, strangerTrans := net.NewInmemTransport("stranger")

	acceptorTrans.Connect(proposerTrans.LocalAddr(), proposerTrans)
	proposerTrans.Connect(acceptorTrans.LocalAddr(), acceptorTrans)
	strangerTrans.Connect(acceptorTrans.LocalAddr(), acceptorTrans)

	a, err := NewAcceptor(1, ps, store.NewInmemStore(), acceptorTrans, conf, conf.Logger())
	if err != nil {
		t.Fatal(err)
	}

	go a.Run()
	defer a.Shutdown()

	//unknown senders are ignored
	if err := strangerTrans.Send(acceptorTrans.LocalAddr(), &net.ProposeMessage{Slot: 0, N: pn(9, 9), From: 9}); err != nil {
		t.Fatal(err)
	}

	if err := proposerTrans.Send(acceptorTrans.LocalAddr(), &net.ProposeMessage{Slot: 0, N: pn(1, 2), From: 2}); err != nil {
		t.Fatal(err)
	}

	select {
	case dg := <-proposerTrans.Consumer():
		checkPromise(t, dg.Message, pn(1, 2), nil, "")
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for PROMISE")
	}

	if st := a.GetSlotState(0); st == nil || *st.MaxPrepare != pn(1, 2) {
		t.Fatalf("max_prepare should be (1,2), got %v", st)
	}
}
