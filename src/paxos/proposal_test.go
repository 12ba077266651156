package paxos

import "testing"

func TestProposalNumberOrder(t *testing.T) {
	cases := []struct {
		a, b ProposalNumber
		cmp  int
	}{
		{NewProposalNumber(1, 1), NewProposalNumber(1, 1), 0},
		{NewProposalNumber(1, 1), NewProposalNumber(1, 2), -1},
		{NewProposalNumber(2, 1), NewProposalNumber(1, 5), 1},
		{NewProposalNumber(1, 5), NewProposalNumber(2, 1), -1},
		{Sentinel, NewProposalNumber(1, 1), -1},
	}

	for _, c := range cases {
		if got := c.a.Compare(c.b); got != c.cmp {
			t.Fatalf("%v.Compare(%v) = %d, expected %d", c.a, c.b, got, c.cmp)
		}
		if got := c.b.Compare(c.a); got != -c.cmp {
			t.Fatalf("%v.Compare(%v) = %d, expected %d", c.b, c.a, got, -c.cmp)
		}
	}
}

func TestMaxProposal(t *testing.T) {
	a := NewProposalNumber(1, 3)
	b := NewProposalNumber(2, 1)
	c := NewProposalNumber(2, 2)

	if MaxProposal(nil, nil) != nil {
		t.Fatal("MaxProposal of nils should be nil")
	}

	max := MaxProposal(&a, nil, &c, &b)
	if max == nil || *max != c {
		t.Fatalf("MaxProposal should be %v, not %v", c, max)
	}
}

func TestAcceptorSlotStateRules(t *testing.T) {
	st := &AcceptorSlotState{}

	n1 := NewProposalNumber(1, 1)
	n2 := NewProposalNumber(1, 2)

	if !st.CanPromise(n1) || !st.CanAccept(n1) {
		t.Fatal("empty state should promise and accept anything")
	}

	st.MaxPrepare = &n2

	if st.CanPromise(n2) {
		t.Fatal("should not promise an equal proposal number")
	}
	if !st.CanAccept(n2) {
		t.Fatal("should accept an equal proposal number")
	}
	if st.CanPromise(n1) || st.CanAccept(n1) {
		t.Fatal("should reject lower proposal numbers")
	}
	if !st.CanPromise(Sentinel) || !st.CanAccept(Sentinel) {
		t.Fatal("sentinel should always be answered")
	}
}
