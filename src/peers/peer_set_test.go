package peers

import (
	"fmt"
	"testing"
)

func testPeers(n int) []*Peer {
	peers := []*Peer{}
	for i := n; i > 0; i-- {
		peers = append(peers, NewPeer(i, "127.0.0.1", fmt.Sprintf("user%d", i), 9000+3*i, 9001+3*i, 9002+3*i))
	}
	return peers
}

func TestMajoritySize(t *testing.T) {
	cases := map[int]int{
		1: 1,
		2: 2,
		3: 2,
		4: 3,
		5: 3,
		7: 4,
	}

	for n, expected := range cases {
		ps := NewPeerSet(testPeers(n))
		if m := ps.MajoritySize(); m != expected {
			t.Fatalf("MajoritySize of %d peers should be %d, not %d", n, expected, m)
		}
	}
}

func TestPeerSetOrder(t *testing.T) {
	ps := NewPeerSet(testPeers(4))

	for i, p := range ps.Peers {
		if p.ID != i+1 {
			t.Fatalf("Peers[%d].ID should be %d, not %d", i, i+1, p.ID)
		}
	}

	if ps.ByID[3].AcceptorAddr() != "127.0.0.1:9010" {
		t.Fatalf("AcceptorAddr of peer 3 should be 127.0.0.1:9010, not %s", ps.ByID[3].AcceptorAddr())
	}

	learners := ps.LearnerAddrs(2)
	if len(learners) != 3 {
		t.Fatalf("LearnerAddrs should skip the excluded node: %v", learners)
	}
	for _, l := range learners {
		if l == ps.ByID[2].LearnerAddr() {
			t.Fatalf("LearnerAddrs should not contain %s", l)
		}
	}
}

func TestTitleCase(t *testing.T) {
	cases := map[string]string{
		"alice":     "Alice",
		"BOB":       "Bob",
		"mary-jane": "Mary-Jane",
		"":          "",
	}

	for in, out := range cases {
		if res := titleCase(in); res != out {
			t.Fatalf("titleCase(%q) should be %q, not %q", in, out, res)
		}
	}
}
