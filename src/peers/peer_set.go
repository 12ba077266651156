package peers

import "sort"

//PeerSet is the fixed set of Peers forming a cluster
type PeerSet struct {
	Peers []*Peer       `json:"peers"`
	ByID  map[int]*Peer `json:"-"`

	//cached values
	majority *int
}

/* Constructors */

//NewPeerSet creates a new PeerSet from a list of Peers. Peers are sorted by ID.
func NewPeerSet(peers []*Peer) *PeerSet {
	peerSet := &PeerSet{
		ByID: make(map[int]*Peer),
	}

	sorted := make([]*Peer, len(peers))
	copy(sorted, peers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})

	for _, peer := range sorted {
		peerSet.ByID[peer.ID] = peer
	}

	peerSet.Peers = sorted

	majority := len(peerSet.ByID)/2 + 1
	peerSet.majority = &majority

	return peerSet
}

/* ToSlice Methods */

//IDs returns the PeerSet's slice of IDs
func (peerSet *PeerSet) IDs() []int {
	res := []int{}

	for _, peer := range peerSet.Peers {
		res = append(res, peer.ID)
	}

	return res
}

//AcceptorAddrs returns the addresses of every Acceptor in the cluster,
//including the local one.
func (peerSet *PeerSet) AcceptorAddrs() []string {
	res := []string{}

	for _, peer := range peerSet.Peers {
		res = append(res, peer.AcceptorAddr())
	}

	return res
}

//LearnerAddrs returns the addresses of every Learner in the cluster except the
//one belonging to the excluded node.
func (peerSet *PeerSet) LearnerAddrs(exclude int) []string {
	res := []string{}

	for _, peer := range peerSet.Peers {
		if peer.ID == exclude {
			continue
		}
		res = append(res, peer.LearnerAddr())
	}

	return res
}

/* Utilities */

//Len returns the number of Peers in the PeerSet
func (peerSet *PeerSet) Len() int {
	return len(peerSet.ByID)
}

//MajoritySize returns the number of peers that forms a majority (N/2 + 1).
//Any two majorities of the same PeerSet have at least one member in common.
func (peerSet *PeerSet) MajoritySize() int {
	if peerSet.majority == nil {
		val := peerSet.Len()/2 + 1
		peerSet.majority = &val
	}
	return *peerSet.majority
}
