package peers

import (
	"net"
	"strconv"
	"unicode"
)

// Peer is a member of the cluster.
type Peer struct {
	ID           int    `json:"id"`
	IP           string `json:"ip"`
	Username     string `json:"username"`
	ProposerPort int    `json:"proposer_port"`
	AcceptorPort int    `json:"acceptor_port"`
	LearnerPort  int    `json:"learner_port"`
}

// NewPeer creates a Peer. The username is normalised to title case.
func NewPeer(id int, ip, username string, proposerPort, acceptorPort, learnerPort int) *Peer {
	return &Peer{
		ID:           id,
		IP:           ip,
		Username:     titleCase(username),
		ProposerPort: proposerPort,
		AcceptorPort: acceptorPort,
		LearnerPort:  learnerPort,
	}
}

// ProposerAddr is the UDP address where the peer's Proposer receives
// PROMISE and ACK messages.
func (p *Peer) ProposerAddr() string {
	return hostPort(p.IP, p.ProposerPort)
}

// AcceptorAddr is the UDP address where the peer's Acceptor receives PROPOSE
// and ACCEPT messages.
func (p *Peer) AcceptorAddr() string {
	return hostPort(p.IP, p.AcceptorPort)
}

// LearnerAddr is the UDP address where the peer's Learner receives COMMIT
// messages.
func (p *Peer) LearnerAddr() string {
	return hostPort(p.IP, p.LearnerPort)
}

func hostPort(ip string, port int) string {
	return net.JoinHostPort(ip, strconv.Itoa(port))
}

// titleCase upper-cases the first letter of every word and lower-cases the
// others.
func titleCase(s string) string {
	res := []rune(s)
	prev := ' '
	for i, r := range res {
		if unicode.IsLetter(prev) {
			res[i] = unicode.ToLower(r)
		} else {
			res[i] = unicode.ToUpper(r)
		}
		prev = r
	}
	return string(res)
}
