package peers

import (
	"bufio"
	"bytes"
	"fmt"
	"io/ioutil"
	"strconv"
	"strings"
	"sync"
)

// TextPeerSet is used to load and persist a PeerSet in the plain-text hosts
// file format.
type TextPeerSet struct {
	l    sync.Mutex
	path string
}

// NewTextPeerSet creates a new TextPeerSet with reference to the hosts file.
func NewTextPeerSet(path string) *TextPeerSet {
	return &TextPeerSet{
		path: path,
	}
}

// Path returns the location of the hosts file.
func (t *TextPeerSet) Path() string {
	return t.path
}

// PeerSet parses the hosts file and returns the corresponding PeerSet.
func (t *TextPeerSet) PeerSet() (*PeerSet, error) {
	t.l.Lock()
	defer t.l.Unlock()

	buf, err := ioutil.ReadFile(t.path)
	if err != nil {
		return nil, err
	}

	peers, err := parseHosts(buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", t.path, err)
	}

	if len(peers) == 0 {
		return nil, fmt.Errorf("%s: no peers", t.path)
	}

	return NewPeerSet(peers), nil
}

// Write persists a list of peers, one line each, in ID order. Since IDs are
// implied by line order, the peers must be numbered 1 to N.
func (t *TextPeerSet) Write(peers []*Peer) error {
	t.l.Lock()
	defer t.l.Unlock()

	peerSet := NewPeerSet(peers)

	var buf bytes.Buffer
	for i, p := range peerSet.Peers {
		if p.ID != i+1 {
			return fmt.Errorf("peer IDs must be contiguous from 1, found %d at line %d", p.ID, i+1)
		}
		fmt.Fprintf(&buf, "%s %s %d %d %d\n",
			p.IP,
			p.Username,
			p.ProposerPort,
			p.AcceptorPort,
			p.LearnerPort)
	}

	return ioutil.WriteFile(t.path, buf.Bytes(), 0644)
}

func parseHosts(buf []byte) ([]*Peer, error) {
	peers := []*Peer{}

	scanner := bufio.NewScanner(bytes.NewReader(buf))
	line := 0
	for scanner.Scan() {
		line++

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		if len(fields) != 5 {
			return nil, fmt.Errorf("line %d: expected 5 fields, got %d", line, len(fields))
		}

		ports := make([]int, 3)
		for i := range ports {
			p, err := strconv.Atoi(fields[2+i])
			if err != nil || p <= 0 || p > 65535 {
				return nil, fmt.Errorf("line %d: invalid port %q", line, fields[2+i])
			}
			ports[i] = p
		}

		peers = append(peers, NewPeer(
			len(peers)+1,
			fields[0],
			fields[1],
			ports[0],
			ports[1],
			ports[2]))
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return peers, nil
}
