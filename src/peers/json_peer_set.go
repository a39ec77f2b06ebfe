package peers

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

const jsonPeerSetPath = "peers.json"

// JSONPeerSet reads and writes the bootstrap membership list, peers.json, in
// the data directory.
type JSONPeerSet struct {
	l    sync.Mutex
	path string
}

// NewJSONPeerSet creates a JSONPeerSet for the peers.json file in base.
func NewJSONPeerSet(base string) *JSONPeerSet {
	return &JSONPeerSet{
		path: filepath.Join(base, jsonPeerSetPath),
	}
}

// Path returns the location of the underlying file.
func (j *JSONPeerSet) Path() string {
	return j.path
}

// Peers parses the underlying JSON file. Every returned peer is normalized and
// the list is sorted by IP. An empty file yields an empty list.
func (j *JSONPeerSet) Peers() ([]*Peer, error) {
	j.l.Lock()
	defer j.l.Unlock()

	buf, err := os.ReadFile(j.path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", j.path)
	}

	if len(bytes.TrimSpace(buf)) == 0 {
		return []*Peer{}, nil
	}

	var peers []*Peer
	if err := json.Unmarshal(buf, &peers); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", j.path)
	}

	res := []*Peer{}
	for _, p := range peers {
		p.Normalize()
		res, _ = insert(res, p)
	}

	return res, nil
}

// Write persists peers to the JSON file.
func (j *JSONPeerSet) Write(peers []*Peer) error {
	j.l.Lock()
	defer j.l.Unlock()

	buf, err := json.MarshalIndent(peers, "", "	")
	if err != nil {
		return errors.Wrap(err, "encoding peers")
	}

	return os.WriteFile(j.path, buf, 0644)
}
