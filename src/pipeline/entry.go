package pipeline

import (
	"sort"

	"github.com/mosaicnetworks/chronicle/src/peers"
)

// State is the certification state of a pipeline entry.
type State int

const (
	// Unsigned entries wait for a timestamp.
	Unsigned State = iota
	// AwaitingQuorum entries were sent to their level-1 neighbors and wait
	// for every co-signature.
	AwaitingQuorum
	// Finalized entries carry a full signature set and are delivered when
	// they leave the sync window.
	Finalized
)

func (s State) String() string {
	switch s {
	case Unsigned:
		return "Unsigned"
	case AwaitingQuorum:
		return "AwaitingQuorum"
	case Finalized:
		return "Finalized"
	default:
		return "Unknown"
	}
}

// Entry is an element in the pipeline along with its dissemination state.
// Entries are owned by the Pipeline and must only be mutated through it.
type Entry struct {
	Element

	State State

	// Signatures is the encoded SignatureSet of a finalized entry.
	Signatures []byte

	// Received counts receptions of the element from peers.
	Received int

	// Attempts counts certification rounds started by this node.
	Attempts int

	levels map[int]struct{}
	seen   map[uint32]struct{}
}

// NewEntry creates an entry at level.
func NewEntry(el Element, level int, state State) *Entry {
	return &Entry{
		Element: el,
		State:   state,
		levels:  map[int]struct{}{level: {}},
		seen:    make(map[uint32]struct{}),
	}
}

// HasLevel reports whether the entry reached level.
func (e *Entry) HasLevel(level int) bool {
	_, ok := e.levels[level]
	return ok
}

// Levels returns the levels reached by the entry, ascending.
func (e *Entry) Levels() []int {
	res := make([]int, 0, len(e.levels))
	for l := range e.levels {
		res = append(res, l)
	}
	sort.Ints(res)
	return res
}

// Seen reports whether the element was exchanged with peer, in either
// direction.
func (e *Entry) Seen(peer *peers.Peer) bool {
	_, ok := e.seen[peer.IP]
	return ok
}

// SeenCount returns the number of peers the element was exchanged with.
func (e *Entry) SeenCount() int {
	return len(e.seen)
}

func (e *Entry) addLevel(level int) {
	e.levels[level] = struct{}{}
}

func (e *Entry) markSeen(peer *peers.Peer) bool {
	if _, ok := e.seen[peer.IP]; ok {
		return false
	}
	e.seen[peer.IP] = struct{}{}
	return true
}

// EntryInfo is a read-only copy of an entry.
type EntryInfo struct {
	Timestamp int64
	ShortHash int32
	Payload   []byte
	State     string
	Levels    []int
	Received  int
	Seen      int
	Attempts  int
}

func (e *Entry) info() EntryInfo {
	return EntryInfo{
		Timestamp: e.Timestamp,
		ShortHash: e.ShortHash(),
		Payload:   e.Payload,
		State:     e.State.String(),
		Levels:    e.Levels(),
		Received:  e.Received,
		Seen:      len(e.seen),
		Attempts:  e.Attempts,
	}
}
