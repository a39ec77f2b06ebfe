package pipeline

import (
	"sync"

	"github.com/mosaicnetworks/chronicle/src/peers"
)

// StandbyEntry is a level-1 element this node co-signed and which waits for
// the quorum signature set from its origin.
type StandbyEntry struct {
	Element    Element
	Signature  []byte
	ShortHash  int32
	Origin     *peers.Peer
	ReceivedAt int64
}

// Standby holds at most one StandbyEntry per short hash.
type Standby struct {
	l       sync.Mutex
	entries map[int32]*StandbyEntry
}

// NewStandby creates an empty Standby registry.
func NewStandby() *Standby {
	return &Standby{
		entries: make(map[int32]*StandbyEntry),
	}
}

// AddIfAbsent stores e unless an entry with the same short hash is held.
func (s *Standby) AddIfAbsent(e *StandbyEntry) bool {
	s.l.Lock()
	defer s.l.Unlock()

	if _, ok := s.entries[e.ShortHash]; ok {
		return false
	}
	s.entries[e.ShortHash] = e
	return true
}

// Get returns the entry of a short hash without removing it.
func (s *Standby) Get(shortHash int32) (*StandbyEntry, bool) {
	s.l.Lock()
	defer s.l.Unlock()

	e, ok := s.entries[shortHash]
	return e, ok
}

// Take removes and returns the entry of a short hash.
func (s *Standby) Take(shortHash int32) (*StandbyEntry, bool) {
	s.l.Lock()
	defer s.l.Unlock()

	e, ok := s.entries[shortHash]
	if ok {
		delete(s.entries, shortHash)
	}
	return e, ok
}

// PopExpired removes and returns the entries whose element timestamp is older
// than cutoff. A node that withholds its quorum cannot keep an element here
// past that point.
func (s *Standby) PopExpired(cutoff int64) []*StandbyEntry {
	s.l.Lock()
	defer s.l.Unlock()

	res := []*StandbyEntry{}
	for k, e := range s.entries {
		if e.Element.Timestamp < cutoff {
			res = append(res, e)
			delete(s.entries, k)
		}
	}
	return res
}

// RemovePayload drops the entries carrying payload.
func (s *Standby) RemovePayload(payload []byte) int {
	s.l.Lock()
	defer s.l.Unlock()

	n := 0
	for k, e := range s.entries {
		if string(e.Element.Payload) == string(payload) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of entries.
func (s *Standby) Len() int {
	s.l.Lock()
	defer s.l.Unlock()

	return len(s.entries)
}
