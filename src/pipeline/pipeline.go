package pipeline

import (
	"sort"
	"sync"

	"github.com/mosaicnetworks/chronicle/src/peers"
)

// Pipeline is the ordered buffer of in-flight elements. Entries are kept
// sorted by element (timestamp, then payload); entries without a timestamp
// sort first. There is at most one entry per element.
type Pipeline struct {
	l       sync.RWMutex
	entries []*Entry
}

// NewPipeline creates an empty Pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// search returns the position of el, or where it would be inserted.
func (p *Pipeline) search(el Element) (int, bool) {
	i := sort.Search(len(p.entries), func(i int) bool {
		return p.entries[i].Compare(el) >= 0
	})
	return i, i < len(p.entries) && p.entries[i].Compare(el) == 0
}

func (p *Pipeline) insertAt(i int, e *Entry) {
	p.entries = append(p.entries, nil)
	copy(p.entries[i+1:], p.entries[i:])
	p.entries[i] = e
}

// Add inserts e unless an entry for the same element exists.
func (p *Pipeline) Add(e *Entry) bool {
	p.l.Lock()
	defer p.l.Unlock()

	i, found := p.search(e.Element)
	if found {
		return false
	}
	p.insertAt(i, e)
	return true
}

// Receive records the reception of a finalized element from a peer at the
// given level. An existing entry gains the level, a reception and, once, the
// sender; otherwise a Finalized entry is created. It returns whether the
// entry was created.
func (p *Pipeline) Receive(el Element, level int, from *peers.Peer, signatures []byte) bool {
	p.l.Lock()
	defer p.l.Unlock()

	i, found := p.search(el)
	if found {
		e := p.entries[i]
		e.Received++
		e.addLevel(level)
		if from != nil {
			e.markSeen(from)
		}
		if e.State != Finalized && len(signatures) > 0 {
			e.State = Finalized
			e.Signatures = signatures
		}
		return false
	}

	e := NewEntry(el, level, Finalized)
	e.Signatures = signatures
	e.Received = 1
	if from != nil {
		e.markSeen(from)
	}
	p.insertAt(i, e)
	return true
}

// Finalize attaches the signature set of an element whose quorum this node
// collected.
func (p *Pipeline) Finalize(el Element, signatures []byte) bool {
	p.l.Lock()
	defer p.l.Unlock()

	i, found := p.search(el)
	if !found {
		return false
	}
	e := p.entries[i]
	e.State = Finalized
	e.Signatures = signatures
	return true
}

// Reset puts an entry whose certification did not complete back to Unsigned,
// so that the next spool stamps it again. It returns the number of attempts
// already made, or -1 if the element is gone.
func (p *Pipeline) Reset(el Element) int {
	p.l.Lock()
	defer p.l.Unlock()

	i, found := p.search(el)
	if !found || p.entries[i].State != AwaitingQuorum {
		return -1
	}
	e := p.entries[i]
	p.removeAt(i)

	e.Timestamp = 0
	e.State = Unsigned
	e.seen = make(map[uint32]struct{})

	j, found := p.search(e.Element)
	if found {
		// an identical unsigned element was inserted in the meantime
		return e.Attempts
	}
	p.insertAt(j, e)
	return e.Attempts
}

// Remove drops the entry of el.
func (p *Pipeline) Remove(el Element) bool {
	p.l.Lock()
	defer p.l.Unlock()

	i, found := p.search(el)
	if !found {
		return false
	}
	p.removeAt(i)
	return true
}

func (p *Pipeline) removeAt(i int) {
	copy(p.entries[i:], p.entries[i+1:])
	p.entries[len(p.entries)-1] = nil
	p.entries = p.entries[:len(p.entries)-1]
}

// Retract drops every entry carrying payload, whatever its timestamp, and
// returns the removed elements.
func (p *Pipeline) Retract(payload []byte) []Element {
	p.l.Lock()
	defer p.l.Unlock()

	removed := []Element{}
	kept := p.entries[:0]
	for _, e := range p.entries {
		if string(e.Payload) == string(payload) {
			removed = append(removed, e.Element)
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(p.entries); i++ {
		p.entries[i] = nil
	}
	p.entries = kept
	return removed
}

// Contains reports whether el is in the pipeline.
func (p *Pipeline) Contains(el Element) bool {
	p.l.RLock()
	defer p.l.RUnlock()

	_, found := p.search(el)
	return found
}

// Get returns a copy of the entry of el.
func (p *Pipeline) Get(el Element) (EntryInfo, bool) {
	p.l.RLock()
	defer p.l.RUnlock()

	i, found := p.search(el)
	if !found {
		return EntryInfo{}, false
	}
	return p.entries[i].info(), true
}

// HasFinalized reports whether a finalized entry has the given short hash.
func (p *Pipeline) HasFinalized(shortHash int32) bool {
	p.l.RLock()
	defer p.l.RUnlock()

	for _, e := range p.entries {
		if e.State == Finalized && e.ShortHash() == shortHash {
			return true
		}
	}
	return false
}

// Len returns the number of entries.
func (p *Pipeline) Len() int {
	p.l.RLock()
	defer p.l.RUnlock()

	return len(p.entries)
}

// Levels returns the distinct levels reached by any entry, ascending.
func (p *Pipeline) Levels() []int {
	p.l.RLock()
	defer p.l.RUnlock()

	set := make(map[int]struct{})
	for _, e := range p.entries {
		for l := range e.levels {
			set[l] = struct{}{}
		}
	}
	res := make([]int, 0, len(set))
	for l := range set {
		res = append(res, l)
	}
	sort.Ints(res)
	return res
}

// Snapshot returns copies of all entries in pipeline order.
func (p *Pipeline) Snapshot() []EntryInfo {
	p.l.RLock()
	defer p.l.RUnlock()

	res := make([]EntryInfo, len(p.entries))
	for i, e := range p.entries {
		res[i] = e.info()
	}
	return res
}

// Batch is a group of envelopes bound for one peer.
type Batch struct {
	Peer      *peers.Peer
	Envelopes []ObjToNode
}

// Prepare decides whether an entry goes out at a level. It may stamp an
// unsigned entry by setting its timestamp and state, and returns the
// signature to put in the envelopes. It runs under the pipeline lock.
type Prepare func(e *Entry, neighbors []*peers.Peer) (signature []byte, ok bool)

// Collect gathers, per neighbor, the envelopes of the entries at level that
// were not yet exchanged with that neighbor, and marks them as sent. Entries
// stamped by prepare are moved to their new position.
func (p *Pipeline) Collect(level int, neighbors []*peers.Peer, prepare Prepare) []*Batch {
	p.l.Lock()
	defer p.l.Unlock()

	batches := make(map[uint32]*Batch)
	order := []*Batch{}
	stamped := false

	for _, e := range p.entries {
		if !e.HasLevel(level) {
			continue
		}

		unsent := make([]*peers.Peer, 0, len(neighbors))
		for _, n := range neighbors {
			if !e.Seen(n) {
				unsent = append(unsent, n)
			}
		}
		// with no neighbors at all, prepare still gets a chance to stamp
		if len(unsent) == 0 && len(neighbors) > 0 {
			continue
		}

		wasUnset := e.Unset()
		sig, ok := prepare(e, neighbors)
		if wasUnset && !e.Unset() {
			stamped = true
		}
		if !ok {
			continue
		}

		env := NewObjToNode(e.Element, level, sig)
		for _, n := range unsent {
			e.markSeen(n)
			b, ok := batches[n.IP]
			if !ok {
				b = &Batch{Peer: n}
				batches[n.IP] = b
				order = append(order, b)
			}
			b.Envelopes = append(b.Envelopes, env)
		}
	}

	if stamped {
		sort.SliceStable(p.entries, func(i, j int) bool {
			return p.entries[i].Compare(p.entries[j].Element) < 0
		})
	}

	return order
}

// PopExpired removes, from the head of the pipeline, the entries whose
// timestamp is older than cutoff, and returns them in order. Unset entries
// are skipped and stay in place. The scan stops at the first entry that is
// not expired.
func (p *Pipeline) PopExpired(cutoff int64) []*Entry {
	p.l.Lock()
	defer p.l.Unlock()

	start := 0
	for start < len(p.entries) && p.entries[start].Unset() {
		start++
	}

	end := start
	for end < len(p.entries) && p.entries[end].Timestamp < cutoff {
		end++
	}

	if end == start {
		return nil
	}

	expired := make([]*Entry, end-start)
	copy(expired, p.entries[start:end])

	n := copy(p.entries[start:], p.entries[end:])
	for i := start + n; i < len(p.entries); i++ {
		p.entries[i] = nil
	}
	p.entries = p.entries[:start+n]

	return expired
}
