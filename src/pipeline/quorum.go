package pipeline

import (
	"fmt"
	"sync"

	"github.com/mosaicnetworks/chronicle/src/peers"
)

// Collection accumulates the co-signatures of an element this node
// originated. It is complete when every expected level-1 neighbor signed.
type Collection struct {
	Element    Element
	Expected   []*peers.Peer
	Signatures SignatureSet
	OpenedAt   int64

	signed map[uint32]struct{}
}

// Complete reports whether every expected neighbor signed.
func (c *Collection) Complete() bool {
	return len(c.signed) == len(c.Expected)
}

func (c *Collection) expects(peer *peers.Peer) bool {
	return peers.IndexOf(c.Expected, peer) >= 0
}

// Quorums holds the open collections of this node, by short hash.
type Quorums struct {
	l           sync.Mutex
	collections map[int32]*Collection
}

// NewQuorums creates an empty set of collections.
func NewQuorums() *Quorums {
	return &Quorums{
		collections: make(map[int32]*Collection),
	}
}

// Open starts collecting signatures for el from the expected neighbors. An
// open collection for the same short hash is replaced.
func (q *Quorums) Open(el Element, expected []*peers.Peer, openedAt int64) *Collection {
	q.l.Lock()
	defer q.l.Unlock()

	exp := make([]*peers.Peer, len(expected))
	copy(exp, expected)

	c := &Collection{
		Element:    el,
		Expected:   exp,
		Signatures: make(SignatureSet),
		OpenedAt:   openedAt,
		signed:     make(map[uint32]struct{}),
	}
	q.collections[el.ShortHash()] = c
	return c
}

// Get returns the collection of a short hash.
func (q *Quorums) Get(shortHash int32) (*Collection, bool) {
	q.l.Lock()
	defer q.l.Unlock()

	c, ok := q.collections[shortHash]
	return c, ok
}

// Add records the signature of from. The signature must already be verified.
// When it completes the collection, the collection is closed and returned.
func (q *Quorums) Add(shortHash int32, from *peers.Peer, signature []byte) (*Collection, error) {
	q.l.Lock()
	defer q.l.Unlock()

	c, ok := q.collections[shortHash]
	if !ok {
		return nil, fmt.Errorf("no open collection for %d", shortHash)
	}
	if !c.expects(from) {
		return nil, fmt.Errorf("%s is not a level-1 neighbor for %d", from, shortHash)
	}

	if _, dup := c.signed[from.IP]; !dup {
		c.signed[from.IP] = struct{}{}
		c.Signatures[from.PubKeyHex] = signature
	}

	if !c.Complete() {
		return nil, nil
	}

	delete(q.collections, shortHash)
	return c, nil
}

// PopExpired removes and returns the collections opened before cutoff.
func (q *Quorums) PopExpired(cutoff int64) []*Collection {
	q.l.Lock()
	defer q.l.Unlock()

	res := []*Collection{}
	for k, c := range q.collections {
		if c.OpenedAt < cutoff {
			res = append(res, c)
			delete(q.collections, k)
		}
	}
	return res
}

// RemovePayload closes the collections of elements carrying payload.
func (q *Quorums) RemovePayload(payload []byte) int {
	q.l.Lock()
	defer q.l.Unlock()

	n := 0
	for k, c := range q.collections {
		if string(c.Element.Payload) == string(payload) {
			delete(q.collections, k)
			n++
		}
	}
	return n
}

// Len returns the number of open collections.
func (q *Quorums) Len() int {
	q.l.Lock()
	defer q.l.Unlock()

	return len(q.collections)
}
