package topology

import (
	"sync"

	"github.com/mosaicnetworks/chronicle/src/peers"
	"github.com/sirupsen/logrus"
)

// Mapper computes the connections of the local node over the active
// membership of a Registry. Results are cached per level and the cache is
// dropped on every membership change.
type Mapper struct {
	l          sync.RWMutex
	cache      map[int][]*peers.Peer
	generation uint64

	registry *peers.Registry
	self     *peers.Peer

	logger *logrus.Entry
}

// NewMapper creates a Mapper for self and subscribes it to the registry.
func NewMapper(registry *peers.Registry, self *peers.Peer, logger *logrus.Entry) *Mapper {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	m := &Mapper{
		cache:    make(map[int][]*peers.Peer),
		registry: registry,
		self:     self,
		logger:   logger.WithField("prefix", "topology"),
	}

	registry.OnChange(func(count int) {
		m.Invalidate()
	})

	return m
}

// Self returns the local node.
func (m *Mapper) Self() *peers.Peer {
	return m.self
}

// Invalidate drops every cached level.
func (m *Mapper) Invalidate() {
	m.l.Lock()
	defer m.l.Unlock()

	m.generation++
	m.cache = make(map[int][]*peers.Peer)
}

// Connections returns the neighbors of the local node at level. The returned
// slice must not be modified.
func (m *Mapper) Connections(level int) []*peers.Peer {
	// run due membership transitions first, they may invalidate the cache
	m.registry.Poll()

	m.l.RLock()
	conns, ok := m.cache[level]
	gen := m.generation
	m.l.RUnlock()

	if ok {
		return conns
	}

	conns = Neighbors(m.registry.Peers(), m.self, level)

	m.l.Lock()
	if m.generation == gen {
		m.cache[level] = conns
	}
	m.l.Unlock()

	m.logger.WithFields(logrus.Fields{
		"level":       level,
		"connections": len(conns),
	}).Debug("Connections")

	return conns
}

// NeighborsOf returns the neighbors of any member at level over the active
// membership. It is not cached.
func (m *Mapper) NeighborsOf(origin *peers.Peer, level int) []*peers.Peer {
	return Neighbors(m.registry.Peers(), origin, level)
}
