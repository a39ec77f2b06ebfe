package node

import (
	"fmt"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/mosaicnetworks/chronicle/src/common"
	"github.com/mosaicnetworks/chronicle/src/peers"
	"github.com/mosaicnetworks/chronicle/src/pipeline"
	"github.com/mosaicnetworks/chronicle/src/proxy"
	"github.com/mosaicnetworks/chronicle/src/stats"
	"github.com/mosaicnetworks/chronicle/src/store"
	"github.com/mosaicnetworks/chronicle/src/topology"
	"github.com/sirupsen/logrus"
)

// Core is the protocol state of a node. It owns the pipeline, the standby
// registry and the quorum collections, and implements the certification,
// spooling and eviction steps. It never touches the network: the Node feeds it
// incoming requests and sends the batches it produces.
type Core struct {
	conf *Config

	// validator is a wrapper around the private-key controlling this node.
	validator *Validator

	// self is the member this node is.
	self *peers.Peer

	// registry is the membership list, mapper the topology computed over it.
	registry *peers.Registry
	mapper   *topology.Mapper

	// pipeline holds in-flight elements in timestamp order.
	pipeline *pipeline.Pipeline

	// standby holds the elements co-signed by this node, waiting for their
	// quorum.
	standby *pipeline.Standby

	// quorums collects the co-signatures of the elements this node
	// originated.
	quorums *pipeline.Quorums

	proxy proxy.AppProxy
	store store.Store
	stats *stats.Stats

	// lastSpool records, per level, when something was last sent.
	spoolLock sync.Mutex
	lastSpool map[int]time.Time

	clock  clock.Clock
	logger *logrus.Entry
}

// NewCore is a factory method that returns a new Core object. The store may be
// nil, in which case delivered objects are not archived.
func NewCore(
	conf *Config,
	validator *Validator,
	self *peers.Peer,
	registry *peers.Registry,
	store store.Store,
	proxy proxy.AppProxy,
	stats *stats.Stats,
) *Core {
	logger := conf.Logger.WithField("prefix", "core")

	core := &Core{
		conf:      conf,
		validator: validator,
		self:      self,
		registry:  registry,
		mapper:    topology.NewMapper(registry, self, conf.Logger),
		pipeline:  pipeline.NewPipeline(),
		standby:   pipeline.NewStandby(),
		quorums:   pipeline.NewQuorums(),
		proxy:     proxy,
		store:     store,
		stats:     stats,
		lastSpool: make(map[int]time.Time),
		clock:     conf.Clock,
		logger:    logger,
	}

	registry.OnChange(stats.Members)
	stats.Members(registry.Len())

	return core
}

func (c *Core) now() int64 {
	return common.Timestamp(c.clock.Now())
}

// Self returns the member this node is.
func (c *Core) Self() *peers.Peer {
	return c.self
}

// Registry returns the membership list.
func (c *Core) Registry() *peers.Registry {
	return c.registry
}

// Stats returns the statistics of the node.
func (c *Core) Stats() *stats.Stats {
	return c.stats
}

// Store returns the archive of delivered objects, which may be nil.
func (c *Core) Store() store.Store {
	return c.store
}

// RegisterDeliveryHandler binds a handler to the objects of a type. A type
// can only be bound once.
func (c *Core) RegisterDeliveryHandler(objectType string, handler proxy.DeliveryHandler) error {
	return c.proxy.Register(objectType, handler)
}

// InsertLocal queues an object submitted by the local application. It gets its
// timestamp at the next spool. It returns false for empty payloads and for
// payloads already waiting for a timestamp.
func (c *Core) InsertLocal(payload []byte) bool {
	if len(payload) == 0 {
		return false
	}

	p := make([]byte, len(payload))
	copy(p, payload)

	ok := c.pipeline.Add(pipeline.NewEntry(pipeline.NewElement(0, p), 1, pipeline.Unsigned))

	c.logger.WithFields(logrus.Fields{
		"type":     proxy.TypeOf(p),
		"accepted": ok,
	}).Debug("InsertLocal")

	return ok
}

// Retract withdraws every in-flight copy of payload held by this node. It
// does not reach elements already forwarded to other nodes.
func (c *Core) Retract(payload []byte) bool {
	removed := c.pipeline.Retract(payload)
	standby := c.standby.RemovePayload(payload)
	quorums := c.quorums.RemovePayload(payload)

	c.logger.WithFields(logrus.Fields{
		"pipeline": len(removed),
		"standby":  standby,
		"quorums":  quorums,
	}).Debug("Retract")

	return len(removed)+standby > 0
}

// GetConnections returns the neighbors of this node at level.
func (c *Core) GetConnections(level int) []*peers.Peer {
	return c.mapper.Connections(level)
}

// GetPending returns a copy of the pipeline, in order.
func (c *Core) GetPending() []pipeline.EntryInfo {
	return c.pipeline.Snapshot()
}

// GetEntry returns a copy of the pipeline entry of el.
func (c *Core) GetEntry(el pipeline.Element) (pipeline.EntryInfo, bool) {
	return c.pipeline.Get(el)
}

// StandbyLen returns the number of elements waiting for a quorum.
func (c *Core) StandbyLen() int {
	return c.standby.Len()
}

// reject logs and counts a refused element or quorum.
func (c *Core) reject(err error, from *peers.Peer) {
	fields := logrus.Fields{"err": err}
	if from != nil {
		fields["from"] = from.String()
	}
	c.logger.WithFields(fields).Debug("Rejected")

	if common.IsTiming(err) {
		c.stats.OutOfTime()
		return
	}
	if rej, ok := err.(common.Rejection); ok {
		c.stats.Rejected(rej.Reason)
		return
	}
	c.stats.Rejected(common.Malformed)
}

func shortKey(sh int32) string {
	return fmt.Sprintf("%d", sh)
}
