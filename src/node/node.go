package node

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/mosaicnetworks/chronicle/src/common"
	"github.com/mosaicnetworks/chronicle/src/net"
	"github.com/mosaicnetworks/chronicle/src/node/state"
	"github.com/mosaicnetworks/chronicle/src/peers"
	"github.com/mosaicnetworks/chronicle/src/pipeline"
	"github.com/mosaicnetworks/chronicle/src/proxy"
	"github.com/mosaicnetworks/chronicle/src/stats"
	"github.com/mosaicnetworks/chronicle/src/store"
	"github.com/sirupsen/logrus"
)

// Node defines a chronicle node
type Node struct {
	// The node is implemented as a state-machine. The embedded state Manager
	// object is used to manage the node's state.
	state.Manager

	conf   *Config
	logger *logrus.Entry

	validator *Validator

	core *Core

	trans net.Transport
	netCh <-chan net.RPC

	proxy    proxy.AppProxy
	submitCh chan []byte

	shutdownCh chan struct{}
	shutdownMu sync.Mutex

	// spooling guards against overlapping spools.
	spooling int32

	offlineLock sync.Mutex
	onOffline   func()

	clock clock.Clock
	start time.Time
}

// NewNode is a factory method that returns a Node instance. The registry must
// hold the bootstrap membership; the node adds itself when it starts.
func NewNode(conf *Config,
	validator *Validator,
	registry *peers.Registry,
	store store.Store,
	stats *stats.Stats,
	trans net.Transport,
	proxy proxy.AppProxy,
) *Node {
	self := validator.Peer(trans.AdvertiseAddr())

	node := Node{
		conf:       conf,
		logger:     conf.Logger.WithField("this", self.String()),
		validator:  validator,
		core:       NewCore(conf, validator, self, registry, store, proxy, stats),
		trans:      trans,
		netCh:      trans.Consumer(),
		proxy:      proxy,
		submitCh:   proxy.SubmitCh(),
		shutdownCh: make(chan struct{}),
		clock:      conf.Clock,
	}

	return &node
}

// Init makes the node a member. A node that is part of the bootstrap
// membership becomes active immediately; any other node announces itself to
// the known members and becomes active once its join grace window has passed.
func (n *Node) Init() error {
	registry := n.core.Registry()
	self := n.core.Self()

	if registry.Contains(self) || registry.Len() == 0 {
		n.logger.Debug("Node belongs to the membership")
		registry.Add(self)
		return nil
	}

	n.logger.Debug("Node does not belong to the membership => Joining")
	return n.Join()
}

// SetOnOffline sets the function called when the node goes offline. It runs
// in its own goroutine and usually reconnects the node before calling Resume.
func (n *Node) SetOnOffline(fn func()) {
	n.offlineLock.Lock()
	defer n.offlineLock.Unlock()

	n.onOffline = fn
}

// RunAsync calls Run as a separate thread
func (n *Node) RunAsync() {
	n.logger.Debug("RunAsync")

	go n.Run()
}

// Run starts the periodic tasks and processes requests and submissions until
// the node shuts down.
func (n *Node) Run() {
	n.start = n.clock.Now()

	go n.trans.Listen()

	go n.tick("spool", n.conf.SpoolInterval, n.spool)
	go n.tick("evict", n.conf.EvictionInterval, func() { n.core.Evict() })
	go n.tick("membership", n.conf.MembershipInterval, func() { n.core.Registry().Poll() })
	go n.tick("rollover", n.conf.StatsRollover, n.core.Stats().Rollover)

	n.doBackgroundWork()
}

// tick calls fn at every period until shutdown. A panic in fn is logged and
// does not stop the ticker.
func (n *Node) tick(name string, period time.Duration, fn func()) {
	ticker := n.clock.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C():
			n.safely(name, fn)
		case <-n.shutdownCh:
			return
		}
	}
}

func (n *Node) safely(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.WithFields(logrus.Fields{
				"task":  name,
				"panic": r,
			}).Error("Recovered periodic task")
		}
	}()
	fn()
}

func (n *Node) doBackgroundWork() {
	for {
		select {
		case rpc := <-n.netCh:
			if !n.GoFunc(func() { n.processRPC(rpc) }) {
				rpc.Respond(nil, fmt.Errorf("too many concurrent requests"))
			}
		case payload := <-n.submitCh:
			n.core.InsertLocal(payload)
		case <-n.shutdownCh:
			return
		}
	}
}

// spool sends the batches produced by the core, and the quorums completed by
// the replies.
func (n *Node) spool() {
	if !atomic.CompareAndSwapInt32(&n.spooling, 0, 1) {
		n.logger.Debug("Spool already running")
		return
	}
	defer atomic.StoreInt32(&n.spooling, 0)

	if n.GetState() != state.Running {
		return
	}

	n.core.ExpireQuorums()

	sem := make(chan struct{}, state.WGLIMIT)
	var wg sync.WaitGroup

	for _, o := range n.core.Spool() {
		wg.Add(1)
		sem <- struct{}{}
		go func(o *Outbound) {
			defer wg.Done()
			defer func() { <-sem }()
			n.forward(o)
		}(o)
	}

	wg.Wait()
}

func (n *Node) forward(o *Outbound) {
	resp, err := n.requestForward(o.Peer, o.Certify, o.Envelopes)
	if err != nil {
		n.logger.WithError(err).WithField("peer", o.Peer.String()).Debug("Forward")
		return
	}

	if !o.Certify || len(resp.Signatures) == 0 {
		return
	}

	completions := n.core.ProcessSignatures(o.Peer, resp.Signatures)
	if len(completions) > 0 {
		n.announce(completions)
	}
}

// announce sends every completed quorum to its signers, grouped by signer.
func (n *Node) announce(completions []*Completion) {
	targets := make(map[uint32]*peers.Peer)
	vectors := make(map[uint32]pipeline.TimestampVector)

	for _, c := range completions {
		sh := c.Element.ShortHash()
		for _, p := range c.Signers {
			if _, ok := vectors[p.IP]; !ok {
				targets[p.IP] = p
				vectors[p.IP] = make(pipeline.TimestampVector)
			}
			vectors[p.IP][sh] = c.Signatures
		}
	}

	var wg sync.WaitGroup
	for ip, p := range targets {
		wg.Add(1)
		go func(p *peers.Peer, vector pipeline.TimestampVector) {
			defer wg.Done()
			resp, err := n.requestQuorum(p, vector)
			if err != nil {
				n.logger.WithError(err).WithField("peer", p.String()).Debug("Quorum")
				return
			}
			if !resp.Accepted {
				n.logger.WithField("peer", p.String()).Warn("Quorum refused")
			}
		}(p, vectors[ip])
	}
	wg.Wait()
}

// Join announces this node to every known member and merges their views of
// the membership. The node, like its peers, activates itself once the join
// grace window has passed.
func (n *Node) Join() error {
	registry := n.core.Registry()
	self := n.core.Self()
	now := common.Timestamp(n.clock.Now())

	targets := registry.Peers()
	_, targets = peers.ExcludePeer(targets, self)
	if len(targets) == 0 {
		return fmt.Errorf("no member to join")
	}

	registry.AddWithDelay(self, now)

	accepted := 0
	for _, t := range targets {
		resp, err := n.requestJoin(t, now)
		if err != nil {
			n.logger.WithError(err).WithField("peer", t.String()).Error("Join")
			continue
		}
		if !resp.Accepted {
			n.logger.WithField("peer", t.String()).Warn("Join refused")
			continue
		}
		accepted++

		for _, p := range resp.Peers {
			if p.Equal(self) {
				continue
			}
			if p.PendingSince > 0 {
				registry.AddWithDelay(p, p.PendingSince)
			} else {
				registry.Add(p)
			}
		}
	}

	n.logger.WithFields(logrus.Fields{
		"targets":  len(targets),
		"accepted": accepted,
	}).Debug("Join")

	if accepted == 0 {
		return fmt.Errorf("join refused by all %d members", len(targets))
	}
	return nil
}

// Leave announces the departure of this node to the other members, then shuts
// it down.
func (n *Node) Leave() error {
	n.logger.Debug("LEAVING")

	defer n.Shutdown()

	registry := n.core.Registry()
	self := n.core.Self()
	now := common.Timestamp(n.clock.Now())

	_, others := peers.ExcludePeer(registry.Peers(), self)
	for _, p := range others {
		if _, err := n.requestLeave(p, now); err != nil {
			n.logger.WithError(err).WithField("peer", p.String()).Error("Leave")
		}
	}

	registry.Remove(self, now)

	return nil
}

// Members asks target for its view of the membership.
func (n *Node) Members(target *peers.Peer) ([]*peers.Peer, error) {
	resp, err := n.requestMembers(target)
	if err != nil {
		return nil, err
	}
	return resp.Peers, nil
}

// goOffline moves a running node to the Offline state and calls the hook.
func (n *Node) goOffline() {
	if !n.SwapState(state.Running, state.Offline) {
		return
	}

	n.logger.Warn("Node is offline")

	n.offlineLock.Lock()
	hook := n.onOffline
	n.offlineLock.Unlock()

	if hook != nil {
		go hook()
	}
}

// Resume puts an offline node back to work.
func (n *Node) Resume() {
	if n.SwapState(state.Offline, state.Running) {
		n.logger.Info("Node is back online")
	}
}

// Shutdown stops the node and closes its transport and store.
func (n *Node) Shutdown() {
	n.shutdownMu.Lock()
	defer n.shutdownMu.Unlock()

	if n.GetState() == state.Shutdown {
		return
	}

	n.logger.Debug("SHUTDOWN")

	n.SetState(state.Shutdown)
	close(n.shutdownCh)

	n.WaitRoutines()

	if err := n.trans.Close(); err != nil {
		n.logger.WithError(err).Debug("Closing transport")
	}

	if s := n.core.Store(); s != nil {
		if err := s.Close(); err != nil {
			n.logger.WithError(err).Debug("Closing store")
		}
	}
}

// Submit queues a payload as if the application had sent it.
func (n *Node) Submit(payload []byte) bool {
	return n.core.InsertLocal(payload)
}

// Retract withdraws a payload this node still holds.
func (n *Node) Retract(payload []byte) bool {
	return n.core.Retract(payload)
}

// RegisterDeliveryHandler binds a handler to the objects of a type.
func (n *Node) RegisterDeliveryHandler(objectType string, handler proxy.DeliveryHandler) error {
	return n.core.RegisterDeliveryHandler(objectType, handler)
}

// GetStats returns the statistics of the node.
func (n *Node) GetStats() stats.Snapshot {
	return n.core.Stats().Snapshot()
}

// GetInfo returns a summary of the node's state.
func (n *Node) GetInfo() map[string]string {
	return map[string]string{
		"state":    n.GetState().String(),
		"moniker":  n.validator.Moniker,
		"address":  n.core.Self().NetAddr,
		"members":  fmt.Sprintf("%d", n.core.Registry().Len()),
		"pipeline": fmt.Sprintf("%d", len(n.core.GetPending())),
		"standby":  fmt.Sprintf("%d", n.core.StandbyLen()),
		"uptime":   n.clock.Since(n.start).String(),
	}
}

// GetPeers returns the active members.
func (n *Node) GetPeers() []*peers.Peer {
	return n.core.Registry().Peers()
}

// GetPending returns a copy of the pipeline.
func (n *Node) GetPending() []pipeline.EntryInfo {
	return n.core.GetPending()
}

// GetConnections returns the neighbors of this node at level.
func (n *Node) GetConnections(level int) []*peers.Peer {
	return n.core.GetConnections(level)
}

// GetDelivered returns an archived object.
func (n *Node) GetDelivered(index int) (*store.Delivered, error) {
	s := n.core.Store()
	if s == nil {
		return nil, fmt.Errorf("no store")
	}
	return s.Get(index)
}

// Self returns the member this node is.
func (n *Node) Self() *peers.Peer {
	return n.core.Self()
}
