package peers

import (
	"sort"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/mosaicnetworks/chronicle/src/common"
	"github.com/sirupsen/logrus"
)

// Default grace windows.
const (
	DefaultJoinGracePeriod  = 30 * time.Second
	DefaultLeaveGracePeriod = 60 * time.Second
)

// Registry is the membership list of a network instance. It keeps the active
// members sorted by IP, plus two side lists that absorb propagation lag:
// pending (announced joiners inside their grace window) and recently-left
// (departed members still visible to topology validation).
//
// Lock order: l before rl.
type Registry struct {
	l       sync.RWMutex
	active  []*Peer
	pending []*Peer

	rl     sync.RWMutex
	recent []*Peer // departure order, most recent last

	queue *common.DeferredQueue

	obsLock   sync.Mutex
	observers []func(count int)

	joinGrace  time.Duration
	leaveGrace time.Duration

	clock  clock.Clock
	logger *logrus.Entry
}

// NewRegistry creates an empty Registry.
func NewRegistry(joinGrace, leaveGrace time.Duration, clk clock.Clock, logger *logrus.Entry) *Registry {
	if clk == nil {
		clk = clock.NewClock()
	}
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	return &Registry{
		queue:      common.NewDeferredQueue(),
		joinGrace:  joinGrace,
		leaveGrace: leaveGrace,
		clock:      clk,
		logger:     logger.WithField("prefix", "registry"),
	}
}

// OnChange registers an observer that is called, outside of any lock, with
// the number of active members after every mutation.
func (r *Registry) OnChange(fn func(count int)) {
	r.obsLock.Lock()
	defer r.obsLock.Unlock()

	r.observers = append(r.observers, fn)
}

func (r *Registry) notify() {
	count := r.Len()

	r.obsLock.Lock()
	observers := make([]func(int), len(r.observers))
	copy(observers, r.observers)
	r.obsLock.Unlock()

	for _, fn := range observers {
		fn(count)
	}
}

// Add makes peer an active member immediately. It clears any pending or
// recently-left record of the same member.
func (r *Registry) Add(peer *Peer) {
	r.l.Lock()
	r.pending = remove(r.pending, peer)
	added := false
	r.active, added = insert(r.active, peer)
	r.rl.Lock()
	r.recent = remove(r.recent, peer)
	r.rl.Unlock()
	r.l.Unlock()

	if added {
		r.logger.WithField("peer", peer.String()).Debug("Add")
	}

	r.notify()
}

// AddWithDelay puts peer in the pending list; it becomes active once
// announceTimestamp + joinGrace has passed.
func (r *Registry) AddWithDelay(peer *Peer, announceTimestamp int64) {
	r.l.Lock()
	if IndexOf(r.active, peer) >= 0 {
		r.l.Unlock()
		return
	}
	p := *peer
	p.PendingSince = announceTimestamp
	r.pending, _ = insert(r.pending, &p)
	r.l.Unlock()

	due := common.FromTimestamp(announceTimestamp).Add(r.joinGrace)

	r.logger.WithFields(logrus.Fields{
		"peer": peer.String(),
		"due":  due,
	}).Debug("AddWithDelay")

	r.queue.Schedule(due, "activate "+peer.NetAddr, func() { r.activate(&p) })

	r.notify()
}

func (r *Registry) activate(peer *Peer) {
	r.l.Lock()
	if IndexOf(r.pending, peer) < 0 {
		r.l.Unlock()
		return
	}
	r.pending = remove(r.pending, peer)
	active := *peer
	active.PendingSince = 0
	r.active, _ = insert(r.active, &active)
	r.l.Unlock()

	r.logger.WithField("peer", peer.String()).Debug("Activated")

	r.notify()
}

// Remove moves peer to the recently-left list, where it stays until
// atTimestamp + leaveGrace.
func (r *Registry) Remove(peer *Peer, atTimestamp int64) {
	r.l.Lock()
	wasActive := IndexOf(r.active, peer) >= 0
	r.active = remove(r.active, peer)
	r.pending = remove(r.pending, peer)
	if wasActive {
		r.rl.Lock()
		r.recent = append(remove(r.recent, peer), peer)
		r.rl.Unlock()
	}
	r.l.Unlock()

	if !wasActive {
		r.notify()
		return
	}

	due := common.FromTimestamp(atTimestamp).Add(r.leaveGrace)

	r.logger.WithFields(logrus.Fields{
		"peer": peer.String(),
		"due":  due,
	}).Debug("Remove")

	r.queue.Schedule(due, "forget "+peer.NetAddr, func() { r.forget(peer) })

	r.notify()
}

func (r *Registry) forget(peer *Peer) {
	r.rl.Lock()
	before := len(r.recent)
	r.recent = remove(r.recent, peer)
	changed := len(r.recent) != before
	r.rl.Unlock()

	if changed {
		r.logger.WithField("peer", peer.String()).Debug("Forgotten")
		r.notify()
	}
}

// Poll runs the deferred activations and removals that are due. Read
// operations poll first, so a grace window closes exactly on time even
// between scheduler ticks.
func (r *Registry) Poll() int {
	due := r.queue.PopDue(r.clock.Now())
	for _, task := range due {
		task.Run()
	}
	return len(due)
}

// Peers returns a copy of the active members, sorted by IP.
func (r *Registry) Peers() []*Peer {
	r.Poll()

	r.l.RLock()
	defer r.l.RUnlock()

	return clone(r.active)
}

// Len returns the number of active members.
func (r *Registry) Len() int {
	r.l.RLock()
	defer r.l.RUnlock()

	return len(r.active)
}

// CurrentAndRecentNodes returns active ∪ recently-left, sorted by IP. It is
// the view used to validate claims about a past topology.
func (r *Registry) CurrentAndRecentNodes() []*Peer {
	r.Poll()

	r.l.RLock()
	defer r.l.RUnlock()
	r.rl.RLock()
	defer r.rl.RUnlock()

	return union(r.active, r.recent)
}

// ListWithPending returns active ∪ pending, sorted by IP, so that new joiners
// are discoverable before they become active.
func (r *Registry) ListWithPending() []*Peer {
	r.Poll()

	r.l.RLock()
	defer r.l.RUnlock()

	return union(r.active, r.pending)
}

// RecentlyLeft returns the recently-left members, most recent first.
func (r *Registry) RecentlyLeft() []*Peer {
	r.Poll()

	r.rl.RLock()
	defer r.rl.RUnlock()

	res := make([]*Peer, 0, len(r.recent))
	for i := len(r.recent) - 1; i >= 0; i-- {
		res = append(res, r.recent[i])
	}
	return res
}

// ByPubKey finds a member by public key in any of the three lists.
func (r *Registry) ByPubKey(pubKeyHex string) (*Peer, bool) {
	pubKeyHex = common.NormalizeHex(pubKeyHex)

	for _, p := range r.all() {
		if p.PubKeyHex == pubKeyHex {
			return p, true
		}
	}
	return nil, false
}

// ByIP finds a member by IP in any of the three lists.
func (r *Registry) ByIP(ip uint32) (*Peer, bool) {
	for _, p := range r.all() {
		if p.IP == ip {
			return p, true
		}
	}
	return nil, false
}

// Contains reports whether peer is known in any of the three lists.
func (r *Registry) Contains(peer *Peer) bool {
	_, ok := r.ByIP(peer.IP)
	return ok
}

func (r *Registry) all() []*Peer {
	r.Poll()

	r.l.RLock()
	defer r.l.RUnlock()
	r.rl.RLock()
	defer r.rl.RUnlock()

	return union(union(r.active, r.pending), r.recent)
}

// insert adds peer to a sorted list unless a peer with the same IP is there.
func insert(sorted []*Peer, peer *Peer) ([]*Peer, bool) {
	i := sort.Search(len(sorted), func(i int) bool { return sorted[i].IP >= peer.IP })
	if i < len(sorted) && sorted[i].IP == peer.IP {
		return sorted, false
	}
	sorted = append(sorted, nil)
	copy(sorted[i+1:], sorted[i:])
	sorted[i] = peer
	return sorted, true
}

func remove(list []*Peer, peer *Peer) []*Peer {
	res := list[:0]
	for _, p := range list {
		if !p.Equal(peer) {
			res = append(res, p)
		}
	}
	return res
}

func clone(list []*Peer) []*Peer {
	res := make([]*Peer, len(list))
	copy(res, list)
	return res
}

func union(a, b []*Peer) []*Peer {
	res := clone(a)
	for _, p := range b {
		res, _ = insert(res, p)
	}
	return res
}
