package topology

import (
	"math/bits"
	"sort"

	"github.com/mosaicnetworks/chronicle/src/peers"
	"github.com/sirupsen/logrus"
)

// MaxRecentlyLeftCombinations bounds the number of recently-left members
// considered by ValidateConnectionAtLevel0. The search enumerates every subset
// of them, so its cost is 2^k topology computations.
const MaxRecentlyLeftCombinations = 10

// ValidateConnectionAtLevel0 reports whether claimed is exactly the level-1
// neighbor set of origin. Membership views of different nodes lag each other,
// so when the active membership does not produce claimed, subsets of the
// recently-left members are added back, smallest first, and the first exact
// match is accepted.
func (m *Mapper) ValidateConnectionAtLevel0(origin *peers.Peer, claimed []*peers.Peer) bool {
	active := m.registry.Peers()

	if peers.SameSet(Neighbors(active, origin, 1), claimed) {
		return true
	}

	recent := m.registry.RecentlyLeft()
	if len(recent) > MaxRecentlyLeftCombinations {
		recent = recent[:MaxRecentlyLeftCombinations]
	}

	k := len(recent)
	for size := 1; size <= k; size++ {
		for mask := uint(1); mask < 1<<uint(k); mask++ {
			if bits.OnesCount(mask) != size {
				continue
			}

			nodes := make([]*peers.Peer, len(active), len(active)+size)
			copy(nodes, active)
			for i := 0; i < k; i++ {
				if mask&(1<<uint(i)) != 0 && peers.IndexOf(nodes, recent[i]) < 0 {
					nodes = append(nodes, recent[i])
				}
			}
			sort.Sort(peers.ByIP(nodes))

			if peers.SameSet(Neighbors(nodes, origin, 1), claimed) {
				m.logger.WithFields(logrus.Fields{
					"origin":        origin.String(),
					"recently_left": size,
				}).Debug("Validated with recently-left members")
				return true
			}
		}
	}

	m.logger.WithFields(logrus.Fields{
		"origin":  origin.String(),
		"claimed": len(claimed),
		"active":  len(active),
		"recent":  k,
	}).Debug("Connection claim does not match topology")

	return false
}
