package peers

import (
	"fmt"
	"os"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/mosaicnetworks/chronicle/src/common"
	"github.com/mosaicnetworks/chronicle/src/crypto/keys"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPeer(t *testing.T, i int) *Peer {
	key, err := keys.GenerateECDSAKey()
	require.NoError(t, err)
	return NewPeer(keys.PublicKeyHex(&key.PublicKey), fmt.Sprintf("10.0.0.%d:1337", i), fmt.Sprintf("node%d", i))
}

func newTestRegistry(t *testing.T) (*Registry, *fakeclock.FakeClock) {
	clk := fakeclock.NewFakeClock(time.Unix(1600000000, 0))
	r := NewRegistry(DefaultJoinGracePeriod, DefaultLeaveGracePeriod, clk, common.NewTestEntry(t, logrus.DebugLevel))
	return r, clk
}

func ips(peers []*Peer) []uint32 {
	res := make([]uint32, len(peers))
	for i, p := range peers {
		res[i] = p.IP
	}
	return res
}

func TestRegistrySortedByIP(t *testing.T) {
	r, _ := newTestRegistry(t)

	for _, i := range []int{7, 3, 9, 1, 5} {
		r.Add(testPeer(t, i))
	}
	// duplicate IP is ignored
	r.Add(testPeer(t, 3))

	peers := r.Peers()
	require.Len(t, peers, 5)
	for i := 1; i < len(peers); i++ {
		assert.Less(t, peers[i-1].IP, peers[i].IP)
	}
	assert.Equal(t, "node1", peers[0].Moniker)
	assert.Equal(t, "node9", peers[4].Moniker)
}

func TestRegistryJoinGrace(t *testing.T) {
	r, clk := newTestRegistry(t)

	a := testPeer(t, 1)
	r.Add(a)

	b := testPeer(t, 2)
	r.AddWithDelay(b, common.Timestamp(clk.Now()))

	assert.Len(t, r.Peers(), 1)
	assert.Len(t, r.ListWithPending(), 2)
	assert.True(t, r.Contains(b))

	clk.Increment(DefaultJoinGracePeriod - time.Millisecond)
	assert.Len(t, r.Peers(), 1, "still pending just before the grace window closes")
	assert.Len(t, r.CurrentAndRecentNodes(), 1)

	clk.Increment(time.Millisecond)
	peers := r.Peers()
	require.Len(t, peers, 2)
	assert.Equal(t, int64(0), peers[1].PendingSince)
	assert.Len(t, r.CurrentAndRecentNodes(), 2)
	assert.Len(t, r.ListWithPending(), 2)
}

func TestRegistryLeaveGrace(t *testing.T) {
	r, clk := newTestRegistry(t)

	a, b, c := testPeer(t, 1), testPeer(t, 2), testPeer(t, 3)
	r.Add(a)
	r.Add(b)
	r.Add(c)

	r.Remove(b, common.Timestamp(clk.Now()))

	assert.Equal(t, []uint32{a.IP, c.IP}, ips(r.Peers()))
	assert.Equal(t, []uint32{a.IP, b.IP, c.IP}, ips(r.CurrentAndRecentNodes()))
	assert.Equal(t, []uint32{b.IP}, ips(r.RecentlyLeft()))

	_, ok := r.ByPubKey(b.PubKeyHex)
	assert.True(t, ok, "recently-left members still resolve")

	clk.Increment(DefaultLeaveGracePeriod)

	assert.Empty(t, r.RecentlyLeft())
	assert.Equal(t, []uint32{a.IP, c.IP}, ips(r.CurrentAndRecentNodes()))
	_, ok = r.ByPubKey(b.PubKeyHex)
	assert.False(t, ok)
}

func TestRegistryRejoinClearsRecentlyLeft(t *testing.T) {
	r, clk := newTestRegistry(t)

	a := testPeer(t, 1)
	r.Add(a)
	r.Remove(a, common.Timestamp(clk.Now()))
	r.Add(a)

	assert.Empty(t, r.RecentlyLeft())
	assert.Len(t, r.Peers(), 1)

	// the forget task is stale and must not drop the rejoined member
	clk.Increment(DefaultLeaveGracePeriod)
	assert.Len(t, r.Peers(), 1)
}

func TestRegistryRecentlyLeftOrder(t *testing.T) {
	r, clk := newTestRegistry(t)

	peers := []*Peer{testPeer(t, 1), testPeer(t, 2), testPeer(t, 3)}
	for _, p := range peers {
		r.Add(p)
	}
	for _, p := range peers {
		r.Remove(p, common.Timestamp(clk.Now()))
		clk.Increment(time.Second)
	}

	assert.Equal(t, []uint32{peers[2].IP, peers[1].IP, peers[0].IP}, ips(r.RecentlyLeft()))
}

func TestRegistryOnChange(t *testing.T) {
	r, clk := newTestRegistry(t)

	counts := []int{}
	r.OnChange(func(count int) {
		// observers run outside the locks, so reading back is safe
		assert.Equal(t, count, r.Len())
		counts = append(counts, count)
	})

	a, b := testPeer(t, 1), testPeer(t, 2)
	r.Add(a)
	r.AddWithDelay(b, common.Timestamp(clk.Now()))
	clk.Increment(DefaultJoinGracePeriod)
	r.Poll()
	r.Remove(a, common.Timestamp(clk.Now()))

	assert.Equal(t, []int{1, 1, 2, 1}, counts)
}

func TestJSONPeerSet(t *testing.T) {
	dir, err := os.MkdirTemp("", "chronicle-peers")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	peers := []*Peer{testPeer(t, 3), testPeer(t, 1), testPeer(t, 2)}

	js := NewJSONPeerSet(dir)
	require.NoError(t, js.Write(peers))

	loaded, err := js.Peers()
	require.NoError(t, err)
	require.Len(t, loaded, 3)

	assert.Equal(t, []uint32{peers[1].IP, peers[2].IP, peers[0].IP}, ips(loaded))
	for _, p := range loaded {
		assert.NotNil(t, p.PublicKey(), "%s has no public key", p)
	}
}

func TestSameSet(t *testing.T) {
	a, b, c := testPeer(t, 1), testPeer(t, 2), testPeer(t, 3)

	assert.True(t, SameSet([]*Peer{a, b}, []*Peer{b, a}))
	assert.False(t, SameSet([]*Peer{a, b}, []*Peer{a, c}))
	assert.False(t, SameSet([]*Peer{a, b}, []*Peer{a, a}))
	assert.True(t, SameSet(nil, []*Peer{}))
}
