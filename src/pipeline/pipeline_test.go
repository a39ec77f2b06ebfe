package pipeline

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/mosaicnetworks/chronicle/src/peers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPeers(n int) []*peers.Peer {
	res := make([]*peers.Peer, n)
	for i := 0; i < n; i++ {
		res[i] = peers.NewPeer(fmt.Sprintf("0X%02X", i), fmt.Sprintf("10.0.0.%d:1337", i+1), fmt.Sprintf("node%d", i))
	}
	return res
}

func checkSorted(t *testing.T, p *Pipeline) {
	snap := p.Snapshot()
	for i := 1; i < len(snap); i++ {
		prev := Element{Timestamp: snap[i-1].Timestamp, Payload: snap[i-1].Payload}
		cur := Element{Timestamp: snap[i].Timestamp, Payload: snap[i].Payload}
		if prev.Compare(cur) >= 0 {
			t.Fatalf("pipeline not sorted at %d: %v >= %v", i, prev, cur)
		}
	}
}

func TestPipelineSorted(t *testing.T) {
	p := NewPipeline()
	from := testPeers(1)[0]

	r := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		el := NewElement(int64(r.Intn(50)), []byte(fmt.Sprintf("p%d", r.Intn(20))))
		if el.Unset() {
			p.Add(NewEntry(el, 1, Unsigned))
		} else {
			p.Receive(el, 2, from, []byte("sigs"))
		}
		checkSorted(t, p)
	}

	snap := p.Snapshot()
	require.NotEmpty(t, snap)
	// unset timestamps first
	for i, e := range snap {
		if e.Timestamp != 0 {
			for _, rest := range snap[i:] {
				assert.NotEqual(t, int64(0), rest.Timestamp)
			}
			break
		}
	}
}

func TestPipelineAddIfAbsent(t *testing.T) {
	p := NewPipeline()

	assert.True(t, p.Add(NewEntry(NewElement(0, []byte("a")), 1, Unsigned)))
	assert.False(t, p.Add(NewEntry(NewElement(0, []byte("a")), 1, Unsigned)))
	assert.True(t, p.Add(NewEntry(NewElement(0, []byte("b")), 1, Unsigned)))
	assert.Equal(t, 2, p.Len())
}

func TestPipelineIdempotentReceive(t *testing.T) {
	p := NewPipeline()
	ps := testPeers(3)
	el := NewElement(1000, []byte("P1"))

	assert.True(t, p.Receive(el, 2, ps[0], []byte("sigs")))
	assert.False(t, p.Receive(el, 3, ps[1], []byte("sigs")))
	assert.False(t, p.Receive(el, 3, ps[1], []byte("sigs")))

	assert.Equal(t, 1, p.Len())

	info, ok := p.Get(el)
	require.True(t, ok)
	assert.Equal(t, 3, info.Received)
	assert.Equal(t, 2, info.Seen)
	assert.Equal(t, []int{2, 3}, info.Levels)
	assert.Equal(t, "Finalized", info.State)
}

func TestPipelinePopExpired(t *testing.T) {
	p := NewPipeline()
	from := testPeers(1)[0]

	p.Add(NewEntry(NewElement(0, []byte("unset")), 1, Unsigned))
	for _, ts := range []int64{30, 10, 20, 100} {
		p.Receive(NewElement(ts, []byte("x")), 2, from, []byte("sigs"))
	}

	expired := p.PopExpired(50)
	require.Len(t, expired, 3)
	assert.Equal(t, int64(10), expired[0].Timestamp)
	assert.Equal(t, int64(20), expired[1].Timestamp)
	assert.Equal(t, int64(30), expired[2].Timestamp)

	snap := p.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, int64(0), snap[0].Timestamp)
	assert.Equal(t, int64(100), snap[1].Timestamp)

	assert.Empty(t, p.PopExpired(50))
}

func TestPipelineCollect(t *testing.T) {
	p := NewPipeline()
	ps := testPeers(4)

	el := NewElement(0, []byte("a"))
	p.Add(NewEntry(el, 1, Unsigned))
	p.Add(NewEntry(NewElement(0, []byte("b")), 1, Unsigned))
	p.Receive(NewElement(5, []byte("c")), 2, ps[0], []byte("sigs"))

	stamp := func(e *Entry, neighbors []*peers.Peer) ([]byte, bool) {
		if e.State != Unsigned {
			return nil, false
		}
		e.Timestamp = 100 - int64(e.Payload[0]-'a')
		e.State = AwaitingQuorum
		e.Attempts++
		return []byte("self"), true
	}

	batches := p.Collect(1, ps[1:3], stamp)
	require.Len(t, batches, 2)
	for _, b := range batches {
		assert.Len(t, b.Envelopes, 2)
		for _, env := range b.Envelopes {
			assert.Equal(t, 1, env.Level)
			assert.NotEqual(t, int64(0), env.Timestamp)
			assert.Equal(t, env.Element().ShortHash(), env.ShortHash)
		}
	}
	checkSorted(t, p)

	// already sent to both
	assert.Empty(t, p.Collect(1, ps[1:3], stamp))

	forward := func(e *Entry, neighbors []*peers.Peer) ([]byte, bool) {
		return e.Signatures, e.State == Finalized
	}
	batches = p.Collect(2, ps, forward)
	// ps[0] sent it to us
	require.Len(t, batches, 3)
	for _, b := range batches {
		assert.NotEqual(t, ps[0].IP, b.Peer.IP)
		assert.Equal(t, []byte("sigs"), b.Envelopes[0].Signature)
	}
}

func TestPipelineCollectWithoutNeighbors(t *testing.T) {
	p := NewPipeline()
	p.Add(NewEntry(NewElement(0, []byte("solo")), 1, Unsigned))

	batches := p.Collect(1, nil, func(e *Entry, neighbors []*peers.Peer) ([]byte, bool) {
		e.Timestamp = 10
		e.State = Finalized
		return nil, false
	})
	assert.Empty(t, batches)

	info, ok := p.Get(NewElement(10, []byte("solo")))
	require.True(t, ok)
	assert.Equal(t, "Finalized", info.State)
}

func TestPipelineResetAndRetract(t *testing.T) {
	p := NewPipeline()
	ps := testPeers(2)

	p.Add(NewEntry(NewElement(0, []byte("a")), 1, Unsigned))
	p.Collect(1, ps, func(e *Entry, neighbors []*peers.Peer) ([]byte, bool) {
		e.Timestamp = 100
		e.State = AwaitingQuorum
		e.Attempts++
		return []byte("self"), true
	})

	assert.Equal(t, 1, p.Reset(NewElement(100, []byte("a"))))
	info, ok := p.Get(NewElement(0, []byte("a")))
	require.True(t, ok)
	assert.Equal(t, "Unsigned", info.State)
	assert.Equal(t, 0, info.Seen)

	// not awaiting a quorum anymore
	assert.Equal(t, -1, p.Reset(NewElement(0, []byte("a"))))

	p.Receive(NewElement(200, []byte("a")), 2, ps[0], []byte("sigs"))
	p.Receive(NewElement(200, []byte("b")), 2, ps[0], []byte("sigs"))

	removed := p.Retract([]byte("a"))
	assert.Len(t, removed, 2)
	assert.Equal(t, 1, p.Len())
}

func TestStandby(t *testing.T) {
	s := NewStandby()
	origin := testPeers(1)[0]

	el := NewElement(100, []byte("a"))
	e := &StandbyEntry{Element: el, ShortHash: el.ShortHash(), Origin: origin}

	assert.True(t, s.AddIfAbsent(e))
	assert.False(t, s.AddIfAbsent(&StandbyEntry{Element: el, ShortHash: el.ShortHash()}))

	old := NewElement(10, []byte("b"))
	s.AddIfAbsent(&StandbyEntry{Element: old, ShortHash: old.ShortHash()})

	expired := s.PopExpired(50)
	require.Len(t, expired, 1)
	assert.Equal(t, old, expired[0].Element)

	got, ok := s.Take(el.ShortHash())
	require.True(t, ok)
	assert.Equal(t, origin, got.Origin)

	_, ok = s.Take(el.ShortHash())
	assert.False(t, ok)
}

func TestQuorumCompleteness(t *testing.T) {
	q := NewQuorums()
	ps := testPeers(4)
	el := NewElement(100, []byte("a"))
	sh := el.ShortHash()

	q.Open(el, ps[:3], 100)

	c, err := q.Add(sh, ps[3], []byte("x"))
	assert.Error(t, err, "not an expected neighbor")
	assert.Nil(t, c)

	for i := 0; i < 2; i++ {
		c, err = q.Add(sh, ps[i], []byte{byte(i)})
		require.NoError(t, err)
		assert.Nil(t, c)
		// a repeated reply does not count twice
		c, err = q.Add(sh, ps[i], []byte{byte(i)})
		require.NoError(t, err)
		assert.Nil(t, c)
	}

	c, err = q.Add(sh, ps[2], []byte{2})
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Len(t, c.Signatures, 3)
	assert.Equal(t, 0, q.Len())
}

func TestQuorumExpiry(t *testing.T) {
	q := NewQuorums()
	ps := testPeers(2)

	q.Open(NewElement(100, []byte("a")), ps, 100)
	q.Open(NewElement(300, []byte("b")), ps, 300)

	expired := q.PopExpired(200)
	require.Len(t, expired, 1)
	assert.Equal(t, []byte("a"), expired[0].Element.Payload)
	assert.Equal(t, 1, q.Len())
}

func TestSignatureSetEncoding(t *testing.T) {
	set := SignatureSet{
		"0XBB": []byte{1, 2, 3},
		"0XAA": []byte{4, 5, 6},
	}

	a, err := set.Marshal()
	require.NoError(t, err)

	// canonical: same bytes whatever the map order
	b, err := SignatureSet{"0XAA": []byte{4, 5, 6}, "0XBB": []byte{1, 2, 3}}.Marshal()
	require.NoError(t, err)
	assert.Equal(t, a, b)

	decoded, err := UnmarshalSignatureSet(a)
	require.NoError(t, err)
	assert.Equal(t, set, decoded)
	assert.Equal(t, []string{"0XAA", "0XBB"}, decoded.Signers())

	_, err = UnmarshalSignatureSet([]byte{0xc1})
	assert.Error(t, err)
}
