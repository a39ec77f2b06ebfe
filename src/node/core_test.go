package node

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/mosaicnetworks/chronicle/src/common"
	"github.com/mosaicnetworks/chronicle/src/crypto/keys"
	"github.com/mosaicnetworks/chronicle/src/peers"
	"github.com/mosaicnetworks/chronicle/src/pipeline"
	"github.com/mosaicnetworks/chronicle/src/proxy"
	"github.com/mosaicnetworks/chronicle/src/proxy/inmem"
	"github.com/mosaicnetworks/chronicle/src/stats"
	"github.com/mosaicnetworks/chronicle/src/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const noteType = "note"

type delivery struct {
	data      string
	timestamp int64
}

// testNet routes the batches of a few cores to each other synchronously, so
// that a test controls every step of the protocol.
type testNet struct {
	t       *testing.T
	clock   *fakeclock.FakeClock
	conf    *Config
	cores   []*Core
	stores  []*store.InmemStore
	members []*member

	l         sync.Mutex
	delivered [][]delivery
}

type member struct {
	validator *Validator
	peer      *peers.Peer
}

func newTestNet(t *testing.T, n int) *testNet {
	clk := fakeclock.NewFakeClock(time.Unix(1600000000, 0))
	conf := TestConfig(t, clk)

	tn := &testNet{
		t:         t,
		clock:     clk,
		conf:      conf,
		delivered: make([][]delivery, n),
	}

	members := []*peers.Peer{}
	for i := 0; i < n; i++ {
		key, err := keys.GenerateECDSAKey()
		require.NoError(t, err)
		v := NewValidator(key, fmt.Sprintf("node%d", i))
		p := v.Peer(fmt.Sprintf("10.0.0.%d:1337", i+1))
		tn.members = append(tn.members, &member{validator: v, peer: p})
		members = append(members, p)
	}

	for i := 0; i < n; i++ {
		registry := peers.NewRegistry(peers.DefaultJoinGracePeriod, peers.DefaultLeaveGracePeriod, clk, conf.Logger)
		for _, m := range members {
			registry.Add(m)
		}

		prx := inmem.NewInmemProxy(conf.Logger)
		st := store.NewInmemStore(100)

		core := NewCore(conf, tn.members[i].validator, tn.members[i].peer, registry, st, prx, stats.NewStats(clk, nil))
		require.NoError(t, core.RegisterDeliveryHandler(noteType, func(data []byte, ts int64) {
			tn.l.Lock()
			defer tn.l.Unlock()
			tn.delivered[i] = append(tn.delivered[i], delivery{string(data), ts})
		}))

		tn.cores = append(tn.cores, core)
		tn.stores = append(tn.stores, st)
	}

	return tn
}

func note(t *testing.T, data string) []byte {
	payload, err := proxy.NewObject(noteType, []byte(data))
	require.NoError(t, err)
	return payload
}

func (tn *testNet) index(p *peers.Peer) int {
	for i, k := range tn.members {
		if k.peer.Equal(p) {
			return i
		}
	}
	tn.t.Fatalf("unknown peer %s", p)
	return -1
}

// viewOf returns the record of member i in the registry of node j.
func (tn *testNet) viewOf(j, i int) *peers.Peer {
	p, ok := tn.cores[j].Registry().ByIP(tn.members[i].peer.IP)
	if !ok {
		return nil
	}
	return p
}

// route delivers the batches spooled by node from, and the quorums their
// replies complete.
func (tn *testNet) route(from int, outs []*Outbound) {
	for _, o := range outs {
		to := tn.index(o.Peer)
		vector := tn.cores[to].ReceiveFromPeer(o.Envelopes, tn.viewOf(to, from))
		if !o.Certify || vector == nil {
			continue
		}
		for _, c := range tn.cores[from].ProcessSignatures(o.Peer, vector) {
			sh := c.Element.ShortHash()
			for _, s := range c.Signers {
				signer := tn.index(s)
				tn.cores[signer].ReceiveQuorum(pipeline.TimestampVector{sh: c.Signatures}, tn.viewOf(signer, from))
			}
		}
	}
}

// settle spools and routes until nothing moves.
func (tn *testNet) settle() int {
	rounds := 0
	for ; rounds < 20; rounds++ {
		moved := false
		for i, c := range tn.cores {
			outs := c.Spool()
			if len(outs) > 0 {
				moved = true
			}
			tn.route(i, outs)
		}
		if !moved {
			break
		}
	}
	return rounds
}

func (tn *testNet) evictAll() {
	for _, c := range tn.cores {
		c.Evict()
	}
}

func (tn *testNet) deliveries(i int) []delivery {
	tn.l.Lock()
	defer tn.l.Unlock()

	res := make([]delivery, len(tn.delivered[i]))
	copy(res, tn.delivered[i])
	return res
}

func (tn *testNet) entry(i int, data []byte) (pipeline.EntryInfo, bool) {
	for _, e := range tn.cores[i].GetPending() {
		if string(e.Payload) == string(data) {
			return e, true
		}
	}
	return pipeline.EntryInfo{}, false
}

func TestInsertLocal(t *testing.T) {
	tn := newTestNet(t, 2)
	c := tn.cores[0]

	assert.False(t, c.InsertLocal(nil))
	assert.True(t, c.InsertLocal(note(t, "a")))
	assert.False(t, c.InsertLocal(note(t, "a")), "same payload waiting for a timestamp")
	assert.True(t, c.InsertLocal(note(t, "b")))

	pending := c.GetPending()
	require.Len(t, pending, 2)
	for _, e := range pending {
		assert.Equal(t, int64(0), e.Timestamp)
		assert.Equal(t, "Unsigned", e.State)
		assert.Equal(t, []int{1}, e.Levels)
	}
}

func TestCertificationTwoNodes(t *testing.T) {
	tn := newTestNet(t, 2)
	payload := note(t, "hello")

	require.True(t, tn.cores[0].InsertLocal(payload))

	outs := tn.cores[0].Spool()
	require.Len(t, outs, 1)
	assert.True(t, outs[0].Certify)
	assert.Equal(t, 1, outs[0].Level)
	require.Len(t, outs[0].Envelopes, 1)

	env := outs[0].Envelopes[0]
	assert.Equal(t, common.Timestamp(tn.clock.Now()), env.Timestamp)

	e, ok := tn.entry(0, payload)
	require.True(t, ok)
	assert.Equal(t, "AwaitingQuorum", e.State)
	assert.Equal(t, 1, e.Attempts)

	tn.route(0, outs)

	e, ok = tn.entry(0, payload)
	require.True(t, ok)
	assert.Equal(t, "Finalized", e.State)

	e, ok = tn.entry(1, payload)
	require.True(t, ok, "the co-signer holds the finalized element")
	assert.Equal(t, "Finalized", e.State)
	assert.Equal(t, []int{2}, e.Levels)
	assert.Equal(t, 0, tn.cores[1].StandbyLen())

	tn.settle()

	tn.clock.Increment(tn.conf.SyncWindow + time.Millisecond)
	tn.evictAll()

	for i := 0; i < 2; i++ {
		d := tn.deliveries(i)
		require.Len(t, d, 1, "node %d", i)
		assert.Equal(t, "hello", d[0].data)
		assert.Equal(t, env.Timestamp, d[0].timestamp)
		assert.Equal(t, 0, tn.stores[i].LastIndex())
	}
}

func TestEndToEndThreeNodes(t *testing.T) {
	tn := newTestNet(t, 3)

	// every node has the two others as level-1 neighbors
	for i := range tn.cores {
		assert.Len(t, tn.cores[i].GetConnections(1), 2)
	}

	first := note(t, "first")
	second := note(t, "second")
	third := note(t, "third")

	require.True(t, tn.cores[0].InsertLocal(first))
	tn.settle()

	tn.clock.Increment(10 * time.Millisecond)
	require.True(t, tn.cores[2].InsertLocal(third))
	require.True(t, tn.cores[1].InsertLocal(second))
	tn.settle()

	for i := range tn.cores {
		pending := tn.cores[i].GetPending()
		require.Len(t, pending, 3, "node %d", i)
		for _, e := range pending {
			assert.Equal(t, "Finalized", e.State, "node %d", i)
		}
	}

	// nothing leaves before the end of the sync window
	tn.clock.Increment(tn.conf.SyncWindow - 20*time.Millisecond)
	tn.evictAll()
	for i := range tn.cores {
		assert.Empty(t, tn.deliveries(i))
	}

	tn.clock.Increment(time.Second)
	tn.evictAll()
	tn.evictAll()

	reference := tn.deliveries(0)
	require.Len(t, reference, 3)
	assert.Equal(t, "first", reference[0].data)
	assert.True(t, reference[1].timestamp > reference[0].timestamp)
	assert.True(t, reference[1].timestamp <= reference[2].timestamp)

	for i := range tn.cores {
		assert.Equal(t, reference, tn.deliveries(i), "node %d delivers the same sequence", i)
		assert.Equal(t, 2, tn.stores[i].LastIndex())
		assert.Empty(t, tn.cores[i].GetPending())

		snap := tn.cores[i].Stats().Snapshot()
		assert.Equal(t, uint64(3), snap.Last12h.Delivered)
		assert.Equal(t, uint64(0), snap.Last12h.Rejected)
	}
}

func TestSingleNodeSelfFinalizes(t *testing.T) {
	tn := newTestNet(t, 1)
	c := tn.cores[0]

	require.True(t, c.InsertLocal(note(t, "alone")))
	assert.Empty(t, c.Spool())

	pending := c.GetPending()
	require.Len(t, pending, 1)
	assert.Equal(t, "Finalized", pending[0].State)
	assert.NotZero(t, pending[0].Timestamp)

	tn.clock.Increment(tn.conf.SyncWindow + time.Millisecond)
	assert.Equal(t, 1, c.Evict())
	require.Len(t, tn.deliveries(0), 1)
}

func TestCertificationRetries(t *testing.T) {
	tn := newTestNet(t, 2)
	c := tn.cores[0]
	payload := note(t, "lost")

	require.True(t, c.InsertLocal(payload))

	var stamps []int64
	for attempt := 1; attempt <= tn.conf.MaxCertificationAttempts; attempt++ {
		outs := c.Spool()
		require.Len(t, outs, 1, "attempt %d", attempt)
		stamps = append(stamps, outs[0].Envelopes[0].Timestamp)

		e, ok := tn.entry(0, payload)
		require.True(t, ok)
		assert.Equal(t, attempt, e.Attempts)

		// the batch is lost
		tn.clock.Increment(tn.conf.SignatureTimeout + time.Millisecond)
		c.ExpireQuorums()
	}

	assert.True(t, stamps[0] < stamps[1] && stamps[1] < stamps[2], "each attempt gets a fresh timestamp")

	_, ok := tn.entry(0, payload)
	assert.False(t, ok, "abandoned after the last attempt")
	assert.Equal(t, uint64(1), c.Stats().Snapshot().Last12h.Rejected)
}

func TestResetKeepsEntryUntilTimeout(t *testing.T) {
	tn := newTestNet(t, 2)
	c := tn.cores[0]
	payload := note(t, "slow")

	require.True(t, c.InsertLocal(payload))
	require.Len(t, c.Spool(), 1)

	tn.clock.Increment(tn.conf.SignatureTimeout - time.Millisecond)
	c.ExpireQuorums()

	e, ok := tn.entry(0, payload)
	require.True(t, ok)
	assert.Equal(t, "AwaitingQuorum", e.State)
}

func signedEnvelope(t *testing.T, v *Validator, el pipeline.Element, level int) pipeline.ObjToNode {
	sig, err := v.Sign(el.Hash())
	require.NoError(t, err)
	return pipeline.NewObjToNode(el, level, sig)
}

func TestReceiveFromPeerRejections(t *testing.T) {
	tn := newTestNet(t, 3)
	receiver := tn.cores[1]
	sender := tn.viewOf(1, 0)
	now := common.Timestamp(tn.clock.Now())

	cases := []struct {
		name      string
		env       pipeline.ObjToNode
		from      *peers.Peer
		rejected  uint64
		outOfTime uint64
	}{
		{
			name:     "unknown sender",
			env:      signedEnvelope(t, tn.members[0].validator, pipeline.NewElement(now, note(t, "a")), 1),
			from:     peers.NewPeer(tn.members[0].peer.PubKeyHex, "10.9.9.9:1337", "stranger"),
			rejected: 1,
		},
		{
			name:     "forged self-certification",
			env:      signedEnvelope(t, tn.members[2].validator, pipeline.NewElement(now, note(t, "b")), 1),
			from:     sender,
			rejected: 1,
		},
		{
			name:      "from the future",
			env:       signedEnvelope(t, tn.members[0].validator, pipeline.NewElement(now+common.Millis(tn.conf.TimestampMargin)+1, note(t, "c")), 1),
			from:      sender,
			outOfTime: 1,
		},
		{
			name:      "too late for a first hop",
			env:       signedEnvelope(t, tn.members[0].validator, pipeline.NewElement(now-common.Millis(tn.conf.MaxTransmitTime+tn.conf.TimestampMargin)-1, note(t, "d")), 1),
			from:      sender,
			outOfTime: 1,
		},
		{
			name:      "older than the sync window",
			env:       pipeline.NewObjToNode(pipeline.NewElement(now-common.Millis(tn.conf.SyncWindow)-1, note(t, "e")), 2, nil),
			from:      sender,
			outOfTime: 1,
		},
		{
			name:     "unset timestamp",
			env:      pipeline.NewObjToNode(pipeline.NewElement(0, note(t, "f")), 1, nil),
			from:     sender,
			rejected: 1,
		},
		{
			name:     "no signature set",
			env:      pipeline.NewObjToNode(pipeline.NewElement(now, note(t, "g")), 2, nil),
			from:     sender,
			rejected: 1,
		},
	}

	for _, c := range cases {
		before := receiver.Stats().Snapshot().Last12h
		vector := receiver.ReceiveFromPeer([]pipeline.ObjToNode{c.env}, c.from)
		after := receiver.Stats().Snapshot().Last12h

		assert.Nil(t, vector, c.name)
		assert.Equal(t, c.rejected, after.Rejected-before.Rejected, c.name)
		assert.Equal(t, c.outOfTime, after.OutOfTime-before.OutOfTime, c.name)
	}

	assert.Equal(t, 0, receiver.StandbyLen())
	assert.Empty(t, receiver.GetPending())
}

func TestCertifyIsIdempotent(t *testing.T) {
	tn := newTestNet(t, 2)
	el := pipeline.NewElement(common.Timestamp(tn.clock.Now()), note(t, "twice"))
	env := signedEnvelope(t, tn.members[0].validator, el, 1)

	v1 := tn.cores[1].ReceiveFromPeer([]pipeline.ObjToNode{env}, tn.viewOf(1, 0))
	v2 := tn.cores[1].ReceiveFromPeer([]pipeline.ObjToNode{env}, tn.viewOf(1, 0))

	require.NotNil(t, v1)
	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, tn.cores[1].StandbyLen())

	assert.True(t, keys.Verify(tn.members[1].peer.PublicKey(), el.Hash(), v1[el.ShortHash()]))
}

func TestReceiveQuorumChecks(t *testing.T) {
	tn := newTestNet(t, 3)
	origin := tn.members[0].validator
	el := pipeline.NewElement(common.Timestamp(tn.clock.Now()), note(t, "quorum"))
	sh := el.ShortHash()

	env := signedEnvelope(t, origin, el, 1)
	set := pipeline.SignatureSet{}
	for _, i := range []int{1, 2} {
		v := tn.cores[i].ReceiveFromPeer([]pipeline.ObjToNode{env}, tn.viewOf(i, 0))
		require.NotNil(t, v)
		set[tn.members[i].peer.PubKeyHex] = v[sh]
	}
	blob, err := set.Marshal()
	require.NoError(t, err)

	receiver := tn.cores[1]

	// only the origin may announce the quorum
	assert.False(t, receiver.ReceiveQuorum(pipeline.TimestampVector{sh: blob}, tn.viewOf(1, 2)))
	assert.Equal(t, 1, receiver.StandbyLen())

	// a partial signer set is not the level-1 neighborhood of the origin
	partial := pipeline.SignatureSet{tn.members[1].peer.PubKeyHex: set[tn.members[1].peer.PubKeyHex]}
	partialBlob, err := partial.Marshal()
	require.NoError(t, err)
	assert.True(t, tn.cores[2].StandbyLen() == 1)
	assert.False(t, tn.cores[2].ReceiveQuorum(pipeline.TimestampVector{sh: partialBlob}, tn.viewOf(2, 0)))
	assert.Equal(t, 0, tn.cores[2].StandbyLen(), "a refused quorum consumes the standby entry")

	assert.True(t, receiver.ReceiveQuorum(pipeline.TimestampVector{sh: blob}, tn.viewOf(1, 0)))
	e, ok := tn.entry(1, el.Payload)
	require.True(t, ok)
	assert.Equal(t, "Finalized", e.State)

	// a repeated announcement finds the element already finalized
	before := receiver.Stats().Snapshot().Last12h.Rejected
	assert.True(t, receiver.ReceiveQuorum(pipeline.TimestampVector{sh: blob}, tn.viewOf(1, 0)))
	assert.Equal(t, before, receiver.Stats().Snapshot().Last12h.Rejected)

	// an unknown quorum is still refused
	other := pipeline.NewElement(el.Timestamp, note(t, "never certified"))
	assert.False(t, receiver.ReceiveQuorum(pipeline.TimestampVector{other.ShortHash(): blob}, tn.viewOf(1, 0)))
}

func TestReceiveEmptyQuorumVector(t *testing.T) {
	tn := newTestNet(t, 2)
	receiver := tn.cores[1]

	if !receiver.ReceiveQuorum(pipeline.TimestampVector{}, tn.viewOf(1, 0)) {
		t.Fatalf("an empty vector has no refused quorum")
	}
	assert.True(t, receiver.ReceiveQuorum(nil, tn.viewOf(1, 0)))

	stranger := peers.NewPeer(tn.members[0].peer.PubKeyHex, "10.9.9.9:1337", "stranger")
	assert.False(t, receiver.ReceiveQuorum(pipeline.TimestampVector{}, stranger))

	assert.Equal(t, uint64(0), receiver.Stats().Snapshot().Last12h.Rejected)
}

func TestQuorumAfterFinalizedCopy(t *testing.T) {
	tn := newTestNet(t, 3)
	el := pipeline.NewElement(common.Timestamp(tn.clock.Now()), note(t, "overtaken"))
	sh := el.ShortHash()

	env := signedEnvelope(t, tn.members[0].validator, el, 1)
	set := pipeline.SignatureSet{}
	for _, i := range []int{1, 2} {
		v := tn.cores[i].ReceiveFromPeer([]pipeline.ObjToNode{env}, tn.viewOf(i, 0))
		require.NotNil(t, v)
		set[tn.members[i].peer.PubKeyHex] = v[sh]
	}
	blob, err := set.Marshal()
	require.NoError(t, err)

	receiver := tn.cores[1]

	// node 2 forwards the finalized element before the origin announces
	receiver.ReceiveFromPeer([]pipeline.ObjToNode{pipeline.NewObjToNode(el, 2, blob)}, tn.viewOf(1, 2))
	assert.Equal(t, 0, receiver.StandbyLen())

	if !receiver.ReceiveQuorum(pipeline.TimestampVector{sh: blob}, tn.viewOf(1, 0)) {
		t.Fatalf("the late quorum of a finalized element must be accepted")
	}

	snap := receiver.Stats().Snapshot().Last12h
	assert.Equal(t, uint64(0), snap.Rejected)

	e, ok := tn.entry(1, el.Payload)
	require.True(t, ok)
	assert.Equal(t, "Finalized", e.State)
}

func TestFinalizedCopyNeedsCompleteQuorum(t *testing.T) {
	tn := newTestNet(t, 9)
	receiver := tn.cores[4]
	now := common.Timestamp(tn.clock.Now())

	// a member certifying its own element alone
	forged := pipeline.NewElement(now, note(t, "forged"))
	sig, err := tn.members[0].validator.Sign(forged.Hash())
	require.NoError(t, err)
	forgedBlob, err := pipeline.SignatureSet{tn.members[0].peer.PubKeyHex: sig}.Marshal()
	require.NoError(t, err)

	receiver.ReceiveFromPeer([]pipeline.ObjToNode{pipeline.NewObjToNode(forged, 2, forgedBlob)}, tn.viewOf(4, 0))

	if _, ok := tn.entry(4, forged.Payload); ok {
		t.Fatalf("an element signed by its sender alone must not enter the pipeline")
	}
	assert.Equal(t, uint64(1), receiver.Stats().Snapshot().Last12h.Rejected)

	// a partial neighborhood of member 0 is refused too
	partial := pipeline.SignatureSet{}
	for i := 1; i < 5; i++ {
		sig, err := tn.members[i].validator.Sign(forged.Hash())
		require.NoError(t, err)
		partial[tn.members[i].peer.PubKeyHex] = sig
	}
	partialBlob, err := partial.Marshal()
	require.NoError(t, err)

	receiver.ReceiveFromPeer([]pipeline.ObjToNode{pipeline.NewObjToNode(forged, 2, partialBlob)}, tn.viewOf(4, 1))
	_, ok := tn.entry(4, forged.Payload)
	assert.False(t, ok)
	assert.Equal(t, uint64(2), receiver.Stats().Snapshot().Last12h.Rejected)

	// every level-1 neighbor of member 0 co-signed
	legit := pipeline.NewElement(now, note(t, "certified"))
	full := pipeline.SignatureSet{}
	for i := 1; i < 9; i++ {
		sig, err := tn.members[i].validator.Sign(legit.Hash())
		require.NoError(t, err)
		full[tn.members[i].peer.PubKeyHex] = sig
	}
	fullBlob, err := full.Marshal()
	require.NoError(t, err)

	receiver.ReceiveFromPeer([]pipeline.ObjToNode{pipeline.NewObjToNode(legit, 2, fullBlob)}, tn.viewOf(4, 1))
	e, ok := tn.entry(4, legit.Payload)
	require.True(t, ok)
	assert.Equal(t, "Finalized", e.State)

	tn.clock.Increment(tn.conf.SyncWindow + time.Millisecond)
	receiver.Evict()

	d := tn.deliveries(4)
	require.Len(t, d, 1)
	assert.Equal(t, "certified", d[0].data)
}

func TestStaleQuorum(t *testing.T) {
	tn := newTestNet(t, 2)
	el := pipeline.NewElement(common.Timestamp(tn.clock.Now()), note(t, "stale"))
	sh := el.ShortHash()

	v := tn.cores[1].ReceiveFromPeer([]pipeline.ObjToNode{signedEnvelope(t, tn.members[0].validator, el, 1)}, tn.viewOf(1, 0))
	require.NotNil(t, v)

	blob, err := pipeline.SignatureSet{tn.members[1].peer.PubKeyHex: v[sh]}.Marshal()
	require.NoError(t, err)

	tn.clock.Increment(tn.conf.SignatureTimeout)
	assert.False(t, tn.cores[1].ReceiveQuorum(pipeline.TimestampVector{sh: blob}, tn.viewOf(1, 0)))
	assert.Equal(t, uint64(1), tn.cores[1].Stats().Snapshot().Last12h.OutOfTime)
	assert.Empty(t, tn.cores[1].GetPending())
}

func TestIdempotentReception(t *testing.T) {
	tn := newTestNet(t, 3)
	el := pipeline.NewElement(common.Timestamp(tn.clock.Now()), note(t, "flood"))

	set := pipeline.SignatureSet{}
	for _, i := range []int{1, 2} {
		sig, err := tn.members[i].validator.Sign(el.Hash())
		require.NoError(t, err)
		set[tn.members[i].peer.PubKeyHex] = sig
	}
	blob, err := set.Marshal()
	require.NoError(t, err)

	env := pipeline.NewObjToNode(el, 2, blob)

	receiver := tn.cores[0]
	receiver.ReceiveFromPeer([]pipeline.ObjToNode{env}, tn.viewOf(0, 1))
	receiver.ReceiveFromPeer([]pipeline.ObjToNode{env}, tn.viewOf(0, 2))
	receiver.ReceiveFromPeer([]pipeline.ObjToNode{env}, tn.viewOf(0, 1))

	pending := receiver.GetPending()
	require.Len(t, pending, 1)
	assert.Equal(t, 3, pending[0].Received)
	assert.Equal(t, 2, pending[0].Seen)
	assert.Equal(t, []int{2}, pending[0].Levels)

	// an unknown signer spoils the whole set
	stranger, err := keys.GenerateECDSAKey()
	require.NoError(t, err)
	forged := pipeline.SignatureSet{keys.PublicKeyHex(&stranger.PublicKey): set[tn.members[1].peer.PubKeyHex]}
	forgedBlob, err := forged.Marshal()
	require.NoError(t, err)

	other := pipeline.NewElement(el.Timestamp, note(t, "forged"))
	receiver.ReceiveFromPeer([]pipeline.ObjToNode{pipeline.NewObjToNode(other, 2, forgedBlob)}, tn.viewOf(0, 1))
	assert.Len(t, receiver.GetPending(), 1)
	assert.Equal(t, uint64(1), receiver.Stats().Snapshot().Last12h.Rejected)
}

func TestEvictionOrderAndUndeliverable(t *testing.T) {
	tn := newTestNet(t, 1)
	c := tn.cores[0]

	unknown, err := proxy.NewObject("unknown", []byte("x"))
	require.NoError(t, err)

	for _, data := range []string{"one", "two"} {
		require.True(t, c.InsertLocal(note(t, data)))
		c.Spool()
		tn.clock.Increment(time.Millisecond)
	}
	require.True(t, c.InsertLocal(unknown))
	c.Spool()

	// an entry still waiting for its timestamp is never evicted by age
	require.True(t, c.InsertLocal(note(t, "late")))

	tn.clock.Increment(tn.conf.SyncWindow + time.Millisecond)
	assert.Equal(t, 3, c.Evict())

	d := tn.deliveries(0)
	require.Len(t, d, 2)
	assert.Equal(t, "one", d[0].data)
	assert.Equal(t, "two", d[1].data)

	snap := c.Stats().Snapshot().Last12h
	assert.Equal(t, uint64(2), snap.Delivered)
	assert.Equal(t, uint64(1), snap.Undeliverable)
	assert.Equal(t, 2, tn.stores[0].LastIndex(), "undeliverable objects are archived too")

	pending := c.GetPending()
	require.Len(t, pending, 1)
	assert.Equal(t, int64(0), pending[0].Timestamp)
}

func TestEvictionSurvivesPanickingHandler(t *testing.T) {
	tn := newTestNet(t, 1)
	c := tn.cores[0]

	require.NoError(t, c.RegisterDeliveryHandler("boom", func([]byte, int64) {
		panic("handler failure")
	}))

	boom, err := proxy.NewObject("boom", []byte("x"))
	require.NoError(t, err)

	require.True(t, c.InsertLocal(boom))
	c.Spool()
	tn.clock.Increment(time.Millisecond)
	require.True(t, c.InsertLocal(note(t, "after")))
	c.Spool()

	tn.clock.Increment(tn.conf.SyncWindow + time.Millisecond)

	delivered := 0
	require.NotPanics(t, func() {
		delivered = c.Evict()
	})
	assert.Equal(t, 2, delivered)

	d := tn.deliveries(0)
	if len(d) != 1 || d[0].data != "after" {
		t.Fatalf("the entry behind a panicking handler must still be delivered, got %v", d)
	}

	snap := c.Stats().Snapshot().Last12h
	assert.Equal(t, uint64(1), snap.Delivered)
	assert.Equal(t, uint64(1), snap.Undeliverable)
	assert.Equal(t, 1, tn.stores[0].LastIndex())
	assert.Empty(t, c.GetPending())
}

func TestRetract(t *testing.T) {
	tn := newTestNet(t, 2)
	payload := note(t, "oops")

	require.True(t, tn.cores[0].InsertLocal(payload))
	require.Len(t, tn.cores[0].Spool(), 1)

	assert.True(t, tn.cores[0].Retract(payload))
	assert.Empty(t, tn.cores[0].GetPending())
	assert.False(t, tn.cores[0].Retract(payload))
}

func TestTransmissionPause(t *testing.T) {
	tn := newTestNet(t, 2)
	tn.conf.TransmissionPause = time.Second
	c := tn.cores[0]

	require.True(t, c.InsertLocal(note(t, "a")))
	require.Len(t, c.Spool(), 1)

	require.True(t, c.InsertLocal(note(t, "b")))
	assert.Empty(t, c.Spool(), "level 1 is paused")

	tn.clock.Increment(time.Second)
	assert.Len(t, c.Spool(), 1)
}

func TestDuplicateHandler(t *testing.T) {
	tn := newTestNet(t, 1)
	err := tn.cores[0].RegisterDeliveryHandler(noteType, func([]byte, int64) {})
	assert.Error(t, err)
}
