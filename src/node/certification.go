package node

import (
	"github.com/mosaicnetworks/chronicle/src/common"
	"github.com/mosaicnetworks/chronicle/src/crypto/keys"
	"github.com/mosaicnetworks/chronicle/src/peers"
	"github.com/mosaicnetworks/chronicle/src/pipeline"
	"github.com/mosaicnetworks/chronicle/src/topology"
	"github.com/sirupsen/logrus"
)

// Completion is a quorum this node collected for one of its elements. The
// signature set must be announced to every signer.
type Completion struct {
	Element    pipeline.Element
	Signers    []*peers.Peer
	Signatures []byte
}

// ReceiveFromPeer processes a batch of envelopes sent by from. Level-1
// envelopes are certification requests: each valid one is co-signed and held
// in standby, and the co-signatures are returned by short hash. Envelopes of
// higher levels carry finalized elements and are merged into the pipeline.
// The result is nil when nothing was co-signed.
func (c *Core) ReceiveFromPeer(envelopes []pipeline.ObjToNode, from *peers.Peer) pipeline.TimestampVector {
	if from == nil || !c.registry.Contains(from) {
		for _, env := range envelopes {
			c.reject(common.NewRejection(common.UnknownSender, shortKey(env.ShortHash)), from)
		}
		return nil
	}

	vector := make(pipeline.TimestampVector)

	for _, env := range envelopes {
		c.stats.Received()

		el := env.Element()
		key := shortKey(env.ShortHash)

		if el.Unset() {
			c.reject(common.NewRejection(common.UnsetTimestamp, key), from)
			continue
		}
		if el.ShortHash() != env.ShortHash {
			c.reject(common.NewRejection(common.Malformed, key), from)
			continue
		}

		if env.Level <= 1 {
			sig, err := c.certify(el, env.Signature, from)
			if err != nil {
				c.reject(err, from)
				continue
			}
			vector[env.ShortHash] = sig
			continue
		}

		if err := c.accept(el, env.Level, env.Signature, from); err != nil {
			c.reject(err, from)
		}
	}

	if len(vector) == 0 {
		return nil
	}
	return vector
}

// checkTime refuses elements from the future and elements older than the sync
// window.
func (c *Core) checkTime(el pipeline.Element, now int64) error {
	if el.Timestamp > now+c.conf.margin() {
		return common.NewRejection(common.OutOfTime, shortKey(el.ShortHash()))
	}
	if el.Timestamp < now-c.conf.syncWindow() {
		return common.NewRejection(common.OutOfTime, shortKey(el.ShortHash()))
	}
	return nil
}

// certify co-signs a level-1 element and puts it in standby.
func (c *Core) certify(el pipeline.Element, selfSignature []byte, from *peers.Peer) ([]byte, error) {
	now := c.now()
	sh := el.ShortHash()
	key := shortKey(sh)

	if err := c.checkTime(el, now); err != nil {
		return nil, err
	}
	if el.Timestamp < now-(c.conf.maxTransmit()+c.conf.margin()) {
		return nil, common.NewRejection(common.OutOfTime, key)
	}

	origin, ok := c.registry.ByIP(from.IP)
	if !ok || origin.PublicKey() == nil {
		return nil, common.NewRejection(common.UnknownSender, key)
	}
	if !keys.Verify(origin.PublicKey(), el.Hash(), selfSignature) {
		return nil, common.NewRejection(common.ForgedSelfCertification, key)
	}

	if held, ok := c.standby.Get(sh); ok {
		// a retransmission gets the same co-signature
		if held.Element.Compare(el) == 0 && held.Origin.Equal(origin) {
			return held.Signature, nil
		}
		return nil, common.NewRejection(common.Malformed, key)
	}

	sig, err := c.validator.Sign(el.Hash())
	if err != nil {
		return nil, err
	}

	c.standby.AddIfAbsent(&pipeline.StandbyEntry{
		Element:    el,
		Signature:  sig,
		ShortHash:  sh,
		Origin:     origin,
		ReceivedAt: now,
	})

	c.logger.WithFields(logrus.Fields{
		"short_hash": sh,
		"origin":     origin.String(),
		"age":        now - el.Timestamp,
	}).Debug("Certified")

	return sig, nil
}

// accept merges a finalized element received at level into the pipeline.
func (c *Core) accept(el pipeline.Element, level int, blob []byte, from *peers.Peer) error {
	now := c.now()

	if err := c.checkTime(el, now); err != nil {
		return err
	}

	signers, err := c.verifySignatureSet(el, blob)
	if err != nil {
		return err
	}
	if !c.quorumOfSomeOrigin(signers) {
		return common.NewRejection(common.SignerSetMismatch, shortKey(el.ShortHash()))
	}

	next := level + 1
	if top := topology.MaxLevel(c.registry.Len()); next > top {
		next = top
	}

	if c.pipeline.Receive(el, next, from, blob) {
		c.stats.Latency(now - el.Timestamp)
	}

	// a finalized copy overtook the quorum of an element co-signed here
	if held, ok := c.standby.Get(el.ShortHash()); ok && held.Element.Compare(el) == 0 {
		c.standby.Take(el.ShortHash())
	}

	return nil
}

// quorumOfSomeOrigin reports whether signers is the complete level-1
// neighborhood of a current or recent member outside the set.
func (c *Core) quorumOfSomeOrigin(signers []*peers.Peer) bool {
	for _, origin := range c.registry.CurrentAndRecentNodes() {
		if peers.IndexOf(signers, origin) >= 0 {
			continue
		}
		if c.mapper.ValidateConnectionAtLevel0(origin, signers) {
			return true
		}
	}
	return false
}

// verifySignatureSet decodes a joint signature set and checks every signature
// against the key of a current or recent member. It returns the signers.
func (c *Core) verifySignatureSet(el pipeline.Element, blob []byte) ([]*peers.Peer, error) {
	key := shortKey(el.ShortHash())

	set, err := pipeline.UnmarshalSignatureSet(blob)
	if err != nil {
		return nil, common.NewRejection(common.Malformed, key)
	}
	if len(set) == 0 {
		return nil, common.NewRejection(common.SignerSetMismatch, key)
	}

	known := make(map[string]*peers.Peer)
	for _, p := range c.registry.CurrentAndRecentNodes() {
		known[p.PubKeyHex] = p
	}

	hash := el.Hash()
	signers := make([]*peers.Peer, 0, len(set))
	for _, hex := range set.Signers() {
		p, ok := known[common.NormalizeHex(hex)]
		if !ok || p.PublicKey() == nil {
			return nil, common.NewRejection(common.UnknownSigner, key)
		}
		if !keys.Verify(p.PublicKey(), hash, set[hex]) {
			return nil, common.NewRejection(common.BadSignature, key)
		}
		signers = append(signers, p)
	}

	return signers, nil
}

// ProcessSignatures records the co-signatures returned by a level-1 neighbor.
// It returns the quorums this completed; their elements are now finalized.
func (c *Core) ProcessSignatures(from *peers.Peer, vector pipeline.TimestampVector) []*Completion {
	res := []*Completion{}

	for sh, sig := range vector {
		coll, ok := c.quorums.Get(sh)
		if !ok {
			c.logger.WithField("short_hash", sh).Debug("Signature for no open collection")
			continue
		}

		if from.PublicKey() == nil || !keys.Verify(from.PublicKey(), coll.Element.Hash(), sig) {
			c.reject(common.NewRejection(common.BadSignature, shortKey(sh)), from)
			continue
		}

		done, err := c.quorums.Add(sh, from, sig)
		if err != nil {
			c.reject(common.NewRejection(common.SignerSetMismatch, shortKey(sh)), from)
			continue
		}
		if done == nil {
			continue
		}

		blob, err := done.Signatures.Marshal()
		if err != nil {
			c.logger.WithError(err).Error("Encoding signature set")
			continue
		}

		if !c.pipeline.Finalize(done.Element, blob) {
			// retracted in the meantime
			continue
		}

		c.logger.WithFields(logrus.Fields{
			"short_hash": sh,
			"signers":    len(done.Expected),
		}).Debug("Quorum complete")

		res = append(res, &Completion{
			Element:    done.Element,
			Signers:    done.Expected,
			Signatures: blob,
		})
	}

	return res
}

// ReceiveQuorum finalizes elements co-signed here, using the signature sets
// collected by their origin. It reports whether every quorum of the vector
// was accepted, so an empty vector is accepted.
func (c *Core) ReceiveQuorum(vector pipeline.TimestampVector, from *peers.Peer) bool {
	if from == nil || !c.registry.Contains(from) {
		for sh := range vector {
			c.reject(common.NewRejection(common.UnknownSender, shortKey(sh)), from)
		}
		return false
	}

	accepted := true
	for sh, blob := range vector {
		if err := c.finalize(sh, blob, from); err != nil {
			c.reject(err, from)
			accepted = false
		}
	}
	return accepted
}

func (c *Core) finalize(sh int32, blob []byte, from *peers.Peer) error {
	key := shortKey(sh)

	held, ok := c.standby.Get(sh)
	if !ok {
		if c.pipeline.HasFinalized(sh) {
			// a finalized copy arrived first
			return nil
		}
		return common.NewRejection(common.NoStandby, key)
	}
	if !held.Origin.Equal(from) {
		return common.NewRejection(common.WrongOrigin, key)
	}
	c.standby.Take(sh)

	now := c.now()
	if held.Element.Timestamp <= now-c.conf.signatureTimeout() {
		return common.NewRejection(common.StaleQuorum, key)
	}

	signers, err := c.verifySignatureSet(held.Element, blob)
	if err != nil {
		return err
	}

	if !c.mapper.ValidateConnectionAtLevel0(held.Origin, signers) {
		return common.NewRejection(common.SignerSetMismatch, key)
	}

	if c.pipeline.Receive(held.Element, 2, held.Origin, blob) {
		c.stats.Latency(now - held.Element.Timestamp)
	}

	c.logger.WithFields(logrus.Fields{
		"short_hash": sh,
		"origin":     held.Origin.String(),
	}).Debug("Finalized")

	return nil
}

// ExpireQuorums abandons the collections that did not complete within the
// signature timeout. Their elements go back to Unsigned and get a fresh
// timestamp at the next spool, until they run out of attempts.
func (c *Core) ExpireQuorums() {
	cutoff := c.now() - c.conf.signatureTimeout()

	for _, coll := range c.quorums.PopExpired(cutoff) {
		attempts := c.pipeline.Reset(coll.Element)
		if attempts < 0 {
			continue
		}

		fields := logrus.Fields{
			"short_hash": coll.Element.ShortHash(),
			"attempts":   attempts,
		}

		if attempts >= c.conf.MaxCertificationAttempts {
			c.pipeline.Remove(pipeline.NewElement(0, coll.Element.Payload))
			c.stats.Rejected(common.StaleQuorum)
			c.logger.WithFields(fields).Warn("Certification abandoned")
			continue
		}

		c.logger.WithFields(fields).Debug("Certification timed out")
	}
}
