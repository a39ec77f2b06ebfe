package node

import (
	"github.com/mosaicnetworks/chronicle/src/peers"
	"github.com/mosaicnetworks/chronicle/src/pipeline"
	"github.com/sirupsen/logrus"
)

// Outbound is a batch of envelopes the node must send to one neighbor.
// Replies to Certify batches carry co-signatures.
type Outbound struct {
	*pipeline.Batch
	Level   int
	Certify bool
}

// Spool packages, level by level, the entries that were not yet exchanged
// with the neighbors of that level. Level-1 entries are stamped and
// self-certified on their first send, which opens their quorum collection.
// A level is skipped while its transmission pause runs.
func (c *Core) Spool() []*Outbound {
	now := c.clock.Now()

	// the only member certifies alone
	alone := c.registry.Len() == 1 && c.registry.Contains(c.self)

	res := []*Outbound{}
	for _, level := range c.pipeline.Levels() {
		c.spoolLock.Lock()
		last, ok := c.lastSpool[level]
		c.spoolLock.Unlock()
		if ok && now.Sub(last) < c.conf.TransmissionPause {
			continue
		}

		neighbors := c.mapper.Connections(level)

		var prepare pipeline.Prepare
		if level == 1 {
			prepare = func(e *pipeline.Entry, neighbors []*peers.Peer) ([]byte, bool) {
				return c.stamp(e, neighbors, alone)
			}
		} else {
			prepare = forwardFinalized
		}

		batches := c.pipeline.Collect(level, neighbors, prepare)
		if len(batches) == 0 {
			continue
		}

		c.spoolLock.Lock()
		c.lastSpool[level] = now
		c.spoolLock.Unlock()

		for _, b := range batches {
			res = append(res, &Outbound{
				Batch:   b,
				Level:   level,
				Certify: level == 1,
			})
		}

		c.logger.WithFields(logrus.Fields{
			"level":   level,
			"batches": len(batches),
		}).Debug("Spool")
	}

	return res
}

// stamp assigns a timestamp to an unsigned entry, signs it and opens its
// quorum collection. It runs under the pipeline lock.
func (c *Core) stamp(e *pipeline.Entry, neighbors []*peers.Peer, alone bool) ([]byte, bool) {
	if e.State != pipeline.Unsigned {
		return nil, false
	}

	if len(neighbors) == 0 && !alone {
		// not an active member yet
		return nil, false
	}

	e.Timestamp = c.now()
	sig, err := c.validator.Sign(e.Hash())
	if err != nil {
		c.logger.WithError(err).Error("Signing element")
		e.Timestamp = 0
		return nil, false
	}
	e.Attempts++

	if len(neighbors) == 0 {
		blob, err := pipeline.SignatureSet{}.Marshal()
		if err != nil {
			c.logger.WithError(err).Error("Encoding signature set")
			return nil, false
		}
		e.State = pipeline.Finalized
		e.Signatures = blob
		return nil, false
	}

	e.State = pipeline.AwaitingQuorum
	c.quorums.Open(e.Element, neighbors, e.Timestamp)

	return sig, true
}

// forwardFinalized lets finalized entries through with their signature set.
func forwardFinalized(e *pipeline.Entry, neighbors []*peers.Peer) ([]byte, bool) {
	if e.State != pipeline.Finalized {
		return nil, false
	}
	return e.Signatures, true
}
