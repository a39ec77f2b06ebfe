package node

import (
	"github.com/mosaicnetworks/chronicle/src/common"
	"github.com/mosaicnetworks/chronicle/src/pipeline"
	"github.com/mosaicnetworks/chronicle/src/proxy"
	"github.com/mosaicnetworks/chronicle/src/store"
	"github.com/sirupsen/logrus"
)

// Evict pops, in order, the entries that left the sync window. Finalized
// entries are delivered to the application and archived; the others never
// completed certification and are dropped. Standby entries whose quorum can
// no longer arrive in time are dropped too. It returns the number of
// delivered entries.
func (c *Core) Evict() int {
	now := c.now()

	delivered := 0
	for _, e := range c.pipeline.PopExpired(now - c.conf.syncWindow()) {
		if e.State != pipeline.Finalized {
			c.logger.WithFields(logrus.Fields{
				"short_hash": e.ShortHash(),
				"state":      e.State.String(),
			}).Debug("Evicted uncertified")
			c.stats.Rejected(common.StaleQuorum)
			continue
		}
		c.deliver(e, now)
		delivered++
	}

	for _, s := range c.standby.PopExpired(now - c.conf.signatureTimeout()) {
		c.logger.WithField("short_hash", s.ShortHash).Debug("Standby expired")
		c.stats.OutOfTime()
	}

	c.stats.Pending(c.pipeline.Len(), c.standby.Len())

	return delivered
}

func (c *Core) deliver(e *pipeline.Entry, now int64) {
	err := c.proxy.Deliver(e.Payload, e.Timestamp)
	switch err.(type) {
	case nil:
		c.stats.Delivered()
	case proxy.ErrNoHandler:
		c.stats.Undeliverable()
	default:
		c.logger.WithError(err).Error("Delivering object")
		c.stats.Undeliverable()
	}

	if c.store == nil {
		return
	}

	index, err := c.store.Append(&store.Delivered{
		Timestamp:   e.Timestamp,
		Payload:     e.Payload,
		Signatures:  e.Signatures,
		DeliveredAt: now,
	})
	if err != nil {
		c.logger.WithError(err).Error("Archiving object")
		return
	}

	c.logger.WithFields(logrus.Fields{
		"index":     index,
		"timestamp": e.Timestamp,
	}).Debug("Delivered")
}
