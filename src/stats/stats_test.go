package stats

import (
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/mosaicnetworks/chronicle/src/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestStatsRollover(t *testing.T) {
	clk := fakeclock.NewFakeClock(time.Unix(1600000000, 0))
	registry := prometheus.NewRegistry()
	s := NewStats(clk, registry)

	s.Received()
	s.Received()
	s.OutOfTime()
	s.Latency(300)

	clk.Increment(DefaultRollover)
	s.Rollover()

	s.Received()
	s.Rejected(common.BadSignature)
	s.Delivered()
	s.Latency(100)

	snap := s.Snapshot()
	assert.Equal(t, uint64(1), snap.Last12h.Received)
	assert.Equal(t, uint64(0), snap.Last12h.OutOfTime)
	assert.Equal(t, int64(100), snap.Last12h.MaxLatency)

	assert.Equal(t, uint64(3), snap.Last24h.Received)
	assert.Equal(t, uint64(1), snap.Last24h.OutOfTime)
	assert.Equal(t, uint64(1), snap.Last24h.Rejected)
	assert.Equal(t, uint64(1), snap.Last24h.Delivered)
	assert.Equal(t, int64(300), snap.Last24h.MaxLatency)
	assert.Equal(t, common.Timestamp(clk.Now()), snap.PeriodFrom)

	clk.Increment(DefaultRollover)
	s.Rollover()
	snap = s.Snapshot()
	assert.Equal(t, uint64(0), snap.Last12h.Received)
	assert.Equal(t, uint64(1), snap.Last24h.Received)

	// prometheus counters are monotonic
	assert.Equal(t, float64(3), testutil.ToFloat64(s.metrics.received))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.rejected.WithLabelValues("Bad Signature")))
}

func TestStatsWithoutRegistry(t *testing.T) {
	// two instances must not collide when nothing is registered
	a := NewStats(nil, nil)
	b := NewStats(nil, nil)

	a.Members(3)
	b.Pending(1, 2)
	a.Undeliverable()

	assert.Equal(t, uint64(1), a.Snapshot().Last12h.Undeliverable)
	assert.Equal(t, float64(3), testutil.ToFloat64(a.metrics.members))
}
