package stats

import (
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/mosaicnetworks/chronicle/src/common"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultRollover is the length of one statistics period.
const DefaultRollover = 12 * time.Hour

// Counters are the totals of one statistics period.
type Counters struct {
	Received      uint64
	OutOfTime     uint64
	Rejected      uint64
	Delivered     uint64
	Undeliverable uint64
	MaxLatency    int64 // milliseconds
}

func (c *Counters) add(o Counters) {
	c.Received += o.Received
	c.OutOfTime += o.OutOfTime
	c.Rejected += o.Rejected
	c.Delivered += o.Delivered
	c.Undeliverable += o.Undeliverable
	if o.MaxLatency > c.MaxLatency {
		c.MaxLatency = o.MaxLatency
	}
}

// Snapshot is a read-only view of the statistics over the last one and two
// periods. With the default rollover, they cover 12h and 24h.
type Snapshot struct {
	Last12h    Counters
	Last24h    Counters
	PeriodFrom int64
}

// Stats keeps the counters of the current and previous periods and mirrors
// every increment into prometheus collectors.
type Stats struct {
	l        sync.Mutex
	current  Counters
	previous Counters
	from     time.Time

	clock   clock.Clock
	metrics *metrics
}

// NewStats creates a Stats. If registry is nil the counters are not exported.
func NewStats(clk clock.Clock, registry prometheus.Registerer) *Stats {
	if clk == nil {
		clk = clock.NewClock()
	}
	return &Stats{
		from:    clk.Now(),
		clock:   clk,
		metrics: newMetrics(registry),
	}
}

// Received counts an element received from a peer.
func (s *Stats) Received() {
	s.l.Lock()
	s.current.Received++
	s.l.Unlock()

	s.metrics.received.Inc()
}

// OutOfTime counts an element rejected for its timestamp.
func (s *Stats) OutOfTime() {
	s.l.Lock()
	s.current.OutOfTime++
	s.l.Unlock()

	s.metrics.outOfTime.Inc()
}

// Rejected counts an element or quorum dropped by a protocol check.
func (s *Stats) Rejected(reason common.RejectReason) {
	s.l.Lock()
	s.current.Rejected++
	s.l.Unlock()

	s.metrics.rejected.WithLabelValues(reason.String()).Inc()
}

// Delivered counts an element handed to the application.
func (s *Stats) Delivered() {
	s.l.Lock()
	s.current.Delivered++
	s.l.Unlock()

	s.metrics.delivered.Inc()
}

// Undeliverable counts a finalized element with no handler for its type.
func (s *Stats) Undeliverable() {
	s.l.Lock()
	s.current.Undeliverable++
	s.l.Unlock()

	s.metrics.undeliverable.Inc()
}

// Latency records the delay between an element's timestamp and its arrival.
func (s *Stats) Latency(ms int64) {
	s.l.Lock()
	if ms > s.current.MaxLatency {
		s.current.MaxLatency = ms
	}
	s.l.Unlock()

	s.metrics.latency.Observe(float64(ms) / 1000)
}

// Rollover starts a new period.
func (s *Stats) Rollover() {
	s.l.Lock()
	defer s.l.Unlock()

	s.previous = s.current
	s.current = Counters{}
	s.from = s.clock.Now()
}

// Snapshot returns the current statistics.
func (s *Stats) Snapshot() Snapshot {
	s.l.Lock()
	defer s.l.Unlock()

	day := s.previous
	day.add(s.current)

	return Snapshot{
		Last12h:    s.current,
		Last24h:    day,
		PeriodFrom: common.Timestamp(s.from),
	}
}

// Members updates the membership gauge.
func (s *Stats) Members(count int) {
	s.metrics.members.Set(float64(count))
}

// Pending updates the pipeline and standby gauges.
func (s *Stats) Pending(pipeline, standby int) {
	s.metrics.pipeline.Set(float64(pipeline))
	s.metrics.standby.Set(float64(standby))
}
