package node

import (
	"testing"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/mosaicnetworks/chronicle/src/common"
	"github.com/sirupsen/logrus"
)

// Config holds the timings and limits of the dissemination protocol.
type Config struct {
	// SpoolInterval is the period of the spooler.
	SpoolInterval time.Duration

	// EvictionInterval is the period of the eviction scheduler.
	EvictionInterval time.Duration

	// MembershipInterval is the period at which due membership transitions
	// are applied.
	MembershipInterval time.Duration

	// SyncWindow is the time an element stays in the pipeline before it is
	// delivered. Older elements are refused.
	SyncWindow time.Duration

	// SignatureTimeout bounds the time between the timestamp of an element
	// and its quorum.
	SignatureTimeout time.Duration

	// TimestampMargin is the tolerated clock skew.
	TimestampMargin time.Duration

	// MaxTransmitTime bounds the age of an element at its first hop.
	MaxTransmitTime time.Duration

	// TransmissionPause is the minimum time between two spools of a level.
	TransmissionPause time.Duration

	// MaxRetries is the number of attempts of a request before the node goes
	// offline.
	MaxRetries int

	// MaxCertificationAttempts is the number of certification rounds of a
	// local element before it is dropped.
	MaxCertificationAttempts int

	// StatsRollover is the length of a statistics period.
	StatsRollover time.Duration

	Clock  clock.Clock
	Logger *logrus.Entry
}

// DefaultConfig returns the protocol defaults.
func DefaultConfig() *Config {
	logger := logrus.New()
	logger.Level = logrus.DebugLevel

	return &Config{
		SpoolInterval:            2 * time.Second,
		EvictionInterval:         1 * time.Second,
		MembershipInterval:       1 * time.Second,
		SyncWindow:               60 * time.Second,
		SignatureTimeout:         15 * time.Second,
		TimestampMargin:          2 * time.Second,
		MaxTransmitTime:          5 * time.Second,
		TransmissionPause:        0,
		MaxRetries:               10,
		MaxCertificationAttempts: 3,
		StatsRollover:            12 * time.Hour,
		Clock:                    clock.NewClock(),
		Logger:                   logrus.NewEntry(logger),
	}
}

// TestConfig returns the defaults with a test logger and the given clock.
func TestConfig(t testing.TB, clk clock.Clock) *Config {
	config := DefaultConfig()
	config.Logger = common.NewTestEntry(t, logrus.DebugLevel)
	if clk != nil {
		config.Clock = clk
	}
	return config
}

func (c *Config) syncWindow() int64 {
	return common.Millis(c.SyncWindow)
}

func (c *Config) signatureTimeout() int64 {
	return common.Millis(c.SignatureTimeout)
}

func (c *Config) margin() int64 {
	return common.Millis(c.TimestampMargin)
}

func (c *Config) maxTransmit() int64 {
	return common.Millis(c.MaxTransmitTime)
}
