package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/go-playground/validator/v10"
	"github.com/mosaicnetworks/chronicle/src/common"
	"github.com/pkg/errors"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the node's
	// private key.
	DefaultKeyfile = "priv_key"

	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database.
	DefaultBadgerFile = "badger_db"
)

// Default configuration values.
const (
	DefaultLogLevel          = "debug"
	DefaultBindAddr          = "127.0.0.1:1337"
	DefaultServiceAddr       = "127.0.0.1:8000"
	DefaultTCPTimeout        = 1000 * time.Millisecond
	DefaultJoinTimeout       = 10000 * time.Millisecond
	DefaultMaxPool           = 2
	DefaultStore             = false
	DefaultCacheSize         = 10000
	DefaultSpoolInterval     = 2 * time.Second
	DefaultEvictionInterval  = 1 * time.Second
	DefaultMembershipPoll    = 1 * time.Second
	DefaultSyncWindow        = 60 * time.Second
	DefaultSignatureTimeout  = 15 * time.Second
	DefaultTimestampMargin   = 2 * time.Second
	DefaultMaxTransmitTime   = 5 * time.Second
	DefaultTransmissionPause = 0
	DefaultJoinGrace         = 30 * time.Second
	DefaultLeaveGrace        = 60 * time.Second
	DefaultMaxRetries        = 10
	DefaultStatsRollover     = 12 * time.Hour
	DefaultMaxCertification  = 3
)

// Config contains all the configuration properties of a chronicle node.
type Config struct {
	// DataDir is the top-level directory containing chronicle configuration
	// and data.
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log" validate:"oneof=debug info warn error fatal panic"`

	// LogFile, when set, receives a copy of every log entry.
	LogFile string `mapstructure:"log-file"`

	// BindAddr is the local address:port where this node talks to other
	// nodes.
	BindAddr string `mapstructure:"listen" validate:"required,hostname_port"`

	// AdvertiseAddr is used to change the address that we advertise to other
	// nodes. The advertised address decides the position of the node in the
	// topology.
	AdvertiseAddr string `mapstructure:"advertise" validate:"omitempty,hostname_port"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service.
	ServiceAddr string `mapstructure:"service-listen" validate:"omitempty,hostname_port"`

	// MaxPool controls how many connections are pooled per target.
	MaxPool int `mapstructure:"max-pool" validate:"gte=0"`

	// TCPTimeout is the timeout of RPC connections.
	TCPTimeout time.Duration `mapstructure:"timeout" validate:"gt=0"`

	// JoinTimeout is the timeout of Join and Members requests.
	JoinTimeout time.Duration `mapstructure:"join-timeout" validate:"gt=0"`

	// Store activates persistent storage of delivered objects.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// CacheSize is the max number of items in in-memory caches.
	CacheSize int `mapstructure:"cache-size" validate:"gt=0"`

	// Moniker defines the friendly name of this node.
	Moniker string `mapstructure:"moniker"`

	// SpoolInterval is the period of the dissemination scheduler.
	SpoolInterval time.Duration `mapstructure:"spool-interval" validate:"gt=0"`

	// EvictionInterval is the period of the eviction scheduler.
	EvictionInterval time.Duration `mapstructure:"eviction-interval" validate:"gt=0"`

	// MembershipInterval is the period at which due membership transitions
	// are applied.
	MembershipInterval time.Duration `mapstructure:"membership-interval" validate:"gt=0"`

	// SyncWindow is the time an element spends in the pipeline before it is
	// delivered, and the maximum age of an element a node accepts.
	SyncWindow time.Duration `mapstructure:"sync-window" validate:"gtfield=SignatureTimeout"`

	// SignatureTimeout bounds the time between the timestamp of an element
	// and the arrival of its quorum.
	SignatureTimeout time.Duration `mapstructure:"signature-timeout" validate:"gt=0"`

	// TimestampMargin is the tolerated clock skew between nodes.
	TimestampMargin time.Duration `mapstructure:"timestamp-margin" validate:"gte=0"`

	// MaxTransmitTime is the expected upper bound of a first-hop delivery.
	MaxTransmitTime time.Duration `mapstructure:"max-transmit" validate:"gte=0"`

	// TransmissionPause is the minimum time between two transmissions at the
	// same level.
	TransmissionPause time.Duration `mapstructure:"transmission-pause" validate:"gte=0"`

	// JoinGrace is the delay between the announcement of a new member and its
	// activation.
	JoinGrace time.Duration `mapstructure:"join-grace" validate:"gte=0"`

	// LeaveGrace is the time a departed member stays visible to topology
	// validation.
	LeaveGrace time.Duration `mapstructure:"leave-grace" validate:"gte=0"`

	// MaxRetries is the number of attempts of a request before the node
	// considers itself offline.
	MaxRetries int `mapstructure:"max-retries" validate:"gt=0"`

	// MaxCertificationAttempts is the number of times an element is stamped
	// and sent for co-signature before it is dropped.
	MaxCertificationAttempts int `mapstructure:"max-certification" validate:"gt=0"`

	// StatsRollover is the length of a statistics period.
	StatsRollover time.Duration `mapstructure:"stats-rollover" validate:"gt=0"`

	// Clock is the time source of the node. Tests replace it with a fake.
	Clock clock.Clock `mapstructure:"-"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:                  DefaultDataDir(),
		LogLevel:                 DefaultLogLevel,
		BindAddr:                 DefaultBindAddr,
		ServiceAddr:              DefaultServiceAddr,
		TCPTimeout:               DefaultTCPTimeout,
		JoinTimeout:              DefaultJoinTimeout,
		MaxPool:                  DefaultMaxPool,
		Store:                    DefaultStore,
		DatabaseDir:              DefaultDatabaseDir(),
		CacheSize:                DefaultCacheSize,
		SpoolInterval:            DefaultSpoolInterval,
		EvictionInterval:         DefaultEvictionInterval,
		MembershipInterval:       DefaultMembershipPoll,
		SyncWindow:               DefaultSyncWindow,
		SignatureTimeout:         DefaultSignatureTimeout,
		TimestampMargin:          DefaultTimestampMargin,
		MaxTransmitTime:          DefaultMaxTransmitTime,
		TransmissionPause:        DefaultTransmissionPause,
		JoinGrace:                DefaultJoinGrace,
		LeaveGrace:               DefaultLeaveGrace,
		MaxRetries:               DefaultMaxRetries,
		MaxCertificationAttempts: DefaultMaxCertification,
		StatsRollover:            DefaultStatsRollover,
		Clock:                    clock.NewClock(),
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level chronicle directory, and updates the database
// directory if it is currently set to the default value.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Keyfile returns the full path of the file containing the private key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}

// Logger returns a formatted logrus Entry, with prefix set to "chronicle".
// When LogFile is set, entries are also written to that file.
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			c.logger.Hooks.Add(lfshook.NewHook(
				lfshook.PathMap{
					logrus.DebugLevel: c.LogFile,
					logrus.InfoLevel:  c.LogFile,
					logrus.WarnLevel:  c.LogFile,
					logrus.ErrorLevel: c.LogFile,
					logrus.FatalLevel: c.LogFile,
					logrus.PanicLevel: c.LogFile,
				},
				&logrus.TextFormatter{},
			))
		}
	}
	return c.logger.WithField("prefix", "chronicle")
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level chronicle
// config based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Chronicle")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Chronicle")
		} else {
			return filepath.Join(home, ".chronicle")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
