package chronicle

import (
	"crypto/ecdsa"
	"fmt"
	"os"

	"github.com/mosaicnetworks/chronicle/src/config"
	"github.com/mosaicnetworks/chronicle/src/crypto/keys"
	"github.com/mosaicnetworks/chronicle/src/net"
	"github.com/mosaicnetworks/chronicle/src/node"
	"github.com/mosaicnetworks/chronicle/src/peers"
	"github.com/mosaicnetworks/chronicle/src/proxy"
	"github.com/mosaicnetworks/chronicle/src/proxy/inmem"
	"github.com/mosaicnetworks/chronicle/src/service"
	"github.com/mosaicnetworks/chronicle/src/stats"
	"github.com/mosaicnetworks/chronicle/src/store"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Chronicle is a struct containing the key parts of a chronicle node.
type Chronicle struct {
	Config    *config.Config
	Node      *node.Node
	Transport net.Transport
	Store     store.Store
	Registry  *peers.Registry
	Stats     *stats.Stats
	Metrics   *prometheus.Registry
	Proxy     proxy.AppProxy
	Service   *service.Service

	key    *ecdsa.PrivateKey
	logger *logrus.Entry
}

// NewChronicle is a factory method to produce a Chronicle instance. If prx is
// nil, an InmemProxy is used.
func NewChronicle(c *config.Config, prx proxy.AppProxy) *Chronicle {
	logger := c.Logger()

	if prx == nil {
		prx = inmem.NewInmemProxy(logger)
	}

	engine := &Chronicle{
		Config:  c,
		Proxy:   prx,
		Metrics: prometheus.NewRegistry(),
		logger:  logger,
	}

	return engine
}

// Init initialises the chronicle engine
func (c *Chronicle) Init() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}

	if err := c.initKey(); err != nil {
		c.logger.WithError(err).Error("chronicle.go:Init() initKey")
		return err
	}

	if err := c.initPeers(); err != nil {
		c.logger.WithError(err).Error("chronicle.go:Init() initPeers")
		return err
	}

	if err := c.initStore(); err != nil {
		c.logger.WithError(err).Error("chronicle.go:Init() initStore")
		return err
	}

	if err := c.initTransport(); err != nil {
		c.logger.WithError(err).Error("chronicle.go:Init() initTransport")
		return err
	}

	if err := c.initNode(); err != nil {
		c.logger.WithError(err).Error("chronicle.go:Init() initNode")
		return err
	}

	c.initService()

	return nil
}

// Run starts the API service and the node. It blocks until the node shuts
// down.
func (c *Chronicle) Run() {
	if c.Service != nil {
		go c.Service.Serve()
	}

	c.Node.Run()
}

func (c *Chronicle) initKey() error {
	if c.key != nil {
		return nil
	}

	keyfile := keys.NewSimpleKeyfile(c.Config.Keyfile())

	key, err := keyfile.ReadKey()
	if err != nil {
		return errors.Wrapf(err, "reading private key from %s", c.Config.Keyfile())
	}

	c.key = key

	return nil
}

// SetKey sets the private key instead of reading it from the data directory.
func (c *Chronicle) SetKey(key *ecdsa.PrivateKey) {
	c.key = key
}

// initPeers creates the registry and loads the bootstrap membership from
// peers.json. A missing file means a network of one.
func (c *Chronicle) initPeers() error {
	c.Registry = peers.NewRegistry(
		c.Config.JoinGrace,
		c.Config.LeaveGrace,
		c.Config.Clock,
		c.logger,
	)

	peerSet := peers.NewJSONPeerSet(c.Config.DataDir)

	if _, err := os.Stat(peerSet.Path()); os.IsNotExist(err) {
		c.logger.WithField("path", peerSet.Path()).Info("No peers.json, starting alone")
		return nil
	}

	ps, err := peerSet.Peers()
	if err != nil {
		return err
	}

	for _, p := range ps {
		c.Registry.Add(p)
	}

	c.logger.WithField("peers", len(ps)).Debug("Loaded peers.json")

	return nil
}

func (c *Chronicle) initStore() error {
	if !c.Config.Store {
		c.logger.Debug("Creating InmemStore")
		c.Store = store.NewInmemStore(c.Config.CacheSize)
		return nil
	}

	c.logger.WithField("path", c.Config.DatabaseDir).Debug("Opening BadgerStore")

	s, err := store.NewBadgerStore(c.Config.CacheSize, c.Config.DatabaseDir, c.logger)
	if err != nil {
		return err
	}

	c.Store = s

	return nil
}

func (c *Chronicle) initTransport() error {
	trans, err := net.NewTCPTransport(
		c.Config.BindAddr,
		c.Config.AdvertiseAddr,
		c.Config.MaxPool,
		c.Config.TCPTimeout,
		c.Config.JoinTimeout,
		c.logger,
	)
	if err != nil {
		return errors.Wrapf(err, "listening on %s", c.Config.BindAddr)
	}

	c.Transport = trans

	return nil
}

func (c *Chronicle) nodeConfig() *node.Config {
	return &node.Config{
		SpoolInterval:            c.Config.SpoolInterval,
		EvictionInterval:         c.Config.EvictionInterval,
		MembershipInterval:       c.Config.MembershipInterval,
		SyncWindow:               c.Config.SyncWindow,
		SignatureTimeout:         c.Config.SignatureTimeout,
		TimestampMargin:          c.Config.TimestampMargin,
		MaxTransmitTime:          c.Config.MaxTransmitTime,
		TransmissionPause:        c.Config.TransmissionPause,
		MaxRetries:               c.Config.MaxRetries,
		MaxCertificationAttempts: c.Config.MaxCertificationAttempts,
		StatsRollover:            c.Config.StatsRollover,
		Clock:                    c.Config.Clock,
		Logger:                   c.logger,
	}
}

func (c *Chronicle) initNode() error {
	c.Stats = stats.NewStats(c.Config.Clock, c.Metrics)

	validator := node.NewValidator(c.key, c.Config.Moniker)

	c.logger.WithFields(logrus.Fields{
		"pubkey":  validator.PublicKeyHex(),
		"address": c.Transport.AdvertiseAddr(),
		"members": c.Registry.Len(),
	}).Debug("Creating node")

	c.Node = node.NewNode(
		c.nodeConfig(),
		validator,
		c.Registry,
		c.Store,
		c.Stats,
		c.Transport,
		c.Proxy,
	)

	if err := c.Node.Init(); err != nil {
		return fmt.Errorf("failed to initialize node: %s", err)
	}

	return nil
}

func (c *Chronicle) initService() {
	if c.Config.NoService {
		return
	}
	c.Service = service.NewService(c.Config.ServiceAddr, c.Node, c.Metrics, c.logger)
}

// Keygen generates a new key and writes it to keyfile. It refuses to
// overwrite an existing key.
func Keygen(keyfile string) (*ecdsa.PrivateKey, error) {
	if _, err := os.Stat(keyfile); err == nil {
		return nil, fmt.Errorf("another key already lives under %s", keyfile)
	}

	key, err := keys.GenerateECDSAKey()
	if err != nil {
		return nil, err
	}

	if err := keys.NewSimpleKeyfile(keyfile).WriteKey(key); err != nil {
		return nil, err
	}

	return key, nil
}
