package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/mosaicnetworks/chronicle/src/chronicle"
	"github.com/mosaicnetworks/chronicle/src/proxy"
	aproxy "github.com/mosaicnetworks/chronicle/src/proxy/socket/app"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRunCmd returns the command that starts a Chronicle node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runChronicle,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runChronicle(cmd *cobra.Command, args []string) error {
	logger := _config.Chronicle.Logger()

	var prx proxy.AppProxy

	if !_config.Standalone {
		p, err := aproxy.NewSocketAppProxy(
			_config.ClientAddr,
			_config.ProxyAddr,
			_config.Chronicle.TCPTimeout,
			logger,
		)

		if err != nil {
			logger.Error("Cannot initialize socket AppProxy:", err)
			return err
		}

		defer p.Close()

		prx = p
	}

	engine := chronicle.NewChronicle(&_config.Chronicle, prx)

	if err := engine.Init(); err != nil {
		logger.Error("Cannot initialize engine:", err)
		return err
	}

	for _, t := range _config.LogTypes {
		objectType := t
		err := engine.Node.RegisterDeliveryHandler(objectType, func(data []byte, timestamp int64) {
			logger.WithFields(logrus.Fields{
				"type":      objectType,
				"timestamp": timestamp,
				"size":      len(data),
			}).Info("Delivered")
		})
		if err != nil {
			return err
		}
	}

	engine.Node.SetOnOffline(func() {
		logger.Warn("Lost contact with the network, resuming")
		engine.Node.Resume()
	})

	done := make(chan struct{})
	go func() {
		engine.Run()
		close(done)
	}()

	// Prepare sigCh to relay SIGINT and SIGTERM system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Leaving the network")
		if err := engine.Node.Leave(); err != nil {
			logger.WithError(err).Error("Leave")
		}
		<-done
	case <-done:
	}

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

// AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {
	c := &_config.Chronicle

	cmd.Flags().String("datadir", c.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", c.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", c.LogFile, "Also write logs to this file")
	cmd.Flags().String("moniker", c.Moniker, "Optional name")

	// Network
	cmd.Flags().StringP("listen", "l", c.BindAddr, "Listen IP:Port for chronicle node")
	cmd.Flags().StringP("advertise", "a", c.AdvertiseAddr, "Advertise IP:Port for chronicle node")
	cmd.Flags().DurationP("timeout", "t", c.TCPTimeout, "TCP Timeout")
	cmd.Flags().DurationP("join-timeout", "j", c.JoinTimeout, "Join Timeout")
	cmd.Flags().Int("max-pool", c.MaxPool, "Connection pool size max")
	cmd.Flags().Int("max-retries", c.MaxRetries, "Attempts of a request before the node goes offline")

	// Service
	cmd.Flags().StringP("service-listen", "s", c.ServiceAddr, "Listen IP:Port for HTTP service")
	cmd.Flags().Bool("no-service", c.NoService, "Disable the HTTP service")

	// Proxy
	cmd.Flags().Bool("standalone", _config.Standalone, "Do not create a proxy")
	cmd.Flags().StringP("proxy-listen", "p", _config.ProxyAddr, "Listen IP:Port for chronicle proxy")
	cmd.Flags().StringP("client-connect", "c", _config.ClientAddr, "IP:Port to connect to client")

	// Application
	cmd.Flags().StringSlice("log-types", _config.LogTypes, "Object types whose deliveries are logged")

	// Store
	cmd.Flags().Bool("store", c.Store, "Use badgerDB instead of in-mem DB")
	cmd.Flags().String("db", c.DatabaseDir, "Dabatabase directory")
	cmd.Flags().Int("cache-size", c.CacheSize, "Number of items in LRU caches")

	// Protocol timings
	cmd.Flags().Duration("spool-interval", c.SpoolInterval, "Time between transmissions")
	cmd.Flags().Duration("eviction-interval", c.EvictionInterval, "Time between deliveries")
	cmd.Flags().Duration("membership-interval", c.MembershipInterval, "Time between membership updates")
	cmd.Flags().Duration("sync-window", c.SyncWindow, "Time an element spends in the pipeline")
	cmd.Flags().Duration("signature-timeout", c.SignatureTimeout, "Deadline of the certification of an element")
	cmd.Flags().Duration("timestamp-margin", c.TimestampMargin, "Tolerated clock skew")
	cmd.Flags().Duration("max-transmit", c.MaxTransmitTime, "Expected upper bound of a first hop")
	cmd.Flags().Duration("transmission-pause", c.TransmissionPause, "Minimum time between transmissions at the same level")
	cmd.Flags().Duration("join-grace", c.JoinGrace, "Delay before a new member becomes active")
	cmd.Flags().Duration("leave-grace", c.LeaveGrace, "Time a departed member stays known")
	cmd.Flags().Int("max-certification", c.MaxCertificationAttempts, "Certification attempts before an element is dropped")
	cmd.Flags().Duration("stats-rollover", c.StatsRollover, "Length of a statistics period")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.Chronicle.SetDataDir(_config.Chronicle.DataDir)

	c := &_config.Chronicle

	logFields := logrus.Fields{
		"chronicle.DataDir":           c.DataDir,
		"chronicle.BindAddr":          c.BindAddr,
		"chronicle.AdvertiseAddr":     c.AdvertiseAddr,
		"chronicle.ServiceAddr":       c.ServiceAddr,
		"chronicle.NoService":         c.NoService,
		"chronicle.MaxPool":           c.MaxPool,
		"chronicle.Store":             c.Store,
		"chronicle.LogLevel":          c.LogLevel,
		"chronicle.Moniker":           c.Moniker,
		"chronicle.TCPTimeout":        c.TCPTimeout,
		"chronicle.JoinTimeout":       c.JoinTimeout,
		"chronicle.CacheSize":         c.CacheSize,
		"chronicle.SpoolInterval":     c.SpoolInterval,
		"chronicle.SyncWindow":        c.SyncWindow,
		"chronicle.SignatureTimeout":  c.SignatureTimeout,
		"chronicle.TimestampMargin":   c.TimestampMargin,
		"chronicle.TransmissionPause": c.TransmissionPause,
		"chronicle.JoinGrace":         c.JoinGrace,
		"chronicle.LeaveGrace":        c.LeaveGrace,
		"ProxyAddr":                   _config.ProxyAddr,
		"ClientAddr":                  _config.ClientAddr,
		"Standalone":                  _config.Standalone,
		"LogTypes":                    _config.LogTypes,
	}

	if c.Store {
		logFields["chronicle.DatabaseDir"] = c.DatabaseDir
	}

	c.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/chronicle.toml (.json, .yaml also work)
	viper.SetConfigName("chronicle")               // name of config file (without extension)
	viper.AddConfigPath(_config.Chronicle.DataDir) // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Chronicle.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Chronicle.Logger().Debugf("No config file found in: %s", _config.Chronicle.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
