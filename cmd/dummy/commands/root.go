package commands

import (
	"bufio"
	"fmt"
	"io/ioutil"
	"os"
	"time"

	"github.com/mosaicnetworks/chronicle/src/common"
	"github.com/mosaicnetworks/chronicle/src/config"
	"github.com/mosaicnetworks/chronicle/src/proxy/socket/chronicle"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	_config = NewDefaultCLIConfig()
	logger  *logrus.Logger
)

func init() {
	RootCmd.Flags().String("name", _config.Name, "Client name")
	RootCmd.Flags().String("type", _config.Type, "Object type of the submitted messages")
	RootCmd.Flags().String("client-listen", _config.ClientAddr, "Listen IP:Port of Dummy Socket Client")
	RootCmd.Flags().String("proxy-connect", _config.ProxyAddr, "IP:Port to connect to the chronicle proxy")
	RootCmd.Flags().Bool("discard", _config.Discard, "discard output to stderr and sdout")
	RootCmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
}

// RootCmd is the root command for Dummy
var RootCmd = &cobra.Command{
	Use:     "dummy",
	Short:   "Dummy Socket Client for Chronicle",
	PreRunE: loadConfig,
	RunE:    runDummy,
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runDummy(cmd *cobra.Command, args []string) error {
	entry := logger.WithField("component", "DUMMY")

	// Create the socket client and print what the network delivers
	client, err := chronicle.NewSocketChronicleProxy(
		_config.ProxyAddr,
		_config.ClientAddr,
		config.DefaultTCPTimeout,
		entry)
	if err != nil {
		return err
	}
	defer client.Close()

	err = client.Register(_config.Type, func(data []byte, timestamp int64) {
		entry.WithField("timestamp", timestamp).Info(string(data))
		fmt.Printf("[%s] %s\n", common.FromTimestamp(timestamp).Format(time.RFC3339Nano), data)
	})
	if err != nil {
		return err
	}

	// Listen for input messages from tty
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fmt.Print("Enter your text: ")
		text := scanner.Text()
		message := fmt.Sprintf("%s: %s", _config.Name, text)
		if err := client.SubmitObject(_config.Type, []byte(message)); err != nil {
			fmt.Printf("Error in SubmitObject: %v\n", err)
		}
	}

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

func loadConfig(cmd *cobra.Command, args []string) error {

	err := viper.BindPFlags(cmd.Flags())
	if err != nil {
		return err
	}

	_config, err = parseConfig()
	if err != nil {
		return err
	}

	logger = newLogger()
	logger.Level = config.LogLevel(_config.LogLevel)

	logger.WithFields(logrus.Fields{
		"name":          _config.Name,
		"type":          _config.Type,
		"client-listen": _config.ClientAddr,
		"proxy-connect": _config.ProxyAddr,
		"discard":       _config.Discard,
		"log":           _config.LogLevel,
	}).Debug("RUN")

	return nil
}

// Retrieve the default environment configuration.
func parseConfig() (*CLIConfig, error) {
	conf := NewDefaultCLIConfig()
	err := viper.Unmarshal(conf)
	if err != nil {
		return nil, err
	}
	return conf, err
}

func newLogger() *logrus.Logger {
	logger := logrus.New()

	pathMap := lfshook.PathMap{}

	_, err := os.OpenFile("dummy_info.log", os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		logger.Info("Failed to open dummy_info.log file, using default stderr")
	} else {
		pathMap[logrus.InfoLevel] = "dummy_info.log"
	}

	_, err = os.OpenFile("dummy_debug.log", os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		logger.Info("Failed to open dummy_debug.log file, using default stderr")
	} else {
		pathMap[logrus.DebugLevel] = "dummy_debug.log"
	}

	if err == nil && _config.Discard {
		logger.Out = ioutil.Discard
	}

	logger.Hooks.Add(lfshook.NewHook(
		pathMap,
		&logrus.TextFormatter{},
	))

	return logger
}
