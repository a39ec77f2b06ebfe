package commands

import (
	"github.com/mosaicnetworks/chronicle/src/config"
)

// CLIConfig contains configuration for the Run command
type CLIConfig struct {
	Chronicle  config.Config `mapstructure:",squash"`
	ProxyAddr  string        `mapstructure:"proxy-listen"`
	ClientAddr string        `mapstructure:"client-connect"`
	Standalone bool          `mapstructure:"standalone"`

	// LogTypes lists object types handled inside the node: their deliveries
	// are written to the log.
	LogTypes []string `mapstructure:"log-types"`
}

// NewDefaultCLIConfig creates a CLIConfig with default values
func NewDefaultCLIConfig() *CLIConfig {
	return &CLIConfig{
		Chronicle:  *config.NewDefaultConfig(),
		ProxyAddr:  "127.0.0.1:1338",
		ClientAddr: "127.0.0.1:1339",
		Standalone: false,
	}
}
