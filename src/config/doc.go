// Package config defines the configuration of a chronicle node.
//
// Values are usually loaded by viper from [datadir]/chronicle.{toml,json,yaml}
// and overridden by command line flags. The Default* constants and
// NewDefaultConfig provide the values used when nothing is set.
package config
