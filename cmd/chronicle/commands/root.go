package commands

import (
	"github.com/spf13/cobra"
)

var (
	_config = NewDefaultCLIConfig()
)

// RootCmd is the root command for Chronicle
var RootCmd = &cobra.Command{
	Use:              "chronicle",
	Short:            "chronicle decentralized timestamping",
	TraverseChildren: true,
}
