package commands

import (
	"github.com/spf13/cobra"
)

var (
	_config = NewDefaultCLIConfig()
)

//RootCmd is the root command for Synod
var RootCmd = &cobra.Command{
	Use:              "synod",
	Short:            "synod replicated log",
	TraverseChildren: true,
}
