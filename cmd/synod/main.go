package main

import (
	_ "net/http/pprof"
	"os"

	cmd "github.com/mosaicnetworks/synod/cmd/synod/commands"
)

func main() {
	rootCmd := cmd.RootCmd

	rootCmd.AddCommand(
		cmd.NewRunCmd(),
		cmd.NewPeersCmd(),
		cmd.NewLogCmd(),
		cmd.VersionCmd,
	)

	//Do not print usage when error occurs
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
