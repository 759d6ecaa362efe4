package main

import (
	"os"

	cmd "github.com/mosaicnetworks/chainboot/cmd/chainboot/commands"
)

func main() {
	rootCmd := cmd.RootCmd

	rootCmd.AddCommand(
		cmd.NewStageICmd(),
		cmd.NewStageIICmd(),
		cmd.NewStartupCmd(),
		cmd.NewCleanupCmd(),
		cmd.NewStatusCmd(),
		cmd.VersionCmd,
	)

	//Do not print usage when error occurs
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
