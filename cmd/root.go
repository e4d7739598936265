package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ipcam",
	Short: "Camera service messaging core",
	Long:  "Runs camera services that exchange requests, notices and responses over named endpoints.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
