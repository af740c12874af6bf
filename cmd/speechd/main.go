// Command speechd runs the speech subsystem of the training chat: it voices
// assistant messages, drives their playback controls and transcribes voice
// input for the page connected over the bridge.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/deathnote2501/fia-v3.0-sub001/runtime/logger"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/version"
)

var rootCmd = &cobra.Command{
	Use:           "speechd",
	Short:         "Speech synthesis, playback and voice input for the training chat",
	Version:       version.GetVersion(),
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		if cmd.Flags().Changed("verbose") {
			verbose, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error getting verbose flag: %v\n", err)
				return
			}
			logger.SetVerbose(verbose)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")
}

// Execute runs the root command.
func Execute() {
	rootCmd.SetVersionTemplate(version.GetVersionInfo() + "\n")
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}
