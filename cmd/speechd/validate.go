package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/deathnote2501/fia-v3.0-sub001/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate <config.yaml>",
	Short: "Validate a speechd configuration file",
	Long: `Checks a SpeechConfig file against its JSON schema and the semantic rules
applied at startup, after environment overrides. Warnings are printed but do
not fail validation.

Example:
  speechd validate speechd.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	// LoadConfig already failed on errors; this pass only collects warnings.
	v := config.NewConfigValidator(cfg)
	_ = v.Validate()
	for _, w := range v.GetWarnings() {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	fmt.Fprintf(out, "%s is a valid %s (%s)\n", filepath.Base(args[0]), config.Kind, config.APIVersion)
	return nil
}
