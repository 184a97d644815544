package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"cakery-bench/internal/scenario"
)

func init() {
	rootCmd.AddCommand(presetsCmd)
}

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List the preset scenarios",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Preset scenarios:")
		fmt.Fprintln(out)
		for _, name := range scenario.ListPresets() {
			config, _ := scenario.GetPreset(name)
			fmt.Fprintf(out, "  %-8s %-7s %s\n", name, config.Backend.Kind, config.Description)
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Example: cakery-bench run --preset binary --binary-addr cache:6379")
	},
}
