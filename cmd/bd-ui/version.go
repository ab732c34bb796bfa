package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is the current version of bd-ui (overridden by ldflags at build time)
	Version = "0.3.0"
	// Build can be set via ldflags at compile time
	Build = "dev"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if jsonOutput {
			_ = json.NewEncoder(os.Stdout).Encode(map[string]string{
				"version": Version,
				"build":   Build,
			})
			return
		}
		fmt.Printf("bd-ui version %s (%s)\n", Version, Build)
	},
}
