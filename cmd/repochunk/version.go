package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/dshills/repochunk/internal/storage"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "repochunk version: %s\n", version)
		fmt.Fprintf(w, "  build time: %s\n", buildTime)
		fmt.Fprintf(w, "  build mode: %s\n", storage.BuildMode)
		fmt.Fprintf(w, "  sqlite driver: %s\n", storage.DriverName)
		fmt.Fprintf(w, "  go version: %s\n", runtime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
