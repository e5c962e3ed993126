// Package main is the entry point for the repochunk CLI.
package main

import (
	"os"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
