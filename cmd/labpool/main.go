// Package main is the entry point for the labpool CLI.
package main

import (
	"os"

	"github.com/jmylchreest/labpool/cmd/labpool/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
