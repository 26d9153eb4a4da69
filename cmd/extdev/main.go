// Package main provides the CLI for the extdev extension development
// orchestrator.
package main

import (
	"os"

	"github.com/leapstack-labs/extdev/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
