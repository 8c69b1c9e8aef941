// Package main is the entry point for the vigil alerting engine.
package main

import (
	"os"

	"github.com/vigil-run/vigil/internal/adapters/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
