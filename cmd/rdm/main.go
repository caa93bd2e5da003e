// Package main is the rdm command.
package main

import (
	"os"

	"github.com/leapstack-labs/rdm/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
