// Package main provides the transferstats CLI entry point.
// transferstats reports transfer statistics from slskd transfer-log stores.
package main

import (
	"fmt"
	"os"

	"github.com/transferstats/transferstats/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
