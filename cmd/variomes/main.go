// Package main provides the entry point for the variomes CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/variomes/cmd/variomes/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
