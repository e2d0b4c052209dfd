// Package main provides the entry point for the scry CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/scry/cmd/scry/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
