// Package main provides the entry point for the vecdex CLI.
package main

import (
	"os"

	"github.com/vecdex/vecdex/cmd/vecdex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
