package main

import (
	"os"

	"github.com/mfareport/cli/cmd"
	"github.com/mfareport/cli/internal/format"
)

func main() {
	if err := cmd.Execute(); err != nil {
		format.PrintError("%v", err)
		os.Exit(1)
	}
}
