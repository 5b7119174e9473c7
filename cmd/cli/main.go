// Package main is the entry point for the edfi-loadorder CLI binary.
package main

import (
	"os"

	"edfi-dms/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
