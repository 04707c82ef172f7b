// Package main is the entry point for the cohort CLI binary.
package main

import (
	"os"

	cli "cohortlens/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
