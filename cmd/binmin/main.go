// Package main provides the entry point for the binmin tree minimizer CLI.
package main

import (
	"os"
)

func main() {
	os.Exit(exitCode(Execute()))
}
