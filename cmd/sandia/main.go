// Package main provides the entry point for the sandia CLI.
package main

import (
	"fmt"
	"os"

	"github.com/sandia-project/sandia-go/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
