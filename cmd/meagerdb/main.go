// Command meagerdb is a CLI for creating, inspecting, and exploring
// MeagerDB database files, replacing the GUI entry point of the package
// this CLI's engine was adapted from with a terminal-first one better suited
// to an embedded row store.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
