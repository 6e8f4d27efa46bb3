// Command montage is the operator CLI for the montage daemon: project and
// render job inspection, reference recovery, and configuration utilities.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
