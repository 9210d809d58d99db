// Package main provides the hviseq command line tool. It builds HVI
// scripts and prints their listing, their timing and their hazards.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
