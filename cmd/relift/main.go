// Package main provides the relift CLI: a schema-migration engine that
// lowers changelog documents for SQLite and rebuilds tables to apply
// foreign-key changes the engine cannot execute natively.
package main

import (
	"fmt"
	"os"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUserError)
	}
}
