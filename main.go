// The main package for the tomt executable.
package main

import (
	"github.com/earworm/tomt/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
