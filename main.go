// The main package for the textextract executable.
package main

import (
	"github.com/JakeFAU/text-extraction/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
