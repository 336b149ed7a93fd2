// Command lessonkit serves, validates and scaffolds block-based lessons.
package main

import (
	"fmt"
	"os"

	"github.com/livetemplate/lessonkit/cmd/lessonkit/commands"
)

const version = "0.1.0-dev"

func main() {
	if err := commands.Execute(version); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
