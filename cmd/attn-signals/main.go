package main

import (
	"fmt"
	"os"

	"attn-signals/cmd/attn-signals/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
