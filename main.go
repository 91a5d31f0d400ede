package main

import (
	"fmt"
	"os"

	"github.com/tsarna/ddp/cmd/ddp/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
