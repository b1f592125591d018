package main

import (
	"fmt"
	"os"

	"github.com/parakh/adaptive-exam/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "examd:", err)
		os.Exit(1)
	}
}
