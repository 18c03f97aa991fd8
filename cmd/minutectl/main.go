package main

import (
	"fmt"
	"os"

	"github.com/minutelabs/minute-core/internal/cli"
)

var version = "0.1.0-dev"

func main() {
	if err := cli.NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
