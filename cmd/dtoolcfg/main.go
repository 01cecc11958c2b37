package main

import (
	"fmt"
	"os"

	"github.com/dtool-infra/dtool-config-generator/cmd/dtoolcfg/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
