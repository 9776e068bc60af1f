package main

import (
	"os"

	"enclave/cmd/enclave/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
