package main

import (
	"os"

	"github.com/msto63/mdwterm/cmd/mdwterm/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
