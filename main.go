package main

import (
	"os"

	"github.com/balamir53/snackforge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
