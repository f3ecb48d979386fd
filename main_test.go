package main

import (
	"testing"

	"github.com/balamir53/snackforge/cmd"
)

func TestCommandTreeBuilds(t *testing.T) {
	// Registering the command tree must not panic; actual command
	// behavior is covered in the package tests.
	if testing.Short() {
		t.Skip("skipping main test in short mode")
	}
	_ = cmd.Execute
}
