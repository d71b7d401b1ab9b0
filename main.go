package main

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/a2a-runtime/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Error("a2a-runtime failed", "error", err)
		os.Exit(1)
	}
}
