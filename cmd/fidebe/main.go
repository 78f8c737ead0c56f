package main

import (
	"os"

	"github.com/vgarvardt/fidebe/cmd/fidebe/cmd"
)

func main() {
	if err := cmd.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
