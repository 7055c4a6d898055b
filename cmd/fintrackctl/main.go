package main

import (
	"os"

	"fintrack/internal/cli"
	"fintrack/internal/commands"
)

func main() {
	cli.LoadEnvFile()
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
