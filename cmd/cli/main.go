package main

import (
	"github.com/joho/godotenv"

	"github.com/diffuselab/sdqueue/cmd/cli/commands"
)

func main() {
	// .env is optional for the CLI
	_ = godotenv.Load()
	commands.Execute()
}
