package main

import (
	"github.com/joho/godotenv"

	"github.com/jmensah/fieldcheck/cmd/fieldcheck/cmd"
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()
	cmd.Execute()
}
