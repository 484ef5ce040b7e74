package main

import (
	"github.com/joho/godotenv"
)

func main() {
	// Best effort: production sets real env vars, .env is for dev.
	_ = godotenv.Load()
	Execute()
}
