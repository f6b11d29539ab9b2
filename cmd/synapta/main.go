package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/synapta-ai/synapta/synaptaservice"
)

func main() {
	// Local development reads SYNAPTA_ vars from .env; missing file is fine.
	_ = godotenv.Load()

	if err := synaptaservice.Run(); err != nil {
		os.Exit(1)
	}
}
