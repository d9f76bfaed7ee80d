package main

import (
	"log/slog"

	"github.com/joho/godotenv"

	"github.com/lexcodex/adpilot/app/cmd"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}
	cmd.Execute()
}
