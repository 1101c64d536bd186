package main

import (
	"github.com/joho/godotenv"

	"github.com/user/leadscope/cmd"
)

func main() {
	// .env is optional
	_ = godotenv.Load()
	cmd.Execute()
}
