package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/filmrow/marquee/internal/cli"
)

func main() {
	// Optional; a missing .env is not an error.
	_ = godotenv.Load()

	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
