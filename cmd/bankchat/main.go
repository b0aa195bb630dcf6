package main

import (
	"os"

	"bankchat/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
