package main

import (
	"os"

	"github.com/tracegen/tracegen/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
