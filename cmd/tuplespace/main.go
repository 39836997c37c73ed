package main

import (
	"os"

	"github.com/roach88/tuplespace/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
