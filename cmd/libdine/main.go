package main

import (
	"os"

	"github.com/libdine/libdine/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
