package main

import (
	"os"

	"github.com/thrivebase/thrivebase/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
