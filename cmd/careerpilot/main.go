package main

import (
	"os"

	"github.com/hoangnp/careerpilot/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
