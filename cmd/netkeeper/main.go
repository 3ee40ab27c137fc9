package main

import (
	"os"

	"github.com/solatis/netkeeper/cmd/netkeeper/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
