package main

import (
	"os"

	"github.com/bassamadnan/rfimail/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
