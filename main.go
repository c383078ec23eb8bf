package main

import (
	"os"

	"github.com/updrift/updrift/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
