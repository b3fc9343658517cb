package main

import (
	"os"

	"github.com/windwatch/windwatch-go/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
