package main

import (
	"os"

	"github.com/babelcloud/vkshow/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
