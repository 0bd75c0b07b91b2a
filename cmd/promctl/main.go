package main

import (
	"fmt"
	"os"

	"github.com/mdhender/promisance/internal/promctl"
)

func main() {
	if err := promctl.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
