package main

import (
	"os"

	"github.com/vitwit/invoicepay/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
