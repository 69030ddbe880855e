package main

import (
	"os"

	"github.com/fahmaliyi/passvault/cli"
)

func main() {
	os.Exit(cli.Main(os.Args[1:], os.Stdin, os.Stdout))
}
