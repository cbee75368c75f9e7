// Package main is the entry point for the dba CLI binary.
package main

import (
	"os"

	"dbadmin/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
