// Package main implements the sgraph CLI.
// It builds statement graphs with def-use dataflow for C functions.
package main

import (
	"os"

	"github.com/l3aro/go-stmt-graph/cmd/sgraph/commands"
)

var version = "dev"

func main() {
	commands.RootCmd.SetVersionTemplate(`sgraph version {{.Version}}
`)
	commands.RootCmd.Version = version

	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
