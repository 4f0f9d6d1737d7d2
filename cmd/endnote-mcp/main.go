// Package main provides the entry point for the endnote-mcp CLI.
package main

import (
	"os"

	"github.com/gokmengokhan/endnote-mcp/cmd/endnote-mcp/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
