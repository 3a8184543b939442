package main

import (
	"github.com/chainsentry/chainsentry/cmd"
)

// main is the entry point for the ChainSentry application.
func main() {
	cmd.Execute()
}
