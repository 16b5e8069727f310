// Package main is the entry point for the trellosync CLI.
package main

import (
	"github.com/trellosync/trellosync/cmd/trellosync/commands"
)

func main() {
	commands.Execute()
}
