package main

import (
	"github.com/sw33tLie/jsenv/cmd"
)

func main() {
	cmd.Execute()
}
