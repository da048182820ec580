package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/sw33tLie/jsenv/pkg/compiler"
	"github.com/sw33tLie/jsenv/pkg/registry"
	"github.com/sw33tLie/jsenv/pkg/standalone"
	"github.com/sw33tLie/jsenv/pkg/targets"
)

func main() {
	// Usage: go run ./lib-usage-example -chrome 49 -file app.js

	chromeFlag := flag.String("chrome", "49", "Chrome version to compile for")
	fileFlag := flag.String("file", "", "JavaScript file to compile")

	// Parse the command-line flags
	flag.Parse()

	if *fileFlag == "" {
		fmt.Println("File is required. Please provide it using the -file flag.")
		return
	}
	code, err := os.ReadFile(*fileFlag)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	esb := compiler.NewEsbuild(nil)
	t := standalone.New(esb, esb, targets.NewResolver("", nil), nil)

	// Presets are looked up by name; options travel with the reference.
	res, err := t.Transform(context.Background(), string(code), standalone.Options{
		Filename: *fileFlag,
		Presets: []registry.Ref{
			registry.ByName("env", map[string]interface{}{
				"targets":     map[string]interface{}{"chrome": *chromeFlag},
				"useBuiltIns": "usage",
			}),
		},
	})
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	fmt.Println(res.Code)
	for _, p := range res.Polyfills {
		fmt.Fprintln(os.Stderr, "needs", p)
	}
}
