// Command falken-inspect loads brain schemas from Lua scripts and shows the
// containers they produce, what a game still has to set before the first
// step, and the positional form sent to the service.
//
// Usage: falken-inspect [-plain] [-wire] [-brain name] <file.lua|directory>
package main

import (
	"falken/internal/schema"
	"falken/pkg/domain"
	"flag"
	"fmt"
	"io"
	"os"
)

var (
	exitFunc = os.Exit
	startTUI = runTUI
)

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("falken-inspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	plain := fs.Bool("plain", false, "print the reports instead of starting the browser")
	showWire := fs.Bool("wire", false, "include the positional wire form")
	only := fs.String("brain", "", "inspect only the named brain")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		_, _ = fmt.Fprintln(stderr, "Usage: falken-inspect [-plain] [-wire] [-brain name] <file.lua|directory>")
		return 2
	}

	brains, err := load(fs.Arg(0))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error loading schema: %v\n", err)
		return 1
	}
	if *only != "" {
		b, ok := schema.Find(brains, *only)
		if !ok {
			_, _ = fmt.Fprintf(stderr, "brain %q not declared\n", *only)
			return 1
		}
		brains = []domain.BrainSchema{b}
	}

	if !*plain {
		if err := startTUI(brains, *showWire); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}
	for i, b := range brains {
		r, err := describe(b, *showWire)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "brain %q: %v\n", b.Name, err)
			return 1
		}
		if i > 0 {
			_, _ = fmt.Fprintln(stdout)
		}
		_, _ = io.WriteString(stdout, r.String())
	}
	return 0
}

func load(path string) ([]domain.BrainSchema, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return schema.Load(path)
	}
	return schema.LoadFile(path)
}
