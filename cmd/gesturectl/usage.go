package main

import (
	"flag"
	"fmt"
)

var commandOrder = []string{
	"status",
	"set-active on|off",
	"toggle",
	"hold-mode on|off",
	"reload",
	"refresh-displays",
	"bindings",
	"channels",
	"history [n]",
	"warnings [n]",
	"help",
}

func printUsage(fs *flag.FlagSet) {
	// Usage output is best-effort.
	out := fs.Output()
	_, _ = fmt.Fprintln(out, "Usage: gesturectl [options] <command> [args]")
	_, _ = fmt.Fprintln(out, "Commands:")
	for _, name := range commandOrder {
		_, _ = fmt.Fprintf(out, "  %s\n", name)
	}
	_, _ = fmt.Fprintln(out, "Options:")
	fs.PrintDefaults()
}
