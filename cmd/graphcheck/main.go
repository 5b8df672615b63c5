// Package main validates comic graph files for authors.
package main

import (
	"errors"
	"flag"
	"os"

	"github.com/louisbranch/branching.ink/internal/platform/config"
	"github.com/louisbranch/branching.ink/internal/tools/graphcheck"
)

func main() {
	cfg, err := graphcheck.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	if err := graphcheck.Run(cfg, os.Stdout); err != nil {
		if errors.Is(err, graphcheck.ErrInvalidGraph) {
			config.ExitCodef(1, "%v", err)
		}
		config.ExitCodef(2, "check graph: %v", err)
	}
}
