// Package main starts the narrative gRPC service process lifecycle.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	narrativecmd "github.com/louisbranch/branching.ink/internal/cmd/narrative"
	entrypoint "github.com/louisbranch/branching.ink/internal/platform/cmd"
)

func main() {
	cfg, err := narrativecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[NARRATIVE] ")
	ctx, stop := entrypoint.SignalContext(context.Background())
	defer stop()

	if err := narrativecmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
