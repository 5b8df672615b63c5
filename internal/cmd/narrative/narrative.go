// Package narrative parses narrative service flags and launches the service.
package narrative

import (
	"context"
	"flag"

	entrypoint "github.com/louisbranch/branching.ink/internal/platform/cmd"
	server "github.com/louisbranch/branching.ink/internal/services/narrative/app"
)

// Config holds narrative command configuration.
type Config struct {
	Port int `env:"BRANCHING_INK_NARRATIVE_PORT" envDefault:"8095"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The narrative gRPC server port")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the narrative gRPC API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceNarrative, func(ctx context.Context) error {
		return server.Run(ctx, cfg.Port)
	})
}
